// Package ipregistry embeds the registry's near-duplicate gate in other Go programs.
//
// A Client compares a candidate description against a corpus of existing descriptions
// with pairwise TF-IDF cosine similarity and stops at the first record scoring strictly
// above the threshold.
//
//	client, _ := ipregistry.New(ipregistry.WithThreshold(0.9))
//	corpus := ipregistry.SliceCorpus{"A method of brewing coffee using pressure."}
//	_, err := client.CheckDuplicate(ctx, "A method for brewing coffee using pressure", corpus)
//	var dup *ipregistry.DuplicateError
//	if errors.As(err, &dup) {
//	    fmt.Println("duplicate of", dup.Index, dup.Score)
//	}
//
// A registry's own store-backed ledger can serve as the corpus:
//
//	ledger, _ := ipregistry.OpenStoreLedger(ctx, "localhost:6379", "", "ipreg:")
//	defer ledger.Close()
//	v, err := client.CheckDuplicate(ctx, text, ledger)
package ipregistry
