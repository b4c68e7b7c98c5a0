package ipregistry

import (
	"context"

	"github.com/kailas-cloud/ipregistry/internal/usecase/dedup"
)

// Corpus exposes existing descriptions by sequential index in [0, Count).
type Corpus interface {
	Count(ctx context.Context) (int, error)
	Description(ctx context.Context, index int) (string, error)
}

// SliceCorpus is an in-memory corpus.
type SliceCorpus = dedup.SliceCorpus

// Verdict summarizes a completed duplicate check.
type Verdict struct {
	Scanned   int     // records compared
	BestIndex int     // -1 when no record scored above zero
	BestScore float64 // highest score observed
}

func verdictFromDedup(v dedup.Verdict) Verdict {
	return Verdict{Scanned: v.Scanned, BestIndex: v.BestIndex, BestScore: v.BestScore}
}
