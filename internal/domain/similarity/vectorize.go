package similarity

import (
	"math"
	"sort"
)

// pairSize is the corpus size document frequency is measured over.
const pairSize = 2

// Pair holds the TF-IDF vectors of two documents projected onto their shared term basis.
// A and B are aligned with Terms; a term absent from a document weighs zero.
type Pair struct {
	Terms []string
	A     []float64
	B     []float64
}

// Vectorize weights the terms of a and b against the two-document corpus {a, b}.
// Weight is raw term count times idf = 1 + ln(2 / (1 + df)), so a term present in
// both documents weighs less than a term present in only one.
func Vectorize(a, b string) Pair {
	countsA := termCounts(Tokenize(a))
	countsB := termCounts(Tokenize(b))

	terms := make([]string, 0, len(countsA)+len(countsB))
	for t := range countsA {
		terms = append(terms, t)
	}
	for t := range countsB {
		if _, ok := countsA[t]; !ok {
			terms = append(terms, t)
		}
	}
	sort.Strings(terms)

	p := Pair{
		Terms: terms,
		A:     make([]float64, len(terms)),
		B:     make([]float64, len(terms)),
	}
	for i, t := range terms {
		ca, cb := countsA[t], countsB[t]
		df := 0
		if ca > 0 {
			df++
		}
		if cb > 0 {
			df++
		}
		w := idf(df)
		p.A[i] = float64(ca) * w
		p.B[i] = float64(cb) * w
	}
	return p
}

func idf(df int) float64 {
	return 1 + math.Log(float64(pairSize)/float64(1+df))
}

func termCounts(tokens []string) map[string]int {
	m := make(map[string]int, len(tokens))
	for _, t := range tokens {
		m[t]++
	}
	return m
}
