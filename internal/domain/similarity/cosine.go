package similarity

import "math"

// Cosine returns dot(a, b) / (|a| * |b|).
// The result is NaN when the vectors differ in length or either has zero norm.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.NaN()
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return math.NaN()
	}
	s := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Rounding can push identical vectors a hair past 1.
	return math.Max(-1, math.Min(1, s))
}

// Compare scores two descriptions. ok is false when the comparison is degenerate
// (one side has no weighted terms); the score is then 0.
func Compare(a, b string) (score float64, ok bool) {
	p := Vectorize(a, b)
	s := Cosine(p.A, p.B)
	if math.IsNaN(s) {
		return 0, false
	}
	return s, true
}
