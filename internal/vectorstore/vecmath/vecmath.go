// Package vecmath holds the brute-force similarity helpers shared by the
// in-process vector stores.
package vecmath

import (
	"math"
	"sort"
)

// Cosine returns the cosine similarity of a and b over their common prefix,
// or 0 when either vector is zero.
func Cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// TopK returns the indexes of the k highest scores, best first. Equal scores
// keep their original order.
func TopK(scores []float64, k int) []int {
	idxs := make([]int, len(scores))
	for i := range scores {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(i, j int) bool { return scores[idxs[i]] > scores[idxs[j]] })
	if k < len(idxs) {
		idxs = idxs[:k]
	}
	return idxs
}
