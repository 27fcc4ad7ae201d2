package domain

import (
	"fmt"
	"math"
	"sort"
)

// CosineSimilarity computes dot(a,b) / (||a|| * ||b||). The result is NaN
// when either vector has zero norm. Vectors of different lengths are a
// contract violation and return ErrDimensionMismatch.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: len(a)=%d len(b)=%d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// RankTopK returns the indices of the k corpus vectors most similar to the
// query, ordered by descending cosine similarity. Ties keep original corpus
// order (stable sort). Result length is min(k, len(corpus)). An empty corpus
// yields an empty result; a corpus vector of mismatched length yields
// ErrDimensionMismatch rather than a silently wrong score.
func RankTopK(query []float32, corpus [][]float32, k int) ([]int, error) {
	if len(corpus) == 0 {
		return nil, nil
	}

	scores := make([]float64, len(corpus))
	for i, vec := range corpus {
		score, err := CosineSimilarity(query, vec)
		if err != nil {
			return nil, fmt.Errorf("corpus vector %d: %w", i, err)
		}
		scores[i] = score
	}

	indices := make([]int, len(corpus))
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(i, j int) bool {
		return scores[indices[i]] > scores[indices[j]]
	})

	if k < 0 {
		k = 0
	}
	if len(indices) > k {
		indices = indices[:k]
	}
	return indices, nil
}
