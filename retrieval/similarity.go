// Package retrieval implements exact nearest-neighbor selection over the
// in-memory content snapshots. Candidate sets are small (tens of items), so
// a linear scan over full-precision cosine similarity is used instead of an
// approximate index.
package retrieval

import (
	"errors"
	"fmt"
	"math"
)

// ErrDimensionMismatch is returned when a vector does not have the expected
// number of components.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// CosineSimilarity computes the normalized dot product of two vectors.
// Both vectors must have exactly dim components. A zero-magnitude vector
// yields 0.0 rather than an error, so the function stays total over valid
// dimensions.
func CosineSimilarity(a, b []float32, dim int) (float64, error) {
	if len(a) != dim {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(a), dim)
	}
	if len(b) != dim {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(b), dim)
	}

	var dot, normA, normB float64
	for i := 0; i < dim; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
