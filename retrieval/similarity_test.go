package retrieval

import (
	"errors"
	"math"
	"testing"
)

func TestCosineSimilaritySelf(t *testing.T) {
	v := []float32{0.3, -0.5, 0.8, 0.1}
	score, err := CosineSimilarity(v, v, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(score-1.0) > 1e-6 {
		t.Errorf("self similarity = %v, want 1.0", score)
	}
}

func TestCosineSimilaritySymmetry(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{-4, 5, 0.5}
	ab, err := CosineSimilarity(a, b, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ba, err := CosineSimilarity(b, a, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ab != ba {
		t.Errorf("similarity is not symmetric: %v != %v", ab, ba)
	}
}

func TestCosineSimilarityOrthogonal(t *testing.T) {
	score, err := CosineSimilarity([]float32{1, 0}, []float32{0, 1}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(score) > 1e-9 {
		t.Errorf("orthogonal similarity = %v, want 0", score)
	}
}

func TestCosineSimilarityOpposite(t *testing.T) {
	score, err := CosineSimilarity([]float32{1, 1}, []float32{-1, -1}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(score-(-1.0)) > 1e-6 {
		t.Errorf("opposite similarity = %v, want -1.0", score)
	}
}

// A zero vector has no direction, so its similarity to anything is exactly
// zero, not NaN.
func TestCosineSimilarityZeroVector(t *testing.T) {
	score, err := CosineSimilarity([]float32{0, 0, 0}, []float32{1, 2, 3}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score != 0.0 {
		t.Errorf("zero-vector similarity = %v, want exactly 0.0", score)
	}
}

func TestCosineSimilarityDimensionMismatch(t *testing.T) {
	for _, tc := range []struct {
		name string
		a, b []float32
	}{
		{"short first", []float32{1, 2}, []float32{1, 2, 3}},
		{"short second", []float32{1, 2, 3}, []float32{1, 2}},
		{"both wrong", []float32{1}, []float32{1}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CosineSimilarity(tc.a, tc.b, 3)
			if !errors.Is(err, ErrDimensionMismatch) {
				t.Errorf("got %v, want ErrDimensionMismatch", err)
			}
		})
	}
}
