package vecmath

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1},
		{"scaled", []float64{1, 0}, []float64{5, 0}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"opposite", []float64{1, 1}, []float64{-1, -1}, -1},
		{"zero vector", []float64{0, 0}, []float64{1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cosine() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestTopK(t *testing.T) {
	scores := []float64{0.1, 0.9, 0.5, 0.9, 0.3}

	if diff := cmp.Diff([]int{1, 3, 2}, TopK(scores, 3)); diff != "" {
		t.Errorf("TopK(3) mismatch (-want +got):\n%s", diff)
	}
	if got := TopK(scores, 10); len(got) != 5 {
		t.Errorf("TopK(10) len = %d, want 5", len(got))
	}
	if got := TopK(nil, 3); len(got) != 0 {
		t.Errorf("TopK(nil) = %v", got)
	}
}
