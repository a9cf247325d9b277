package vec

import (
	"errors"
	"math"
	"testing"
)

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		vec  []float32
	}{
		{"single element", []float32{3.14}},
		{"multiple elements", []float32{1, 2, 3, 4, 5}},
		{"negative values", []float32{-1.5, -2.5, 0, 2.5, 1.5}},
		{"typical embedding values", []float32{0.0123, -0.0456, 0.789, -0.321, 0.654}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Deserialize(Serialize(tt.vec))
			if len(got) != len(tt.vec) {
				t.Fatalf("length mismatch: got %d, want %d", len(got), len(tt.vec))
			}
			for i := range tt.vec {
				if got[i] != tt.vec[i] {
					t.Errorf("index %d: got %v, want %v", i, got[i], tt.vec[i])
				}
			}
		})
	}
}

func TestSerializeByteLength(t *testing.T) {
	data := Serialize([]float32{1, 2, 3})
	if len(data) != 12 {
		t.Errorf("byte length: got %d, want 12", len(data))
	}
}

func TestDeserializeBadInput(t *testing.T) {
	if got := Deserialize(nil); got != nil {
		t.Errorf("nil input: expected nil, got %v", got)
	}
	if got := Deserialize([]byte{1, 2, 3}); got != nil {
		t.Errorf("misaligned input: expected nil, got %v", got)
	}
}

func TestDotMatchesNaive(t *testing.T) {
	// Exercise the unrolled loop across remainder lengths.
	for n := 0; n < 20; n++ {
		a := make([]float32, n)
		b := make([]float32, n)
		var want float32
		for i := 0; i < n; i++ {
			a[i] = float32(i) * 0.5
			b[i] = float32(n-i) * 0.25
			want += a[i] * b[i]
		}
		got := Dot(a, b)
		if math.Abs(float64(got-want)) > 1e-4 {
			t.Errorf("n=%d: got %v, want %v", n, got, want)
		}
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 2, 3}, []float32{-1, -2, -3}, -1},
		{"scaled", []float32{1, 2, 3}, []float32{2, 4, 6}, 1},
		{"zero vector", []float32{0, 0, 0}, []float32{1, 2, 3}, 0},
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.a, tt.b)
			if math.Abs(float64(got-tt.want)) > 1e-6 {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCosineMonotonicWithOverlap(t *testing.T) {
	base := []float32{1, 1, 1, 1, 0, 0, 0, 0}
	closer := []float32{1, 1, 1, 0, 1, 0, 0, 0}
	farther := []float32{0, 0, 0, 0, 1, 1, 1, 1}
	if Cosine(base, closer) <= Cosine(base, farther) {
		t.Errorf("expected higher similarity for overlapping vector: close=%v far=%v",
			Cosine(base, closer), Cosine(base, farther))
	}
}

func TestDimensionMismatchError(t *testing.T) {
	var err error = &DimensionMismatchError{Want: 768, Got: 384}
	var dim *DimensionMismatchError
	if !errors.As(err, &dim) {
		t.Fatal("errors.As failed to match DimensionMismatchError")
	}
	if dim.Want != 768 || dim.Got != 384 {
		t.Errorf("got Want=%d Got=%d, want 768/384", dim.Want, dim.Got)
	}
	if err.Error() == "" {
		t.Error("empty error message")
	}
}

func TestZero(t *testing.T) {
	z := Zero(16)
	if len(z) != 16 {
		t.Fatalf("got %d elements, want 16", len(z))
	}
	if Norm(z) != 0 {
		t.Errorf("zero vector norm: got %v, want 0", Norm(z))
	}
}
