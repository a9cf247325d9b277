// Package vec provides float32 vector serialization and similarity math for
// embedding storage and search. Vectors are persisted as little-endian float32
// bytes (4 bytes per element) to halve storage size relative to float64.
package vec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DimensionMismatchError is returned when a query vector's dimensionality
// does not match the dimensionality an index was built with. It is a typed
// error so callers can distinguish it from generic search failures.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: index expects %d, query vector has %d", e.Want, e.Got)
}

// Serialize converts a float32 slice to a compact little-endian byte slice.
func Serialize(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

// Deserialize converts a little-endian byte slice back to a float32 slice.
// Returns nil for empty or misaligned input.
func Deserialize(data []byte) []float32 {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil
	}
	n := len(data) / 4
	v := make([]float32, n)
	for i := 0; i < n; i++ {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return v
}

// Dot computes the dot product of two equal-length vectors with 8-way loop
// unrolling to maximize instruction-level parallelism on modern CPUs.
func Dot(a, b []float32) float32 {
	n := len(a)
	var s0, s1, s2, s3, s4, s5, s6, s7 float32
	i := 0
	for ; i <= n-8; i += 8 {
		s0 += a[i] * b[i]
		s1 += a[i+1] * b[i+1]
		s2 += a[i+2] * b[i+2]
		s3 += a[i+3] * b[i+3]
		s4 += a[i+4] * b[i+4]
		s5 += a[i+5] * b[i+5]
		s6 += a[i+6] * b[i+6]
		s7 += a[i+7] * b[i+7]
	}
	for ; i < n; i++ {
		s0 += a[i] * b[i]
	}
	return (s0 + s1 + s2 + s3) + (s4 + s5 + s6 + s7)
}

// Norm computes the L2 norm of a vector.
func Norm(v []float32) float32 {
	return float32(math.Sqrt(float64(Dot(v, v))))
}

// Cosine computes the cosine similarity between two vectors. Returns 0 for
// mismatched lengths, empty input, or zero-norm vectors.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	na := Norm(a)
	nb := Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return Dot(a, b) / (na * nb)
}

// Zero returns an all-zero vector of the given dimension. Used as the
// embedding fallback when a single chunk fails to embed during a build.
func Zero(dim int) []float32 {
	return make([]float32, dim)
}
