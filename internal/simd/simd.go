package simd

import (
	"errors"

	"github.com/chewxy/math32"
	"github.com/viterin/vek/vek32"

	"github.com/23skdu/geoprobe/internal/metrics"
)

// ErrLengthMismatch is returned when two vectors (or a batch and its result
// buffer) have different lengths.
var ErrLengthMismatch = errors.New("simd: vector length mismatch")

// DotProduct calculates the dot product of two vectors.
func DotProduct(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, ErrLengthMismatch
	}
	if len(a) == 0 {
		return 0, nil
	}
	return dot(a, b), nil
}

// DotProductBatch computes the dot product of query against every vector.
// A vector whose length differs from the query fails the whole batch.
func DotProductBatch(query []float32, vectors [][]float32, results []float32) error {
	if len(vectors) != len(results) {
		return errors.New("simd: vectors and results length mismatch")
	}
	for _, v := range vectors {
		if len(v) != len(query) {
			return ErrLengthMismatch
		}
	}
	if len(vectors) == 0 {
		return nil
	}

	metrics.SimdOpsTotal.WithLabelValues("dot_batch", implementation).Inc()
	for i, v := range vectors {
		results[i] = dot(query, v)
	}
	return nil
}

// L2Norm returns the Euclidean length of v.
func L2Norm(v []float32) float32 {
	if len(v) == 0 {
		return 0
	}
	return math32.Sqrt(dot(v, v))
}

func dot(a, b []float32) float32 {
	if implementation == "vek" {
		return vek32.Dot(a, b)
	}
	return dotGeneric(a, b)
}

func dotGeneric(a, b []float32) float32 {
	var s0, s1, s2, s3 float32
	n := len(a)
	i := 0
	for ; i+4 <= n; i += 4 {
		s0 += a[i] * b[i]
		s1 += a[i+1] * b[i+1]
		s2 += a[i+2] * b[i+2]
		s3 += a[i+3] * b[i+3]
	}
	for ; i < n; i++ {
		s0 += a[i] * b[i]
	}
	return s0 + s1 + s2 + s3
}
