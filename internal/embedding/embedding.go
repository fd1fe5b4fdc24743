// Package embedding defines the embedding collaborators the inference core
// depends on, plus an HTTP implementation backed by an external model server.
package embedding

import (
	"context"

	"github.com/chewxy/math32"

	"github.com/23skdu/geoprobe/internal/geo"
	"github.com/23skdu/geoprobe/internal/simd"
)

// Vector is a fixed-length embedding.
type Vector []float32

// ImageEmbedder maps a decoded image buffer to a single embedding.
type ImageEmbedder interface {
	EmbedImage(ctx context.Context, image []byte) (Vector, error)
}

// LocationEmbedder maps a batch of coordinates to embeddings, index-aligned to the batch.
type LocationEmbedder interface {
	EmbedLocations(ctx context.Context, batch []geo.GeoPoint) ([]Vector, error)
}

// Provider supplies both embedding flavors. Implementations must be deterministic
// and safe for concurrent use.
type Provider interface {
	ImageEmbedder
	LocationEmbedder
}

// Funcs adapts two plain functions into a Provider.
type Funcs struct {
	Image     func(ctx context.Context, image []byte) (Vector, error)
	Locations func(ctx context.Context, batch []geo.GeoPoint) ([]Vector, error)
}

// EmbedImage calls f.Image.
func (f Funcs) EmbedImage(ctx context.Context, image []byte) (Vector, error) {
	return f.Image(ctx, image)
}

// EmbedLocations calls f.Locations.
func (f Funcs) EmbedLocations(ctx context.Context, batch []geo.GeoPoint) ([]Vector, error) {
	return f.Locations(ctx, batch)
}

// Normalize returns an L2-unit copy of v. It reports false when v is empty or
// its norm is zero or not finite, in which case no direction can be recovered.
func Normalize(v Vector) (Vector, bool) {
	if len(v) == 0 {
		return nil, false
	}
	norm := simd.L2Norm(v)
	if norm == 0 || math32.IsNaN(norm) || math32.IsInf(norm, 0) {
		return nil, false
	}
	out := make(Vector, len(v))
	inv := 1 / norm
	for i, x := range v {
		out[i] = x * inv
	}
	return out, true
}
