// Package geo holds the immutable coordinate catalog and the loaders that build it.
package geo

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"

	geoerrors "github.com/23skdu/geoprobe/internal/errors"
)

// GeoPoint is a single catalog coordinate in decimal degrees.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the point is finite and within WGS84 bounds.
func (p GeoPoint) Valid() bool {
	if math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude) ||
		math.IsInf(p.Latitude, 0) || math.IsInf(p.Longitude, 0) {
		return false
	}
	return p.Latitude >= -90 && p.Latitude <= 90 && p.Longitude >= -180 && p.Longitude <= 180
}

func (p GeoPoint) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", p.Latitude, p.Longitude)
}

// Span is a half-open [Start, End) range of catalog indices.
type Span struct {
	Start int
	End   int
}

// Len returns the number of indices covered by the span.
func (s Span) Len() int { return s.End - s.Start }

// Catalog is an ordered, read-only sequence of points. A point's index is its
// identity for the lifetime of the process. Safe for concurrent readers.
type Catalog struct {
	points      []GeoPoint
	fingerprint uint64
}

// NewCatalog copies points into a new catalog after validating every entry.
func NewCatalog(points []GeoPoint) (*Catalog, error) {
	cp := make([]GeoPoint, len(points))
	for i, p := range points {
		if !p.Valid() {
			return nil, geoerrors.NewValidationError("new_catalog", "coordinate out of range").
				WithContext("index", i).
				WithContext("point", p.String())
		}
		cp[i] = p
	}
	return &Catalog{points: cp, fingerprint: fingerprint(cp)}, nil
}

// Len returns the number of points.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.points)
}

// At returns the point at index i.
func (c *Catalog) At(i int) GeoPoint {
	return c.points[i]
}

// Batch returns a copy of the points in span so callers cannot mutate the catalog.
func (c *Catalog) Batch(s Span) []GeoPoint {
	out := make([]GeoPoint, s.Len())
	copy(out, c.points[s.Start:s.End])
	return out
}

// Spans partitions the catalog into consecutive spans of at most size points.
func (c *Catalog) Spans(size int) []Span {
	n := c.Len()
	if n == 0 || size <= 0 {
		return nil
	}
	spans := make([]Span, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		spans = append(spans, Span{Start: start, End: end})
	}
	return spans
}

// Fingerprint is an xxhash digest of every coordinate in order.
func (c *Catalog) Fingerprint() uint64 {
	if c == nil {
		return 0
	}
	return c.fingerprint
}

func fingerprint(points []GeoPoint) uint64 {
	d := xxhash.New()
	var buf [16]byte
	for _, p := range points {
		binary.LittleEndian.PutUint64(buf[0:8], math.Float64bits(p.Latitude))
		binary.LittleEndian.PutUint64(buf[8:16], math.Float64bits(p.Longitude))
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}
