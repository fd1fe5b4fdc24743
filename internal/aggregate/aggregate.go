// Package aggregate combines ranked candidate locations into one point estimate.
package aggregate

import (
	"math"

	geoerrors "github.com/23skdu/geoprobe/internal/errors"
	"github.com/23skdu/geoprobe/internal/geo"
)

// DefaultDecayRate is the per-rank exponential decay of candidate weights
const DefaultDecayRate = 0.3

// Prediction is one ranked candidate. Its position in the slice passed to
// Aggregate is its rank.
type Prediction struct {
	Point      geo.GeoPoint
	Confidence float64
}

// Aggregator computes rank-decayed weighted means
type Aggregator struct {
	decayRate float64
}

// New creates an Aggregator. A decay rate of zero weights by confidence alone.
func New(decayRate float64) (*Aggregator, error) {
	if decayRate < 0 || math.IsNaN(decayRate) || math.IsInf(decayRate, 0) {
		return nil, geoerrors.NewConfigurationError("new_aggregator", "decay rate must be a non-negative finite number").
			WithContext("decay_rate", decayRate)
	}
	return &Aggregator{decayRate: decayRate}, nil
}

// DecayRate returns the configured decay rate
func (a *Aggregator) DecayRate() float64 {
	return a.decayRate
}

// Weight returns confidence * exp(-rank * decayRate)
func (a *Aggregator) Weight(confidence float64, rank int) float64 {
	return confidence * math.Exp(-float64(rank)*a.decayRate)
}

// Aggregate returns the weighted mean of the prediction coordinates, latitude and
// longitude independently. Fails with DegenerateAggregation when the weights sum
// to zero or are not finite.
func (a *Aggregator) Aggregate(preds []Prediction) (geo.GeoPoint, error) {
	var total, lat, lon float64
	for i, p := range preds {
		w := a.Weight(p.Confidence, i)
		total += w
		lat += w * p.Point.Latitude
		lon += w * p.Point.Longitude
	}

	if total == 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return geo.GeoPoint{}, geoerrors.NewDegenerateAggregation("aggregate", "total weight is not usable").
			WithContext("predictions", len(preds)).
			WithContext("total_weight", total)
	}
	return geo.GeoPoint{Latitude: lat / total, Longitude: lon / total}, nil
}
