package aggregate

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	geoerrors "github.com/23skdu/geoprobe/internal/errors"
	"github.com/23skdu/geoprobe/internal/geo"
	"github.com/23skdu/geoprobe/internal/ranking"
	"github.com/23skdu/geoprobe/internal/scoring"
)

func mustAggregator(t *testing.T) *Aggregator {
	t.Helper()
	a, err := New(DefaultDecayRate)
	require.NoError(t, err)
	return a
}

func TestNew_RejectsBadDecay(t *testing.T) {
	for _, d := range []float64{-0.1, math.NaN(), math.Inf(1)} {
		_, err := New(d)
		assert.ErrorIs(t, err, geoerrors.ErrConfiguration, "decay %v", d)
	}
	_, err := New(0)
	assert.NoError(t, err)
}

func TestWeight(t *testing.T) {
	a := mustAggregator(t)
	assert.Equal(t, 0.5, a.Weight(0.5, 0))
	assert.InDelta(t, 0.5*math.Exp(-0.6), a.Weight(0.5, 2), 1e-15)
}

func TestAggregate(t *testing.T) {
	a := mustAggregator(t)
	preds := []Prediction{
		{Point: geo.GeoPoint{Latitude: 0, Longitude: 0}, Confidence: 0.6},
		{Point: geo.GeoPoint{Latitude: 10, Longitude: -20}, Confidence: 0.4},
	}

	got, err := a.Aggregate(preds)
	require.NoError(t, err)

	w0 := 0.6
	w1 := 0.4 * math.Exp(-0.3)
	assert.InDelta(t, 10*w1/(w0+w1), got.Latitude, 1e-12)
	assert.InDelta(t, -20*w1/(w0+w1), got.Longitude, 1e-12)
}

func TestAggregate_Single(t *testing.T) {
	a := mustAggregator(t)
	p := geo.GeoPoint{Latitude: 48.8566, Longitude: 2.3522}

	got, err := a.Aggregate([]Prediction{{Point: p, Confidence: 1}})
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestAggregate_Degenerate(t *testing.T) {
	a := mustAggregator(t)
	tests := map[string][]Prediction{
		"empty":          nil,
		"zero":           {{Point: geo.GeoPoint{Latitude: 1, Longitude: 1}}, {Point: geo.GeoPoint{Latitude: 2, Longitude: 2}}},
		"nan confidence": {{Point: geo.GeoPoint{Latitude: 1, Longitude: 1}, Confidence: math.NaN()}},
	}
	for name, preds := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := a.Aggregate(preds)
			assert.ErrorIs(t, err, geoerrors.ErrDegenerateAggregation)
		})
	}
}

// Scores from the worked example: (10,20) and (10,21) are close, (50,60) is an outlier.
func TestAggregate_FavorsCloseCluster(t *testing.T) {
	catalog := []geo.GeoPoint{{Latitude: 10, Longitude: 20}, {Latitude: 10, Longitude: 21}, {Latitude: 50, Longitude: 60}}
	cands := []scoring.ScoredCandidate{{Index: 0, Score: 0.9}, {Index: 1, Score: 0.85}, {Index: 2, Score: 0.1}}

	ranked, err := ranking.SelectTopK(cands, 2)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, 0, ranked[0].Index)
	assert.Equal(t, 1, ranked[1].Index)

	preds := make([]Prediction, len(ranked))
	for i, r := range ranked {
		preds[i] = Prediction{Point: catalog[r.Index], Confidence: r.Confidence}
	}
	got, err := mustAggregator(t).Aggregate(preds)
	require.NoError(t, err)

	assert.InDelta(t, 10, got.Latitude, 1e-9)
	assert.Greater(t, got.Longitude, 20.0)
	assert.Less(t, got.Longitude, 21.0)
}

func TestAggregateProperties(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())
	a := mustAggregator(t)

	properties.Property("swapping tied candidates does not move the estimate", prop.ForAll(
		func(lats []float64, i, j int) bool {
			n := len(lats)
			i, j = i%n, j%n
			points := make([]geo.GeoPoint, n)
			cands := make([]scoring.ScoredCandidate, n)
			for k, lat := range lats {
				points[k] = geo.GeoPoint{Latitude: lat, Longitude: -lat}
				cands[k] = scoring.ScoredCandidate{Index: k, Score: 1}
			}
			swapped := append([]scoring.ScoredCandidate(nil), cands...)
			swapped[i], swapped[j] = swapped[j], swapped[i]

			estimate := func(c []scoring.ScoredCandidate) geo.GeoPoint {
				ranked, err := ranking.SelectTopK(c, ranking.DefaultTopK)
				if err != nil {
					return geo.GeoPoint{Latitude: math.NaN()}
				}
				preds := make([]Prediction, len(ranked))
				for k, r := range ranked {
					preds[k] = Prediction{Point: points[r.Index], Confidence: r.Confidence}
				}
				p, err := a.Aggregate(preds)
				if err != nil {
					return geo.GeoPoint{Latitude: math.NaN()}
				}
				return p
			}
			return estimate(cands) == estimate(swapped)
		},
		gen.SliceOfN(12, gen.Float64Range(-90, 90)),
		gen.IntRange(0, 11),
		gen.IntRange(0, 11),
	))

	properties.Property("estimate lies within the candidates' bounding box", prop.ForAll(
		func(lats, confs []float64) bool {
			preds := make([]Prediction, len(lats))
			lo, hi := math.Inf(1), math.Inf(-1)
			for k, lat := range lats {
				preds[k] = Prediction{Point: geo.GeoPoint{Latitude: lat}, Confidence: confs[k]}
				lo = math.Min(lo, lat)
				hi = math.Max(hi, lat)
			}
			p, err := a.Aggregate(preds)
			if err != nil {
				return false
			}
			return p.Latitude >= lo-1e-9 && p.Latitude <= hi+1e-9
		},
		gen.SliceOfN(5, gen.Float64Range(-90, 90)),
		gen.SliceOfN(5, gen.Float64Range(0.01, 1)),
	))

	properties.TestingRun(t)
}
