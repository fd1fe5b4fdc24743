package predictor

import (
	"github.com/23skdu/geoprobe/internal/geo"
	"github.com/23skdu/geoprobe/internal/ranking"
)

// RankedPrediction is one candidate location with its softmax confidence
type RankedPrediction struct {
	geo.GeoPoint
	Index      int     `json:"index"`
	Confidence float64 `json:"confidence"`
}

// LocationEstimate is the result of one inference call. Score is the confidence
// of the best single match, not a measure of the weighted estimate.
type LocationEstimate struct {
	Latitude       float64            `json:"latitude"`
	Longitude      float64            `json:"longitude"`
	Score          float64            `json:"score"`
	TopPredictions []RankedPrediction `json:"top_predictions"`
	ScoredPoints   int                `json:"scored_points"`
	SkippedBatches int                `json:"skipped_batches"`
}

// assemble packages the estimate with at most reportK of the ranked candidates.
// ranked must be non-empty.
func assemble(estimate geo.GeoPoint, ranked []ranking.Ranked, catalog *geo.Catalog, reportK int) *LocationEstimate {
	if reportK > len(ranked) {
		reportK = len(ranked)
	}
	top := make([]RankedPrediction, reportK)
	for i := range top {
		top[i] = RankedPrediction{
			GeoPoint:   catalog.At(ranked[i].Index),
			Index:      ranked[i].Index,
			Confidence: ranked[i].Confidence,
		}
	}
	return &LocationEstimate{
		Latitude:       estimate.Latitude,
		Longitude:      estimate.Longitude,
		Score:          ranked[0].Confidence,
		TopPredictions: top,
	}
}
