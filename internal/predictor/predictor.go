// Package predictor is the image geolocation entry point. A Predictor is built
// once at startup with its catalog and embedding provider and is then safe for
// concurrent use.
package predictor

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/23skdu/geoprobe/internal/aggregate"
	"github.com/23skdu/geoprobe/internal/embedding"
	geoerrors "github.com/23skdu/geoprobe/internal/errors"
	"github.com/23skdu/geoprobe/internal/geo"
	"github.com/23skdu/geoprobe/internal/metrics"
	"github.com/23skdu/geoprobe/internal/ranking"
	"github.com/23skdu/geoprobe/internal/scoring"
)

// Predictor holds everything one inference call needs. It has no mutable state.
type Predictor struct {
	cfg        Config
	catalog    *geo.Catalog
	provider   embedding.Provider
	scorer     *scoring.Scorer
	aggregator *aggregate.Aggregator
	logger     zerolog.Logger
}

// New validates cfg and wires the pipeline
//
//nolint:gocritic // Logger passed by value for constructor simplicity
func New(cfg Config, catalog *geo.Catalog, provider embedding.Provider, logger zerolog.Logger) (*Predictor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if catalog == nil {
		return nil, geoerrors.NewConfigurationError("new_predictor", "catalog is nil")
	}
	if provider == nil {
		return nil, geoerrors.NewConfigurationError("new_predictor", "embedding provider is nil")
	}

	scorer, err := scoring.New(cfg.Scoring(), logger)
	if err != nil {
		return nil, err
	}
	agg, err := aggregate.New(cfg.DecayRate)
	if err != nil {
		return nil, err
	}

	return &Predictor{
		cfg:        cfg,
		catalog:    catalog,
		provider:   provider,
		scorer:     scorer,
		aggregator: agg,
		logger:     logger.With().Str("component", "predictor").Logger(),
	}, nil
}

// Catalog returns the catalog the predictor scores against
func (p *Predictor) Catalog() *geo.Catalog {
	return p.catalog
}

// PredictLocation estimates where image was taken. Errors match
// ErrEmbeddingFailure, ErrEmptyScoreSet or ErrDegenerateAggregation, or the
// context error when ctx ends first.
func (p *Predictor) PredictLocation(ctx context.Context, image []byte) (*LocationEstimate, error) {
	start := time.Now()
	log := p.logger.With().Str("request_id", uuid.NewString()).Logger()

	est, err := p.predict(ctx, log, image)

	metrics.PredictionDurationSeconds.Observe(time.Since(start).Seconds())
	metrics.PredictionsTotal.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		log.Error().Err(err).Dur("duration", time.Since(start)).Msg("Location prediction failed")
		return nil, err
	}

	metrics.TopConfidence.Observe(est.Score)
	log.Info().
		Float64("latitude", est.Latitude).
		Float64("longitude", est.Longitude).
		Float64("score", est.Score).
		Int("scored_points", est.ScoredPoints).
		Int("skipped_batches", est.SkippedBatches).
		Dur("duration", time.Since(start)).
		Msg("Location predicted")
	return est, nil
}

//nolint:gocritic // Logger passed by value to carry the request id
func (p *Predictor) predict(ctx context.Context, log zerolog.Logger, image []byte) (*LocationEstimate, error) {
	raw, err := p.provider.EmbedImage(ctx, image)
	if err != nil {
		if errors.Is(err, geoerrors.ErrEmbeddingFailure) {
			return nil, err
		}
		return nil, geoerrors.WrapEmbeddingFailure(err, "predict_location", "image embedding failed")
	}
	vec, ok := embedding.Normalize(raw)
	if !ok {
		return nil, geoerrors.NewEmbeddingFailure("predict_location", "image embedding is empty or has no direction").
			WithContext("dims", len(raw))
	}
	log.Debug().Int("dims", len(vec)).Int("catalog_points", p.catalog.Len()).Msg("Image embedded")

	set, err := p.scorer.Score(ctx, vec, p.catalog, p.provider)
	if err != nil {
		return nil, err
	}
	if len(set.Candidates) == 0 {
		return nil, geoerrors.NewEmptyScoreSet("predict_location", "no catalog point could be scored").
			WithContext("catalog_points", p.catalog.Len()).
			WithContext("batches", set.Batches).
			WithContext("failed_batches", set.FailedBatches)
	}

	ranked, err := ranking.SelectTopK(set.Candidates, p.cfg.TopK)
	if err != nil {
		return nil, err
	}

	preds := make([]aggregate.Prediction, len(ranked))
	for i, r := range ranked {
		preds[i] = aggregate.Prediction{Point: p.catalog.At(r.Index), Confidence: r.Confidence}
	}
	point, err := p.aggregator.Aggregate(preds)
	if err != nil {
		return nil, err
	}

	est := assemble(point, ranked, p.catalog, p.cfg.ReportK)
	est.ScoredPoints = int(set.Scored.GetCardinality())
	est.SkippedBatches = set.FailedBatches
	return est, nil
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	if t, ok := geoerrors.TypeOf(err); ok {
		return string(t)
	}
	return "error"
}
