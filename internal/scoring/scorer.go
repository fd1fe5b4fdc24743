// Package scoring computes the similarity between an image embedding and every
// catalog coordinate, one fixed-size batch of coordinates at a time.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/23skdu/geoprobe/internal/embedding"
	geoerrors "github.com/23skdu/geoprobe/internal/errors"
	"github.com/23skdu/geoprobe/internal/geo"
	"github.com/23skdu/geoprobe/internal/metrics"
	"github.com/23skdu/geoprobe/internal/simd"
)

// DefaultLogitScale is exp(4.5), the temperature the location model was trained with.
var DefaultLogitScale = math.Exp(4.5)

const (
	DefaultBatchSize   = 1000
	DefaultConcurrency = 4
)

var (
	errNoData         = errors.New("provider returned no embeddings")
	errCountMismatch  = errors.New("embedding count does not match batch size")
	errDimensionCheck = errors.New("location embedding dimension differs from image embedding")
)

// Config controls batching and calibration of the scorer
type Config struct {
	BatchSize  int     `envconfig:"BATCH_SIZE" default:"1000"`
	LogitScale float64 `envconfig:"LOGIT_SCALE" default:"90.01713130052181"`
	// Concurrency bounds how many batches are in flight at once (1 = sequential)
	Concurrency int `envconfig:"CONCURRENCY" default:"4"`
}

// DefaultConfig returns the reference calibration
func DefaultConfig() Config {
	return Config{
		BatchSize:   DefaultBatchSize,
		LogitScale:  DefaultLogitScale,
		Concurrency: DefaultConcurrency,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.BatchSize <= 0 {
		return geoerrors.NewConfigurationError("scoring_config", "batch size must be positive")
	}
	if c.LogitScale <= 0 || math.IsNaN(c.LogitScale) || math.IsInf(c.LogitScale, 0) {
		return geoerrors.NewConfigurationError("scoring_config", "logit scale must be a positive finite number")
	}
	if c.Concurrency <= 0 {
		return geoerrors.NewConfigurationError("scoring_config", "concurrency must be positive")
	}
	return nil
}

// ScoredCandidate is the raw similarity of one catalog point to the image
type ScoredCandidate struct {
	Index int
	Score float64
}

// ScoreSet holds the scores of every point that could be scored, in catalog order.
type ScoreSet struct {
	Candidates    []ScoredCandidate
	Scored        *roaring.Bitmap
	Batches       int
	FailedBatches int
}

// Scorer is stateless between calls and safe for concurrent use.
type Scorer struct {
	cfg    Config
	logger zerolog.Logger
}

// New creates a Scorer
//
//nolint:gocritic // Logger passed by value for constructor simplicity
func New(cfg Config, logger zerolog.Logger) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{
		cfg:    cfg,
		logger: logger.With().Str("component", "scorer").Logger(),
	}, nil
}

// Config returns the scorer configuration
func (s *Scorer) Config() Config {
	return s.cfg
}

// Score compares image, which must already be L2-normalized, against every
// catalog point. A batch whose embedding request fails is skipped and its
// points stay unscored; the request only fails if ctx is done.
func (s *Scorer) Score(ctx context.Context, image embedding.Vector, catalog *geo.Catalog, embedder embedding.LocationEmbedder) (*ScoreSet, error) {
	if len(image) == 0 {
		return nil, geoerrors.NewEmbeddingFailure("score", "image embedding is empty")
	}

	spans := catalog.Spans(s.cfg.BatchSize)
	results := make([][]float64, len(spans))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, span := range spans {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			scores, err := s.scoreBatch(gctx, image, catalog.Batch(span), embedder)
			if err != nil {
				metrics.ScoringBatchesTotal.WithLabelValues("skipped").Inc()
				s.logger.Warn().
					Err(err).
					Int("batch", i).
					Int("start", span.Start).
					Int("end", span.End).
					Dur("duration", time.Since(start)).
					Msg("Skipping catalog batch")
				return nil
			}
			metrics.ScoringBatchesTotal.WithLabelValues("ok").Inc()
			results[i] = scores
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	set := &ScoreSet{
		Candidates: make([]ScoredCandidate, 0, catalog.Len()),
		Scored:     roaring.New(),
		Batches:    len(spans),
	}
	for i, span := range spans {
		if results[i] == nil {
			set.FailedBatches++
			continue
		}
		for j, score := range results[i] {
			if math.IsNaN(score) || math.IsInf(score, 0) {
				continue
			}
			idx := span.Start + j
			set.Candidates = append(set.Candidates, ScoredCandidate{Index: idx, Score: score})
			set.Scored.Add(uint32(idx))
		}
	}
	metrics.ScoredPoints.Observe(float64(len(set.Candidates)))

	return set, nil
}

// scoreBatch returns one scaled similarity per point. Points whose embedding has
// no direction get NaN and are dropped by the caller.
func (s *Scorer) scoreBatch(ctx context.Context, image embedding.Vector, batch []geo.GeoPoint, embedder embedding.LocationEmbedder) ([]float64, error) {
	vecs, err := embedder.EmbedLocations(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, errNoData
	}
	if len(vecs) != len(batch) {
		return nil, fmt.Errorf("%w: got %d, want %d", errCountMismatch, len(vecs), len(batch))
	}

	dims := len(image)
	zero := make([]float32, dims)
	normed := make([][]float32, len(vecs))
	degenerate := make([]bool, len(vecs))
	for i, v := range vecs {
		if len(v) != dims {
			return nil, fmt.Errorf("%w: got %d, want %d", errDimensionCheck, len(v), dims)
		}
		nv, ok := embedding.Normalize(v)
		if !ok {
			normed[i] = zero
			degenerate[i] = true
			continue
		}
		normed[i] = nv
	}

	dots := make([]float32, len(normed))
	if err := simd.DotProductBatch(image, normed, dots); err != nil {
		return nil, err
	}

	scores := make([]float64, len(dots))
	for i, d := range dots {
		if degenerate[i] {
			scores[i] = math.NaN()
			continue
		}
		scores[i] = float64(d) * s.cfg.LogitScale
	}
	return scores, nil
}
