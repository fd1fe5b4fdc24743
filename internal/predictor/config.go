package predictor

import (
	"github.com/23skdu/geoprobe/internal/aggregate"
	geoerrors "github.com/23skdu/geoprobe/internal/errors"
	"github.com/23skdu/geoprobe/internal/ranking"
	"github.com/23skdu/geoprobe/internal/scoring"
)

// DefaultReportK caps the predictions returned to the caller
const DefaultReportK = 8

// Config holds the inference calibration. LogitScale and DecayRate come from the
// location model's training setup and are not derived here.
type Config struct {
	BatchSize   int     `envconfig:"BATCH_SIZE" default:"1000"`
	LogitScale  float64 `envconfig:"LOGIT_SCALE" default:"90.01713130052181"`
	Concurrency int     `envconfig:"CONCURRENCY" default:"4"`
	DecayRate   float64 `envconfig:"DECAY_RATE" default:"0.3"`
	// TopK is the aggregation window, ReportK the reporting window
	TopK    int `envconfig:"TOP_K" default:"10"`
	ReportK int `envconfig:"REPORT_K" default:"8"`
}

// DefaultConfig returns the reference configuration
func DefaultConfig() Config {
	return Config{
		BatchSize:   scoring.DefaultBatchSize,
		LogitScale:  scoring.DefaultLogitScale,
		Concurrency: scoring.DefaultConcurrency,
		DecayRate:   aggregate.DefaultDecayRate,
		TopK:        ranking.DefaultTopK,
		ReportK:     DefaultReportK,
	}
}

// Scoring returns the scorer part of the configuration
func (c Config) Scoring() scoring.Config {
	return scoring.Config{
		BatchSize:   c.BatchSize,
		LogitScale:  c.LogitScale,
		Concurrency: c.Concurrency,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if err := c.Scoring().Validate(); err != nil {
		return err
	}
	if c.TopK <= 0 {
		return geoerrors.NewConfigurationError("predictor_config", "top k must be positive").
			WithContext("top_k", c.TopK)
	}
	if c.ReportK <= 0 || c.ReportK > c.TopK {
		return geoerrors.NewConfigurationError("predictor_config", "report k must be between 1 and top k").
			WithContext("report_k", c.ReportK).
			WithContext("top_k", c.TopK)
	}
	return nil
}
