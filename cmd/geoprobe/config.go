package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/23skdu/geoprobe/internal/embedding"
	"github.com/23skdu/geoprobe/internal/geo"
	"github.com/23skdu/geoprobe/internal/logging"
	"github.com/23skdu/geoprobe/internal/predictor"
)

// EnvPrefix prefixes every environment variable, e.g. GEOPROBE_CATALOG_URI
const EnvPrefix = "GEOPROBE"

// Config validation errors
var (
	ErrInvalidCatalogURI     = errors.New("catalog uri cannot be empty")
	ErrInvalidEmbedderURL    = errors.New("embedder url cannot be empty")
	ErrInvalidRequestTimeout = errors.New("request_timeout must be positive")
	ErrInvalidLogFormat      = errors.New("log_format must be 'json' or 'console'")
	ErrInvalidLogLevel       = errors.New("log_level must be debug, info, warn, or error")
)

// Config is the full process configuration
type Config struct {
	Log       logging.Config       `envconfig:"LOG"`
	Catalog   geo.SourceConfig     `envconfig:"CATALOG"`
	Embedder  embedding.HTTPConfig `envconfig:"EMBEDDER"`
	Inference predictor.Config     `envconfig:"INFERENCE"`

	// MetricsAddr serves /metrics while images are processed; empty disables it
	MetricsAddr    string        `envconfig:"METRICS_ADDR"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"2m"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		Log:            logging.DefaultConfig(),
		Catalog:        geo.SourceConfig{URI: "./data/catalog.parquet", Table: "catalog_points", OrderBy: "id", S3Region: "us-east-1"},
		Embedder:       embedding.DefaultHTTPConfig(),
		Inference:      predictor.DefaultConfig(),
		RequestTimeout: 2 * time.Minute,
	}
}

// LoadConfig reads an optional dotenv file, then the environment
func LoadConfig(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}
	return cfg, nil
}

// ValidateConfig validates the configuration and returns an error if invalid
func ValidateConfig(cfg *Config) error {
	if cfg.Catalog.URI == "" {
		return ErrInvalidCatalogURI
	}
	if cfg.Embedder.URL == "" {
		return ErrInvalidEmbedderURL
	}
	if cfg.RequestTimeout <= 0 {
		return ErrInvalidRequestTimeout
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "json", "console", "text":
	default:
		return ErrInvalidLogFormat
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}
	return cfg.Inference.Validate()
}
