package main

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	geoerrors "github.com/23skdu/geoprobe/internal/errors"
)

func TestValidateConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, ValidateConfig(&cfg))
}

func TestValidateConfig_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"empty catalog uri", func(c *Config) { c.Catalog.URI = "" }, ErrInvalidCatalogURI},
		{"empty embedder url", func(c *Config) { c.Embedder.URL = "" }, ErrInvalidEmbedderURL},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, ErrInvalidRequestTimeout},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, ErrInvalidLogFormat},
		{"log level", func(c *Config) { c.Log.Level = "trace" }, ErrInvalidLogLevel},
		{"inference", func(c *Config) { c.Inference.TopK = 0 }, geoerrors.ErrConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, ValidateConfig(&cfg), tt.want)
		})
	}
}

func TestValidateConfig_ValidLogFormats(t *testing.T) {
	for _, format := range []string{"json", "console", "text"} {
		cfg := DefaultConfig()
		cfg.Log.Format = format
		assert.NoError(t, ValidateConfig(&cfg), format)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	def := DefaultConfig()
	assert.Equal(t, def.Catalog, cfg.Catalog)
	assert.Equal(t, def.RequestTimeout, cfg.RequestTimeout)
	assert.Equal(t, def.Embedder.URL, cfg.Embedder.URL)
	assert.Equal(t, def.Embedder.Breaker.MaxFailures, cfg.Embedder.Breaker.MaxFailures)
	assert.Equal(t, def.Inference.BatchSize, cfg.Inference.BatchSize)
	assert.Equal(t, def.Inference.TopK, cfg.Inference.TopK)
	assert.Equal(t, def.Inference.ReportK, cfg.Inference.ReportK)
	assert.InDelta(t, math.Exp(4.5), cfg.Inference.LogitScale, 1e-12)
	assert.InDelta(t, 0.3, cfg.Inference.DecayRate, 1e-12)
	assert.NoError(t, ValidateConfig(&cfg))
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("GEOPROBE_CATALOG_URI", "s3://geo/catalog.parquet")
	t.Setenv("GEOPROBE_EMBEDDER_URL", "http://embedder:9000")
	t.Setenv("GEOPROBE_EMBEDDER_RATE_LIMIT_RPS", "25")
	t.Setenv("GEOPROBE_EMBEDDER_BREAKER_MAX_FAILURES", "3")
	t.Setenv("GEOPROBE_INFERENCE_DECAY_RATE", "0.5")
	t.Setenv("GEOPROBE_INFERENCE_TOP_K", "20")
	t.Setenv("GEOPROBE_LOG_LEVEL", "debug")
	t.Setenv("GEOPROBE_REQUEST_TIMEOUT", "30s")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "s3://geo/catalog.parquet", cfg.Catalog.URI)
	assert.Equal(t, "http://embedder:9000", cfg.Embedder.URL)
	assert.Equal(t, 25, cfg.Embedder.RateLimit.RPS)
	assert.Equal(t, uint32(3), cfg.Embedder.Breaker.MaxFailures)
	assert.Equal(t, 0.5, cfg.Inference.DecayRate)
	assert.Equal(t, 20, cfg.Inference.TopK)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("GEOPROBE_INFERENCE_REPORT_K=5\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("GEOPROBE_INFERENCE_REPORT_K") })

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Inference.ReportK)
}

func TestLoadConfig_MissingDotEnvIsIgnored(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}
