package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/23skdu/geoprobe/internal/embedding"
	geoerrors "github.com/23skdu/geoprobe/internal/errors"
	"github.com/23skdu/geoprobe/internal/geo"
	"github.com/23skdu/geoprobe/internal/logging"
	"github.com/23skdu/geoprobe/internal/metrics"
	"github.com/23skdu/geoprobe/internal/predictor"
)

// Exit codes, one per failure kind
const (
	exitOK = iota
	exitFailure
	exitUsage
	exitEmbedding
	exitEmptyScores
	exitDegenerate
	exitTimeout
)

// result is one line of output per image
type result struct {
	Image    string                      `json:"image"`
	Estimate *predictor.LocationEstimate `json:"estimate,omitempty"`
	Error    string                      `json:"error,omitempty"`
	Kind     string                      `json:"kind,omitempty"`
}

func main() {
	envFile := flag.String("env", ".env", "Optional dotenv file read before the environment")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-env file] image [image...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(exitUsage)
	}

	cfg, err := LoadConfig(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(exitFailure)
	}
	cfg.Log.Output = os.Stderr

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, cfg, flag.Args(), os.Stdout)
	stop()
	os.Exit(code)
}

//nolint:gocritic // Config passed by value, read once at startup
func run(ctx context.Context, cfg Config, images []string, out io.Writer) int {
	if err := ValidateConfig(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return exitFailure
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return exitFailure
	}

	if cfg.MetricsAddr != "" {
		srv := startMetricsServer(cfg.MetricsAddr, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	p, err := setup(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Startup failed")
		return exitFailure
	}

	enc := json.NewEncoder(out)
	code := exitOK
	for _, path := range images {
		if ctx.Err() != nil {
			break
		}
		res := predictFile(ctx, p, path, cfg.RequestTimeout)
		if err := enc.Encode(res.result); err != nil {
			logger.Error().Err(err).Msg("Failed to write result")
			return exitFailure
		}
		if code == exitOK && res.code != exitOK {
			code = res.code
		}
	}
	return code
}

//nolint:gocritic // Config passed by value, read once at startup
func setup(ctx context.Context, cfg Config, logger zerolog.Logger) (*predictor.Predictor, error) {
	start := time.Now()
	catalog, err := geo.Open(ctx, cfg.Catalog)
	if err != nil {
		return nil, err
	}
	metrics.CatalogPoints.Set(float64(catalog.Len()))
	logger.Info().
		Str("uri", cfg.Catalog.URI).
		Int("points", catalog.Len()).
		Str("fingerprint", strconv.FormatUint(catalog.Fingerprint(), 16)).
		Dur("duration", time.Since(start)).
		Msg("Catalog loaded")

	client, err := embedding.NewHTTPClient(cfg.Embedder, logger)
	if err != nil {
		return nil, err
	}
	return predictor.New(cfg.Inference, catalog, client, logger)
}

type fileResult struct {
	result result
	code   int
}

func predictFile(ctx context.Context, p *predictor.Predictor, path string, timeout time.Duration) fileResult {
	image, err := os.ReadFile(path)
	if err != nil {
		return fileResult{result: result{Image: path, Error: err.Error(), Kind: "read"}, code: exitFailure}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	est, err := p.PredictLocation(ctx, image)
	if err != nil {
		kind, code, msg := describeError(err)
		return fileResult{result: result{Image: path, Error: msg, Kind: kind}, code: code}
	}
	return fileResult{result: result{Image: path, Estimate: est}}
}

// describeError maps each failure kind to its own message and exit code
func describeError(err error) (kind string, code int, msg string) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout", exitTimeout, "prediction did not finish before the deadline"
	case errors.Is(err, context.Canceled):
		return "canceled", exitTimeout, "prediction was canceled"
	case errors.Is(err, geoerrors.ErrEmbeddingFailure):
		return string(geoerrors.ErrorTypeEmbedding), exitEmbedding, "the image could not be embedded: " + err.Error()
	case errors.Is(err, geoerrors.ErrEmptyScoreSet):
		return string(geoerrors.ErrorTypeEmptyScores), exitEmptyScores, "no catalog location could be scored: " + err.Error()
	case errors.Is(err, geoerrors.ErrDegenerateAggregation):
		return string(geoerrors.ErrorTypeDegenerate), exitDegenerate, "candidate weights collapsed to zero: " + err.Error()
	default:
		return "error", exitFailure, err.Error()
	}
}

//nolint:gocritic // Logger passed by value for simplicity
func startMetricsServer(addr string, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("address", addr).Msg("Starting metrics server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	return srv
}
