// Command catalog-build converts a coordinate catalog from any supported source
// (CSV, zstd CSV, Parquet, S3, Postgres) into a zstd-compressed Parquet file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"

	"github.com/23skdu/geoprobe/internal/geo"
	"github.com/23skdu/geoprobe/internal/logging"
)

var errUsage = errors.New("usage: catalog-build -in <uri> -out <file.parquet>")

func main() {
	in := flag.String("in", "", "Source catalog URI (path, s3://bucket/key or postgres:// DSN)")
	out := flag.String("out", "", "Destination parquet file")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	logger, err := logging.NewLogger(logging.Config{Format: "console", Level: *logLevel, Output: os.Stderr})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// S3 and SQL settings come from the same variables the server reads
	var src geo.SourceConfig
	if err := envconfig.Process("GEOPROBE_CATALOG", &src); err != nil {
		logger.Fatal().Err(err).Msg("Failed to read catalog environment")
	}
	if *in != "" {
		src.URI = *in
	}

	if err := build(context.Background(), src, *out, os.Stdout, logger); err != nil {
		if errors.Is(err, errUsage) {
			flag.Usage()
		}
		logger.Fatal().Err(err).Msg("Catalog build failed")
	}
}

//nolint:gocritic // Logger passed by value for simplicity
func build(ctx context.Context, src geo.SourceConfig, out string, summary io.Writer, logger zerolog.Logger) error {
	if src.URI == "" || out == "" {
		return errUsage
	}

	start := time.Now()
	catalog, err := geo.Open(ctx, src)
	if err != nil {
		return err
	}
	logger.Info().Str("uri", src.URI).Int("points", catalog.Len()).Dur("duration", time.Since(start)).Msg("Catalog read")

	tmp, err := os.CreateTemp(filepath.Dir(out), ".catalog-*.parquet")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := geo.WriteParquet(tmp, catalog); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write parquet: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync parquet: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close parquet: %w", err)
	}
	if err := os.Rename(tmp.Name(), out); err != nil {
		return fmt.Errorf("rename parquet: %w", err)
	}

	fp := strconv.FormatUint(catalog.Fingerprint(), 16)
	logger.Info().Str("out", out).Str("fingerprint", fp).Msg("Catalog written")
	_, err = fmt.Fprintf(summary, "%d points, fingerprint %s\n", catalog.Len(), fp)
	return err
}
