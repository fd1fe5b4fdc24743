package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog"

	"github.com/23skdu/geoprobe/internal/breaker"
	geoerrors "github.com/23skdu/geoprobe/internal/errors"
	"github.com/23skdu/geoprobe/internal/geo"
	"github.com/23skdu/geoprobe/internal/limiter"
	"github.com/23skdu/geoprobe/internal/metrics"
)

const (
	imagePath     = "/embed/image"
	locationsPath = "/embed/locations"

	// error bodies are read only for logging
	maxErrorBody = 1024
)

// HTTPConfig configures the embedding service client
type HTTPConfig struct {
	URL           string        `envconfig:"URL" default:"http://127.0.0.1:8000"`
	Timeout       time.Duration `envconfig:"TIMEOUT" default:"30s"`
	MaxImageBytes int           `envconfig:"MAX_IMAGE_BYTES" default:"20971520"`
	// PreferArrow asks the server for Arrow IPC location matrices instead of JSON
	PreferArrow bool `envconfig:"PREFER_ARROW" default:"true"`

	RateLimit limiter.Config   `envconfig:"RATE_LIMIT"`
	Breaker   breaker.Settings `envconfig:"BREAKER"`
}

// DefaultHTTPConfig returns the defaults used when no environment is set
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		URL:           "http://127.0.0.1:8000",
		Timeout:       30 * time.Second,
		MaxImageBytes: 20 << 20,
		PreferArrow:   true,
		Breaker: breaker.Settings{
			MaxFailures: 5,
			MaxRequests: 1,
			Timeout:     30 * time.Second,
		},
	}
}

// StatusError is a non-200 answer from the embedding service
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("embedding service returned status %d: %s", e.Code, e.Body)
}

// isProviderFailure reports whether err says something about the health of the
// embedding service. Request errors other than 429 are the caller's fault.
func isProviderFailure(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= http.StatusInternalServerError || se.Code == http.StatusTooManyRequests
	}
	return err != nil
}

type imageResponse struct {
	Embedding []float32 `json:"embedding"`
}

type locationsRequest struct {
	Coordinates [][2]float64 `json:"coordinates"`
}

type locationsResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// HTTPClient is a Provider backed by an external embedding model server.
// It never retries; failed calls surface to the caller immediately.
type HTTPClient struct {
	baseURL       string
	client        *http.Client
	limiter       *limiter.RateLimiter
	breaker       *breaker.CircuitBreaker
	mem           memory.Allocator
	maxImageBytes int
	preferArrow   bool
	logger        zerolog.Logger
}

// NewHTTPClient creates a client for the embedding service at cfg.URL
//
//nolint:gocritic // Logger passed by value for constructor simplicity
func NewHTTPClient(cfg HTTPConfig, logger zerolog.Logger) (*HTTPClient, error) {
	if cfg.URL == "" {
		return nil, geoerrors.NewConfigurationError("new_http_client", "embedding service url is empty")
	}
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = DefaultHTTPConfig().MaxImageBytes
	}

	logger = logger.With().Str("component", "embedder").Str("url", cfg.URL).Logger()

	bs := cfg.Breaker
	bs.Name = "embedder"
	bs.IsFailure = isProviderFailure
	bs.OnStateChange = func(name string, from, to breaker.State) {
		logger.Warn().
			Str("breaker", name).
			Stringer("from", from).
			Stringer("to", to).
			Msg("Embedding service breaker changed state")
	}

	return &HTTPClient{
		baseURL:       strings.TrimSuffix(cfg.URL, "/"),
		client:        &http.Client{Timeout: cfg.Timeout},
		limiter:       limiter.NewRateLimiter(cfg.RateLimit),
		breaker:       breaker.New(bs),
		mem:           memory.NewGoAllocator(),
		maxImageBytes: cfg.MaxImageBytes,
		preferArrow:   cfg.PreferArrow,
		logger:        logger,
	}, nil
}

// EmbedImage sends the raw image bytes and returns the image embedding.
func (c *HTTPClient) EmbedImage(ctx context.Context, image []byte) (Vector, error) {
	if len(image) > c.maxImageBytes {
		return nil, geoerrors.NewEmbeddingFailure("embed_image", "image exceeds size limit").
			WithContext("bytes", len(image)).
			WithContext("limit", c.maxImageBytes)
	}
	info, err := SniffImage(image)
	if err != nil {
		return nil, err
	}

	var out imageResponse
	err = c.post(ctx, "image", imagePath, "image/"+info.Format, "application/json", image, func(resp *http.Response) error {
		return json.NewDecoder(resp.Body).Decode(&out)
	})
	if err != nil {
		return nil, geoerrors.WrapEmbeddingFailure(err, "embed_image", "embedding service call failed")
	}
	if len(out.Embedding) == 0 {
		return nil, geoerrors.NewEmbeddingFailure("embed_image", "embedding service returned no data")
	}
	return out.Embedding, nil
}

// EmbedLocations returns one embedding per coordinate in batch order.
func (c *HTTPClient) EmbedLocations(ctx context.Context, batch []geo.GeoPoint) ([]Vector, error) {
	req := locationsRequest{Coordinates: make([][2]float64, len(batch))}
	for i, p := range batch {
		req.Coordinates[i] = [2]float64{p.Latitude, p.Longitude}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal locations request: %w", err)
	}

	accept := "application/json"
	if c.preferArrow {
		accept = ArrowStreamContentType + ", application/json;q=0.5"
	}

	var out []Vector
	err = c.post(ctx, "locations", locationsPath, "application/json", accept, body, func(resp *http.Response) error {
		mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
		if mediaType == ArrowStreamContentType {
			vecs, err := DecodeArrowStream(resp.Body, c.mem)
			out = vecs
			return err
		}
		var lr locationsResponse
		if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
			return err
		}
		out = make([]Vector, len(lr.Embeddings))
		for i, e := range lr.Embeddings {
			out[i] = e
		}
		return nil
	})
	if err != nil {
		return nil, geoerrors.WrapEmbeddingFailure(err, "embed_locations", "embedding service call failed").
			WithContext("batch_size", len(batch))
	}
	if len(out) != len(batch) {
		return nil, geoerrors.NewEmbeddingFailure("embed_locations", "embedding count does not match batch").
			WithContext("batch_size", len(batch)).
			WithContext("embeddings", len(out))
	}
	return out, nil
}

func (c *HTTPClient) post(ctx context.Context, kind, path, contentType, accept string, body []byte, decode func(*http.Response) error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		metrics.EmbedRequestsTotal.WithLabelValues(kind, "throttled").Inc()
		return err
	}

	start := time.Now()
	err := c.breaker.ExecuteContext(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Accept", accept)

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
		}
		return decode(resp)
	})
	metrics.EmbedRequestDurationSeconds.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	status := "ok"
	if err != nil {
		status = "error"
		if errors.Is(err, breaker.ErrOpenState) {
			status = "rejected"
		}
		c.logger.Debug().Err(err).Str("kind", kind).Msg("Embedding request failed")
	}
	metrics.EmbedRequestsTotal.WithLabelValues(kind, status).Inc()
	return err
}
