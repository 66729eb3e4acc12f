// Package fetch performs single-product HTTP fetches against the remote
// catalog API and classifies every outcome. Classification is what lets the
// retry policy decide retry-worthiness without inspecting protocol details.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for fetch operations.
var (
	fetchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_requests_total",
		Help: "Total product fetch requests by HTTP status",
	}, []string{"status"})

	fetchRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "harvest_request_duration_seconds",
		Help:    "Product fetch request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	})

	fetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_fetch_errors_total",
		Help: "Total classified fetch errors by kind",
	}, []string{"kind"})
)

// Fetcher retrieves the payload for one product ID. Implementations perform
// at most one network call per invocation and report every expected API or
// network condition as an *APIError, never as a panic.
type Fetcher interface {
	Fetch(ctx context.Context, id string) (json.RawMessage, error)
}

// Config holds the HTTP fetcher configuration.
type Config struct {
	// BaseURL is the product endpoint prefix; the product ID is appended
	// as the final path segment.
	BaseURL string

	// UserAgent is sent on every request.
	UserAgent string

	// Timeout bounds a single request including body read.
	Timeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		UserAgent: "product-harvester/1.0",
		Timeout:   10 * time.Second,
	}
}

// Client is the HTTP Fetcher implementation.
type Client struct {
	httpClient    *http.Client
	config        Config
	onRateLimited func(retryAfter time.Duration)
	logger        zerolog.Logger
}

// NewClient creates an HTTP fetcher. onRateLimited is invoked whenever the
// API answers 429, carrying the Retry-After duration if the server sent one
// (zero otherwise); pass nil to ignore the signal.
func NewClient(cfg Config, onRateLimited func(retryAfter time.Duration)) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Client{
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		config:        cfg,
		onRateLimited: onRateLimited,
		logger:        log.With().Str("component", "fetcher").Logger(),
	}, nil
}

// Fetch performs exactly one network call for the given product ID.
//
// A run-level cancellation does not abort a request that is already in
// flight: the request context is detached from ctx and bounded only by the
// configured timeout, so an in-flight outcome is always recorded.
func (c *Client) Fetch(ctx context.Context, id string) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		fetchRequestDuration.Observe(time.Since(start).Seconds())
	}()

	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.Timeout)
	defer cancel()

	url := c.config.BaseURL + "/" + id
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		kind := classifyTransportError(err)
		fetchErrorsTotal.WithLabelValues(string(kind)).Inc()
		fetchRequestsTotal.WithLabelValues("transport_error").Inc()
		c.logger.Warn().
			Err(err).
			Str("product_id", id).
			Str("kind", string(kind)).
			Msg("Transport error")
		return nil, &APIError{Kind: kind, Message: "transport error", Err: err}
	}
	defer resp.Body.Close()

	fetchRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		return nil, c.classifyStatus(id, resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		kind := classifyTransportError(err)
		fetchErrorsTotal.WithLabelValues(string(kind)).Inc()
		return nil, &APIError{Kind: kind, Message: "read body", Err: err}
	}

	if !json.Valid(body) {
		fetchErrorsTotal.WithLabelValues(string(KindMalformedResponse)).Inc()
		c.logger.Warn().
			Str("product_id", id).
			Int("body_bytes", len(body)).
			Msg("Response body is not valid JSON")
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Kind:       KindMalformedResponse,
			Message:    "response body is not valid JSON",
		}
	}

	c.logger.Debug().
		Str("product_id", id).
		Int("body_bytes", len(body)).
		Dur("duration", time.Since(start)).
		Msg("Product fetched")

	return body, nil
}

// classifyStatus maps a non-200 response to the failure taxonomy.
func (c *Client) classifyStatus(id string, resp *http.Response) *APIError {
	var kind FailureKind
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		kind = KindRateLimited
		if c.onRateLimited != nil {
			c.onRateLimited(parseRetryAfter(resp.Header))
		}
	case resp.StatusCode >= 500:
		kind = KindServerError
	case resp.StatusCode == http.StatusNotFound:
		kind = KindNotFound
	default:
		kind = KindClientError
	}

	fetchErrorsTotal.WithLabelValues(string(kind)).Inc()
	c.logger.Warn().
		Str("product_id", id).
		Int("status", resp.StatusCode).
		Str("kind", string(kind)).
		Msg("API error response")

	return &APIError{
		StatusCode: resp.StatusCode,
		Kind:       kind,
		Message:    resp.Status,
	}
}

// classifyTransportError distinguishes timeouts from other network failures.
func classifyTransportError(err error) FailureKind {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindConnectionError
}

// parseRetryAfter returns the Retry-After header as a duration, or zero if
// absent or unparseable. Only the delta-seconds form is supported.
func parseRetryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
