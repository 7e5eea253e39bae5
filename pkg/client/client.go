// Package client provides the request executor shared by the GOV.UK content
// and search clients: every call is admitted by the process-wide rate
// limiter, retried with backoff and decoded as JSON.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/govuk-api-client/pkg/logging"
	"github.com/Sternrassler/govuk-api-client/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the public GOV.UK host serving both APIs.
const DefaultBaseURL = "https://www.gov.uk"

// Prometheus metrics for GOV.UK API requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "govuk_requests_total",
		Help: "Total GOV.UK API attempts by api and status",
	}, []string{"api", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "govuk_request_duration_seconds",
		Help:    "GOV.UK API call duration in seconds, retries included",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"api"})
)

// Executor performs one logical GET and returns the decoded JSON body.
// The content and search clients depend on this interface.
type Executor interface {
	Execute(ctx context.Context, target string) (json.RawMessage, error)
	URL(path string, query url.Values) string
}

// Client is the request executor.
type Client struct {
	httpClient *http.Client
	limiter    ratelimit.Limiter
	baseURL    string
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the scheme and host of the API (default DefaultBaseURL).
	BaseURL string

	// UserAgent is sent with every request.
	UserAgent string

	// Limiter admits every attempt. Nil uses ratelimit.Shared(), the
	// process-wide budget.
	Limiter ratelimit.Limiter

	// Retry configures the attempt budget and backoff.
	Retry RetryConfig

	// Timeout bounds a single attempt.
	Timeout time.Duration

	// HTTPClient overrides the transport (Timeout is then ignored).
	HTTPClient *http.Client
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		UserAgent: userAgent,
		Retry:     DefaultRetryConfig(),
		Timeout:   30 * time.Second,
	}
}

// New creates a new request executor.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url must be absolute (got %q)", cfg.BaseURL)
	}

	if cfg.Retry.MaxAttempts < 1 {
		return nil, fmt.Errorf("max_attempts must be >= 1 (got %d)", cfg.Retry.MaxAttempts)
	}

	limiter := cfg.Limiter
	if limiter == nil {
		limiter = ratelimit.Shared()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		httpClient: httpClient,
		limiter:    limiter,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		config:     cfg,
		logger:     logging.NewLogger(logging.ComponentClient),
	}, nil
}

// URL joins path and query onto the base URL.
func (c *Client) URL(path string, query url.Values) string {
	target := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if encoded := query.Encode(); encoded != "" {
		target += "?" + encoded
	}
	return target
}

// Execute fetches target and returns its JSON body. Every attempt takes one
// admission from the limiter; any failure (transport, non-2xx status,
// invalid JSON) is retried until the attempt budget runs out.
func (c *Client) Execute(ctx context.Context, target string) (json.RawMessage, error) {
	api := apiLabel(target)
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(api).Observe(time.Since(startTime).Seconds())
	}()

	var body json.RawMessage
	err := Retry(ctx, c.config.Retry, func(ctx context.Context, attempt int) error {
		if err := c.limiter.Admit(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}

		c.logger.Debug().
			Str("api", api).
			Str("url", target).
			Int("attempt", attempt).
			Msg("Executing GOV.UK request")

		var err error
		body, err = c.fetch(ctx, api, target)
		return err
	})
	if err != nil {
		c.logger.Error().Err(err).Str("url", target).Msg("GOV.UK request failed")
		return nil, err
	}

	return body, nil
}

// GetJSON executes target and decodes the body into v.
func (c *Client) GetJSON(ctx context.Context, target string, v any) error {
	body, err := c.Execute(ctx, target)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &DecodeError{URL: target, Err: err}
	}
	return nil
}

// fetch performs a single attempt.
func (c *Client) fetch(ctx context.Context, api, target string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues(api, "network_error").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(api, strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn().
			Str("api", api).
			Str("url", target).
			Int("status", resp.StatusCode).
			Msg("GOV.UK request error")
		return nil, &APIError{StatusCode: resp.StatusCode, Status: resp.Status, URL: target}
	}

	if !json.Valid(body) {
		return nil, &DecodeError{URL: target}
	}

	return json.RawMessage(body), nil
}

// apiLabel names the API a target belongs to, for metrics.
func apiLabel(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return "unknown"
	}
	switch {
	case strings.HasPrefix(u.Path, "/api/content"):
		return "content"
	case strings.HasPrefix(u.Path, "/api/search"):
		return "search"
	default:
		return "other"
	}
}
