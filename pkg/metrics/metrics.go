// Package metrics exposes the Prometheus metrics of the GOV.UK clients.
// The metrics themselves are registered via promauto in the packages that
// record them (client, ratelimit, pagination).
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/govuk-api-client/pkg/logging"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Path is where Serve exposes the metrics.
const Path = "/metrics"

// Handler returns the HTTP handler for the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes Handler on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	logger := logging.NewLogger(logging.ComponentCLI)

	mux := http.NewServeMux()
	mux.Handle(Path, Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("Serving metrics")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - govuk_requests_total{api, status} (Counter): Attempts by API and HTTP status
//   - govuk_request_duration_seconds{api} (Histogram): Call duration, retries included
//
// Retry Metrics (pkg/client):
//   - govuk_retries_total{error_class} (Counter): Retries by error class (network, status, decode)
//   - govuk_retry_backoff_seconds (Histogram): Backoff waits
//   - govuk_retry_exhausted_total (Counter): Calls that used every attempt
//   - govuk_events_dropped_total (Counter): Observer events a slow subscriber missed
//
// Rate Limit Metrics (pkg/ratelimit):
//   - govuk_ratelimit_admissions_total{limiter} (Counter): Admissions by limiter
//   - govuk_ratelimit_wait_seconds{limiter} (Histogram): Time spent waiting for admission
//   - govuk_ratelimit_fallbacks_total (Counter): Redis failures served by the local window
//
// Pagination Metrics (pkg/pagination):
//   - govuk_pagination_pages_fetched_total (Counter): Pages fetched by GetAll
//   - govuk_pagination_batch_duration_seconds{outcome} (Histogram): Complete batch fetches
//
// Example Prometheus Queries:
//
//   # Admission rate, should stay at or below 10/s per process
//   sum(rate(govuk_ratelimit_admissions_total[1m]))
//
//   # Non-2xx rate
//   sum(rate(govuk_requests_total{status!~"2.."}[5m]))
//
//   # P95 call latency
//   histogram_quantile(0.95, rate(govuk_request_duration_seconds_bucket[5m]))
