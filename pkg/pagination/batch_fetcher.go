package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/govuk-api-client/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Prometheus metrics for batch fetches.
var (
	pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "govuk_pagination_pages_fetched_total",
		Help: "Total number of pages fetched by batch fetches",
	})

	batchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "govuk_pagination_batch_duration_seconds",
		Help:    "Duration of complete batch fetches by outcome",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
	}, []string{"outcome"})
)

// Config holds batch fetcher configuration.
type Config struct {
	// MaxConcurrency caps the number of pages in flight. 0 fetches every
	// page at once and leaves pacing to the rate limiter.
	MaxConcurrency int

	// Timeout per page fetch. 0 disables the per-page timeout.
	Timeout time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{}
}

// PageFetcher is implemented by clients of offset-paginated endpoints.
type PageFetcher[T any] interface {
	// Total returns the number of results available. 0 means none.
	Total(ctx context.Context) (int, error)

	// FetchPage fetches count results starting at offset start.
	FetchPage(ctx context.Context, start, count int) ([]T, error)
}

// BatchFetcher handles parallel fetching of every page.
type BatchFetcher[T any] struct {
	fetcher PageFetcher[T]
	config  Config
	logger  zerolog.Logger
}

// NewBatchFetcher creates a new batch fetcher.
func NewBatchFetcher[T any](fetcher PageFetcher[T], config Config) *BatchFetcher[T] {
	if config.MaxConcurrency < 0 {
		config.MaxConcurrency = 0
	}
	if config.Timeout < 0 {
		config.Timeout = 0
	}

	return &BatchFetcher[T]{
		fetcher: fetcher,
		config:  config,
		logger:  logging.NewLogger(logging.ComponentPagination),
	}
}

// PlanOffsets returns the start offset of every page needed to cover total
// results with pages of pageSize: 0, pageSize, 2*pageSize, ... It returns an
// empty slice when total or pageSize is not positive.
func PlanOffsets(total, pageSize int) []int {
	if total <= 0 || pageSize <= 0 {
		return []int{}
	}

	pages := (total + pageSize - 1) / pageSize
	offsets := make([]int, pages)
	for i := range offsets {
		offsets[i] = i * pageSize
	}
	return offsets
}

// FetchAll fetches every page and returns the flattened results in offset
// order. When totalOverride is positive it is used instead of asking the
// fetcher for the total.
func (bf *BatchFetcher[T]) FetchAll(ctx context.Context, pageSize, totalOverride int) ([]T, error) {
	start := time.Now()

	total := totalOverride
	if total <= 0 {
		var err error
		total, err = bf.fetcher.Total(ctx)
		if err != nil {
			batchDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
			return nil, fmt.Errorf("fetch total: %w", err)
		}
	}

	offsets := PlanOffsets(total, pageSize)

	bf.logger.Debug().
		Int("total", total).
		Int("page_size", pageSize).
		Int("pages", len(offsets)).
		Msg("Starting parallel page fetch")

	if len(offsets) == 0 {
		batchDuration.WithLabelValues("empty").Observe(time.Since(start).Seconds())
		return []T{}, nil
	}

	pages := make([][]T, len(offsets))

	g, gctx := errgroup.WithContext(ctx)
	if bf.config.MaxConcurrency > 0 {
		g.SetLimit(bf.config.MaxConcurrency)
	}

	for i, offset := range offsets {
		g.Go(func() error {
			pageCtx := gctx
			if bf.config.Timeout > 0 {
				var cancel context.CancelFunc
				pageCtx, cancel = context.WithTimeout(gctx, bf.config.Timeout)
				defer cancel()
			}

			data, err := bf.fetcher.FetchPage(pageCtx, offset, pageSize)
			if err != nil {
				bf.logger.Warn().
					Err(err).
					Int("offset", offset).
					Msg("Page fetch failed")
				return fmt.Errorf("fetch page at offset %d: %w", offset, err)
			}

			// Each goroutine owns its slot.
			pages[i] = data
			pagesFetchedTotal.Inc()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		batchDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return nil, err
	}

	size := 0
	for _, page := range pages {
		size += len(page)
	}
	results := make([]T, 0, size)
	for _, page := range pages {
		results = append(results, page...)
	}

	bf.logger.Info().
		Int("pages", len(offsets)).
		Int("results", len(results)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")
	batchDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())

	return results, nil
}
