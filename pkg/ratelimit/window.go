package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/govuk-api-client/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for admission control.
var (
	admissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "govuk_ratelimit_admissions_total",
		Help: "Total number of requests admitted by limiter",
	}, []string{"limiter"})

	admissionWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "govuk_ratelimit_wait_seconds",
		Help:    "Time callers spent waiting for admission by limiter",
		Buckets: []float64{0, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"limiter"})
)

// Window is an in-process limiter admitting at most MaxPerWindow calls in
// any interval of length Window. It spaces admissions Window/MaxPerWindow
// apart with a token bucket of burst 1, so callers are handed time slots in
// the order they arrive.
type Window struct {
	name    string
	max     int
	window  time.Duration
	now     func() time.Time
	logger  zerolog.Logger
	limiter *rate.Limiter

	mu   sync.Mutex
	ring []time.Time // last max admission times, for State
	next int
}

// WindowOption configures a Window.
type WindowOption func(*Window)

// WithNowFunc overrides the clock for testing.
func WithNowFunc(f func() time.Time) WindowOption {
	return func(w *Window) {
		w.now = f
	}
}

// WithName sets the limiter label used in logs and metrics.
func WithName(name string) WindowOption {
	return func(w *Window) {
		w.name = name
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) WindowOption {
	return func(w *Window) {
		w.logger = logger
	}
}

// NewWindow creates a limiter admitting at most maxPerWindow calls per
// window.
func NewWindow(maxPerWindow int, window time.Duration, opts ...WindowOption) (*Window, error) {
	if maxPerWindow <= 0 {
		return nil, fmt.Errorf("max per window must be > 0 (got %d)", maxPerWindow)
	}
	if window <= 0 {
		return nil, fmt.Errorf("window must be > 0 (got %s)", window)
	}
	interval := window / time.Duration(maxPerWindow)
	if interval <= 0 {
		return nil, fmt.Errorf("window %s too short for %d admissions", window, maxPerWindow)
	}

	w := &Window{
		name:    "local",
		max:     maxPerWindow,
		window:  window,
		now:     time.Now,
		logger:  logging.NewLogger(logging.ComponentRateLimit),
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		ring:    make([]time.Time, maxPerWindow),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

var (
	sharedOnce sync.Once
	shared     *Window
)

// Shared returns the process-wide limiter with the default budget. It is
// created on first use and lives for the rest of the process.
func Shared() *Window {
	sharedOnce.Do(func() {
		w, err := NewWindow(DefaultMaxPerWindow, DefaultWindow, WithName("shared"))
		if err != nil {
			panic(err)
		}
		shared = w
	})
	return shared
}

// Admit blocks until the caller's slot comes up. Slots are reserved in
// arrival order; a caller whose ctx ends first gives its slot back.
func (w *Window) Admit(ctx context.Context) error {
	r, at, wait := w.reserve()

	if wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.CancelAt(w.now())
			return ctx.Err()
		case <-timer.C:
		}
		w.logger.Debug().
			Str("limiter", w.name).
			Dur("waited", wait).
			Msg("Admitted after waiting for slot")
	}

	w.record(at)
	admissionsTotal.WithLabelValues(w.name).Inc()
	admissionWaitSeconds.WithLabelValues(w.name).Observe(wait.Seconds())
	return nil
}

// reserve takes the next free slot and returns it with the time it starts
// and the wait until then.
func (w *Window) reserve() (*rate.Reservation, time.Time, time.Duration) {
	now := w.now()
	r := w.limiter.ReserveN(now, 1)
	wait := r.DelayFrom(now)
	return r, now.Add(wait), wait
}

func (w *Window) record(at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.ring[w.next] = at
	w.next = (w.next + 1) % w.max
}

// State returns a snapshot of the admissions inside the current window.
func (w *Window) State() WindowState {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	state := WindowState{
		MaxPerWindow: w.max,
		Window:       w.window,
	}
	for _, t := range w.ring {
		if t.IsZero() || t.After(now) || now.Sub(t) >= w.window {
			continue
		}
		if state.WindowStart.IsZero() || t.Before(state.WindowStart) {
			state.WindowStart = t
		}
		state.Admitted++
	}
	return state
}
