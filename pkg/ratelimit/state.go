// Package ratelimit implements the admission gate shared by every GOV.UK API
// client in the process. Callers block in Admit until the request budget of
// the current window allows them through; the gate never rejects.
package ratelimit

import (
	"context"
	"time"
)

// Defaults for the shared admission budget.
// https://content-api.publishing.service.gov.uk/#rate-limiting allows 10
// requests per second. The search API documents no limit and shares the
// same budget.
const (
	DefaultMaxPerWindow = 10
	DefaultWindow       = time.Second
)

// Limiter gates outbound requests.
type Limiter interface {
	// Admit blocks until one more request fits in the budget. The only error
	// it returns is the context error when ctx ends while waiting.
	Admit(ctx context.Context) error
}

// WindowState is a snapshot of a limiter's admission window.
type WindowState struct {
	// WindowStart is the time of the oldest admission still inside the window.
	// Zero when nothing was admitted within the last Window.
	WindowStart time.Time `json:"window_start"`

	// Admitted is the number of admissions inside the current window.
	Admitted int `json:"admitted"`

	// MaxPerWindow is the admission budget per window.
	MaxPerWindow int `json:"max_per_window"`

	// Window is the length of the sliding window.
	Window time.Duration `json:"window"`
}

// Remaining returns the number of admissions still available right now.
func (s WindowState) Remaining() int {
	remaining := s.MaxPerWindow - s.Admitted
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsExhausted reports whether the next Admit would have to wait.
func (s WindowState) IsExhausted() bool {
	return s.Admitted >= s.MaxPerWindow
}

// TimeUntilSlot returns how long a caller would wait for the next admission,
// measured from now. Returns 0 when the window has room.
func (s WindowState) TimeUntilSlot(now time.Time) time.Duration {
	if !s.IsExhausted() || s.WindowStart.IsZero() {
		return 0
	}
	wait := s.WindowStart.Add(s.Window).Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}
