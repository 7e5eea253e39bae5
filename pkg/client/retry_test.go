package client

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fastRetry keeps backoff short so tests stay quick.
func fastRetry(maxAttempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:       maxAttempts,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxAttempts != 11 {
		t.Errorf("MaxAttempts = %d, want 11", config.MaxAttempts)
	}
	if config.InitialBackoff != 1*time.Second {
		t.Errorf("InitialBackoff = %v, want 1s", config.InitialBackoff)
	}
	if config.MaxBackoff != 30*time.Second {
		t.Errorf("MaxBackoff = %v, want 30s", config.MaxBackoff)
	}
	if config.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", config.BackoffMultiplier)
	}
}

func TestRetry_Success(t *testing.T) {
	callCount := 0
	err := Retry(context.Background(), fastRetry(3), func(ctx context.Context, attempt int) error {
		callCount++
		return nil
	})

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
}

func TestRetry_SuccessAfterFailures(t *testing.T) {
	const maxAttempts = 5

	for k := 1; k < maxAttempts; k++ {
		callCount := 0
		var attempts []int
		err := Retry(context.Background(), fastRetry(maxAttempts), func(ctx context.Context, attempt int) error {
			callCount++
			attempts = append(attempts, attempt)
			if callCount <= k {
				return errors.New("temporary error")
			}
			return nil
		})

		if err != nil {
			t.Errorf("k=%d: expected no error, got %v", k, err)
		}
		if callCount != k+1 {
			t.Errorf("k=%d: expected %d calls, got %d", k, k+1, callCount)
		}
		for i, a := range attempts {
			if a != i+1 {
				t.Errorf("k=%d: attempt[%d] = %d, want %d", k, i, a, i+1)
			}
		}
	}
}

func TestRetry_MaxAttemptsExhausted(t *testing.T) {
	callCount := 0
	testErr := errors.New("persistent error")
	err := Retry(context.Background(), fastRetry(4), func(ctx context.Context, attempt int) error {
		callCount++
		return testErr
	})

	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Expected ErrRetryExhausted, got %v", err)
	}
	if !errors.Is(err, testErr) {
		t.Errorf("Expected wrapped original error, got %v", err)
	}
	if callCount != 4 {
		t.Errorf("Expected 4 calls (MaxAttempts), got %d", callCount)
	}
}

func TestRetry_StatusErrorsAreRetried(t *testing.T) {
	// A 4xx is not treated as permanent.
	callCount := 0
	err := Retry(context.Background(), fastRetry(3), func(ctx context.Context, attempt int) error {
		callCount++
		return &APIError{StatusCode: 400, Status: "400 Bad Request"}
	})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError in chain, got %v", err)
	}
	if apiErr.StatusCode != 400 {
		t.Errorf("StatusCode = %d, want 400", apiErr.StatusCode)
	}
	if callCount != 3 {
		t.Errorf("Expected 3 calls, got %d", callCount)
	}
}

func TestRetry_ZeroMaxAttemptsRunsOnce(t *testing.T) {
	callCount := 0
	err := Retry(context.Background(), RetryConfig{}, func(ctx context.Context, attempt int) error {
		callCount++
		return errors.New("boom")
	})

	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Expected ErrRetryExhausted, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	callCount := 0
	cfg := RetryConfig{MaxAttempts: 5, InitialBackoff: time.Hour}
	err := Retry(ctx, cfg, func(ctx context.Context, attempt int) error {
		callCount++
		cancel()
		return errors.New("temporary error")
	})

	if !errors.Is(err, ErrContextCancelled) {
		t.Errorf("Expected ErrContextCancelled, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled in chain, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call before cancellation, got %d", callCount)
	}
}

func TestWithJitter(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 100; i++ {
		got := withJitter(base, 0.2)
		if got < 80*time.Millisecond || got > 120*time.Millisecond {
			t.Fatalf("withJitter() = %v, want within ±20%% of %v", got, base)
		}
	}

	if got := withJitter(base, 0); got != base {
		t.Errorf("withJitter(no jitter) = %v, want %v", got, base)
	}
}
