package ratelimit

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisKeyPrefix prefixes the sorted set holding admission times.
const RedisKeyPrefix = "govuk:ratelimit:"

var redisFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "govuk_ratelimit_fallbacks_total",
	Help: "Total number of admissions decided locally because Redis was unavailable",
})

// luaSlidingAdmit records one admission in a sorted set if fewer than
// max admissions happened within the last window.
// KEYS[1] = sorted set key
// ARGV[1] = now in milliseconds
// ARGV[2] = window in milliseconds
// ARGV[3] = max admissions per window
// ARGV[4] = unique member for this admission
//
// Returns 0 when admitted, otherwise milliseconds until a slot frees up.
const luaSlidingAdmit = `
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])
local max = tonumber(ARGV[3])

redis.call("ZREMRANGEBYSCORE", key, "-inf", now_ms - window_ms)

local count = redis.call("ZCARD", key)
if count < max then
    redis.call("ZADD", key, now_ms, ARGV[4])
    redis.call("PEXPIRE", key, window_ms)
    return 0
end

local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
local wait = tonumber(oldest[2]) + window_ms - now_ms
if wait < 1 then
    wait = 1
end
return wait
`

// RedisWindow is a sliding-window limiter whose admissions are recorded in
// Redis, so several processes share one budget. Admission times come from the
// caller's clock; hosts sharing a key need roughly synchronised clocks.
//
// When Redis fails the admission is decided by the local fallback window
// instead, so Admit still only ever delays.
type RedisWindow struct {
	redis    *redis.Client
	script   *redis.Script
	key      string
	max      int
	window   time.Duration
	fallback *Window
	logger   zerolog.Logger
	seq      atomic.Uint64
}

// NewRedisWindow creates a limiter sharing its budget through Redis under
// the given name. fallback decides admissions while Redis is unreachable.
func NewRedisWindow(redisClient *redis.Client, name string, maxPerWindow int, window time.Duration, fallback *Window, logger zerolog.Logger) (*RedisWindow, error) {
	if redisClient == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if name == "" {
		return nil, fmt.Errorf("limiter name is required")
	}
	if maxPerWindow <= 0 {
		return nil, fmt.Errorf("max per window must be > 0 (got %d)", maxPerWindow)
	}
	if window < time.Millisecond {
		return nil, fmt.Errorf("window must be >= 1ms (got %s)", window)
	}
	if fallback == nil {
		fallback = Shared()
	}

	return &RedisWindow{
		redis:    redisClient,
		script:   redis.NewScript(luaSlidingAdmit),
		key:      RedisKeyPrefix + name,
		max:      maxPerWindow,
		window:   window,
		fallback: fallback,
		logger:   logger.With().Str("limiter", name).Logger(),
	}, nil
}

// Admit blocks until the shared window has room for one more call.
func (r *RedisWindow) Admit(ctx context.Context) error {
	start := time.Now()

	for {
		now := time.Now()
		member := fmt.Sprintf("%d-%d", now.UnixNano(), r.seq.Add(1))
		waitMs, err := r.script.Run(ctx, r.redis, []string{r.key},
			now.UnixMilli(), r.window.Milliseconds(), r.max, member).Int64()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Warn().Err(err).Msg("Redis admission failed, using local window")
			redisFallbacksTotal.Inc()
			return r.fallback.Admit(ctx)
		}

		if waitMs == 0 {
			admissionsTotal.WithLabelValues("redis").Inc()
			admissionWaitSeconds.WithLabelValues("redis").Observe(time.Since(start).Seconds())
			return nil
		}

		timer := time.NewTimer(time.Duration(waitMs) * time.Millisecond)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// State reads the shared window from Redis.
func (r *RedisWindow) State(ctx context.Context) (WindowState, error) {
	state := WindowState{MaxPerWindow: r.max, Window: r.window}

	now := time.Now()
	minScore := fmt.Sprintf("(%d", now.Add(-r.window).UnixMilli())
	entries, err := r.redis.ZRangeByScoreWithScores(ctx, r.key, &redis.ZRangeBy{
		Min: minScore,
		Max: "+inf",
	}).Result()
	if err != nil {
		return state, fmt.Errorf("read admission window: %w", err)
	}

	state.Admitted = len(entries)
	if len(entries) > 0 {
		state.WindowStart = time.UnixMilli(int64(entries[0].Score))
	}
	return state, nil
}
