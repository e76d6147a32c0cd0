package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uzleague/league-api/internal/logging"
	"github.com/uzleague/league-api/internal/models"
	"github.com/uzleague/league-api/internal/observability"
	"github.com/uzleague/league-api/internal/utils"
	"go.uber.org/zap"
)

// WindowStore persists fixed rate limit windows by key
type WindowStore interface {
	// GetWindow returns nil without error when no window exists
	GetWindow(ctx context.Context, key string) (*models.RateLimitWindow, error)
	SetWindow(ctx context.Context, key string, window models.RateLimitWindow) error
	IncrementWindow(ctx context.Context, key string) (int, error)
	// PurgeExpired drops windows whose reset time is not after now
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// RateLimitDecision is the outcome of CheckAndConsume
type RateLimitDecision struct {
	Allowed           bool
	RetryAfterSeconds int
}

type limitWindow struct {
	name   string
	period time.Duration
	limit  int
}

// RateLimiter bounds code requests per phone with a minute window and a day window
type RateLimiter struct {
	store   WindowStore
	clock   utils.Clock
	windows []limitWindow
	locks   *utils.KeyedMutex
	logger  *logging.SafeLogger
}

// NewRateLimiter creates a fixed window limiter allowing perMinute requests per 60s and perDay per 24h
func NewRateLimiter(store WindowStore, clock utils.Clock, perMinute, perDay int, logger *logging.SafeLogger) *RateLimiter {
	return &RateLimiter{
		store: store,
		clock: clock,
		windows: []limitWindow{
			{name: "minute", period: time.Minute, limit: perMinute},
			{name: "day", period: 24 * time.Hour, limit: perDay},
		},
		locks:  utils.NewKeyedMutex(),
		logger: logger,
	}
}

func windowKey(name, phone string) string {
	return name + ":" + phone
}

// retryAfterSeconds rounds the wait up to whole seconds
func retryAfterSeconds(wait time.Duration) int {
	if wait <= 0 {
		return 0
	}
	return int((wait + time.Second - 1) / time.Second)
}

// CheckAndConsume admits the request only when every window has room, then counts it in all of them.
// A denied request leaves the counters untouched.
func (rl *RateLimiter) CheckAndConsume(ctx context.Context, phone string) (RateLimitDecision, error) {
	unlock := rl.locks.Lock(phone)
	defer unlock()

	now := rl.clock.Now()
	current := make([]*models.RateLimitWindow, len(rl.windows))
	decision := RateLimitDecision{Allowed: true}

	for i, lw := range rl.windows {
		w, err := rl.store.GetWindow(ctx, windowKey(lw.name, phone))
		if err != nil {
			return RateLimitDecision{}, fmt.Errorf("failed to read %s window: %w", lw.name, err)
		}
		if w == nil || !now.Before(w.WindowResetAt) {
			continue
		}
		current[i] = w
		if w.Count >= lw.limit {
			decision.Allowed = false
			if wait := retryAfterSeconds(w.WindowResetAt.Sub(now)); wait > decision.RetryAfterSeconds {
				decision.RetryAfterSeconds = wait
			}
		}
	}

	if !decision.Allowed {
		rl.logger.Warn("rate limiter rejected request",
			zap.String("phone", observability.MaskPhone(phone)),
			zap.Int("retry_after_seconds", decision.RetryAfterSeconds))
		return decision, nil
	}

	for i, lw := range rl.windows {
		key := windowKey(lw.name, phone)
		if current[i] != nil {
			_, err := rl.store.IncrementWindow(ctx, key)
			if err == nil {
				continue
			}
			if !errors.Is(err, models.ErrNotFound) {
				return RateLimitDecision{}, fmt.Errorf("failed to count %s window: %w", lw.name, err)
			}
		}
		fresh := models.RateLimitWindow{Count: 1, WindowResetAt: now.Add(lw.period)}
		if err := rl.store.SetWindow(ctx, key, fresh); err != nil {
			return RateLimitDecision{}, fmt.Errorf("failed to open %s window: %w", lw.name, err)
		}
	}

	rl.logger.Debug("rate limiter allowed request",
		zap.String("phone", observability.MaskPhone(phone)))
	return decision, nil
}

// PurgeExpired removes windows that have already reset
func (rl *RateLimiter) PurgeExpired(ctx context.Context) (int, error) {
	return rl.store.PurgeExpired(ctx, rl.clock.Now())
}
