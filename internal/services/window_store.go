package services

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/uzleague/league-api/internal/models"
	"github.com/uzleague/league-api/internal/redisclient"
)

// MemoryWindowStore keeps windows in process memory
type MemoryWindowStore struct {
	mu      sync.Mutex
	windows map[string]models.RateLimitWindow
}

// NewMemoryWindowStore creates an empty in-memory window store
func NewMemoryWindowStore() *MemoryWindowStore {
	return &MemoryWindowStore{windows: make(map[string]models.RateLimitWindow)}
}

func (s *MemoryWindowStore) GetWindow(_ context.Context, key string) (*models.RateLimitWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[key]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (s *MemoryWindowStore) SetWindow(_ context.Context, key string, window models.RateLimitWindow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows[key] = window
	return nil
}

func (s *MemoryWindowStore) IncrementWindow(_ context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[key]
	if !ok {
		return 0, fmt.Errorf("window %s: %w", key, models.ErrNotFound)
	}
	w.Count++
	s.windows[key] = w
	return w.Count, nil
}

func (s *MemoryWindowStore) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	purged := 0
	for key, w := range s.windows {
		if !now.Before(w.WindowResetAt) {
			delete(s.windows, key)
			purged++
		}
	}
	return purged, nil
}

const (
	redisWindowPrefix = "otp:rl:"
	fieldCount        = "count"
	fieldResetAt      = "reset_at"
)

// RedisWindowStore keeps windows as Redis hashes that expire at the window reset time
type RedisWindowStore struct {
	client *redisclient.Client
}

// NewRedisWindowStore creates a window store on top of the traced Redis client
func NewRedisWindowStore(client *redisclient.Client) *RedisWindowStore {
	return &RedisWindowStore{client: client}
}

func (s *RedisWindowStore) GetWindow(ctx context.Context, key string) (*models.RateLimitWindow, error) {
	fields, err := s.client.HGetAll(ctx, redisWindowPrefix+key).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}

	count, err := strconv.Atoi(fields[fieldCount])
	if err != nil {
		return nil, fmt.Errorf("corrupt window count for %s: %w", key, err)
	}
	resetAt, err := parseUnixMilli(fields[fieldResetAt])
	if err != nil {
		return nil, fmt.Errorf("corrupt window reset for %s: %w", key, err)
	}
	return &models.RateLimitWindow{Count: count, WindowResetAt: resetAt}, nil
}

func (s *RedisWindowStore) SetWindow(ctx context.Context, key string, window models.RateLimitWindow) error {
	return s.client.HSetWithExpireAt(ctx, redisWindowPrefix+key, window.WindowResetAt,
		fieldCount, window.Count,
		fieldResetAt, window.WindowResetAt.UnixMilli())
}

func (s *RedisWindowStore) IncrementWindow(ctx context.Context, key string) (int, error) {
	n, err := s.client.HIncrBy(ctx, redisWindowPrefix+key, fieldCount, 1).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		// the window expired after it was read; drop the hash HIncrBy just created
		if err := s.client.Del(ctx, redisWindowPrefix+key).Err(); err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("window %s: %w", key, models.ErrNotFound)
	}
	return int(n), nil
}

// PurgeExpired is a no-op, Redis expires windows on its own
func (s *RedisWindowStore) PurgeExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}

func parseUnixMilli(v string) (time.Time, error) {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}
