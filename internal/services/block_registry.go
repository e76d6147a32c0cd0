package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/uzleague/league-api/internal/logging"
	"github.com/uzleague/league-api/internal/models"
	"github.com/uzleague/league-api/internal/observability"
	"github.com/uzleague/league-api/internal/redisclient"
	"github.com/uzleague/league-api/internal/utils"
	"go.uber.org/zap"
)

// BlockStore persists block entries by phone
type BlockStore interface {
	// GetBlock returns nil without error when the phone has no entry
	GetBlock(ctx context.Context, phone string) (*models.BlockEntry, error)
	PutBlock(ctx context.Context, phone string, entry models.BlockEntry) error
	DeleteBlock(ctx context.Context, phone string) error
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// BlockStatus reports whether a phone is locked out and for how long
type BlockStatus struct {
	Blocked          bool
	RemainingSeconds int
	RemainingMinutes int
}

// BlockRegistry tracks temporary lockouts. Entries expire lazily once blockedUntil passes.
type BlockRegistry struct {
	store  BlockStore
	clock  utils.Clock
	logger *logging.SafeLogger
}

// NewBlockRegistry creates a registry over store
func NewBlockRegistry(store BlockStore, clock utils.Clock, logger *logging.SafeLogger) *BlockRegistry {
	return &BlockRegistry{store: store, clock: clock, logger: logger}
}

// IsBlocked reports the lockout state of phone, removing a stale entry if it finds one
func (r *BlockRegistry) IsBlocked(ctx context.Context, phone string) (BlockStatus, error) {
	entry, err := r.store.GetBlock(ctx, phone)
	if err != nil {
		return BlockStatus{}, fmt.Errorf("failed to read block entry: %w", err)
	}
	if entry == nil {
		return BlockStatus{}, nil
	}

	now := r.clock.Now()
	if !entry.Active(now) {
		if err := r.store.DeleteBlock(ctx, phone); err != nil {
			r.logger.Warn("failed to delete expired block entry",
				zap.String("phone", observability.MaskPhone(phone)),
				zap.Error(err))
		}
		return BlockStatus{}, nil
	}

	remaining := entry.BlockedUntil.Sub(now)
	return BlockStatus{
		Blocked:          true,
		RemainingSeconds: retryAfterSeconds(remaining),
		RemainingMinutes: int((remaining + time.Minute - 1) / time.Minute),
	}, nil
}

// Block locks phone out for duration
func (r *BlockRegistry) Block(ctx context.Context, phone string, duration time.Duration, reason string) error {
	now := r.clock.Now()
	entry := models.BlockEntry{
		BlockedUntil: now.Add(duration),
		Reason:       reason,
		CreatedAt:    now,
	}
	if err := r.store.PutBlock(ctx, phone, entry); err != nil {
		return fmt.Errorf("failed to write block entry: %w", err)
	}
	return nil
}

// PurgeExpired deletes entries that no longer apply
func (r *BlockRegistry) PurgeExpired(ctx context.Context) (int, error) {
	return r.store.PurgeExpired(ctx, r.clock.Now())
}

// MemoryBlockStore keeps block entries in process memory
type MemoryBlockStore struct {
	mu      sync.Mutex
	entries map[string]models.BlockEntry
}

// NewMemoryBlockStore creates an empty in-memory block store
func NewMemoryBlockStore() *MemoryBlockStore {
	return &MemoryBlockStore{entries: make(map[string]models.BlockEntry)}
}

func (s *MemoryBlockStore) GetBlock(_ context.Context, phone string) (*models.BlockEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[phone]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (s *MemoryBlockStore) PutBlock(_ context.Context, phone string, entry models.BlockEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[phone] = entry
	return nil
}

func (s *MemoryBlockStore) DeleteBlock(_ context.Context, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, phone)
	return nil
}

func (s *MemoryBlockStore) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	purged := 0
	for phone, entry := range s.entries {
		if !entry.Active(now) {
			delete(s.entries, phone)
			purged++
		}
	}
	return purged, nil
}

const (
	redisBlockPrefix  = "otp:block:"
	fieldBlockedUntil = "blocked_until"
	fieldReason       = "reason"
	fieldCreatedAt    = "created_at"
)

// RedisBlockStore keeps block entries as hashes that Redis expires at blockedUntil
type RedisBlockStore struct {
	client *redisclient.Client
}

// NewRedisBlockStore creates a block store on top of the traced Redis client
func NewRedisBlockStore(client *redisclient.Client) *RedisBlockStore {
	return &RedisBlockStore{client: client}
}

func (s *RedisBlockStore) GetBlock(ctx context.Context, phone string) (*models.BlockEntry, error) {
	fields, err := s.client.HGetAll(ctx, redisBlockPrefix+phone).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}

	until, err := parseUnixMilli(fields[fieldBlockedUntil])
	if err != nil {
		return nil, fmt.Errorf("corrupt block entry for %s: %w", observability.MaskPhone(phone), err)
	}
	created, err := parseUnixMilli(fields[fieldCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("corrupt block entry for %s: %w", observability.MaskPhone(phone), err)
	}
	return &models.BlockEntry{
		BlockedUntil: until,
		Reason:       fields[fieldReason],
		CreatedAt:    created,
	}, nil
}

func (s *RedisBlockStore) PutBlock(ctx context.Context, phone string, entry models.BlockEntry) error {
	return s.client.HSetWithExpireAt(ctx, redisBlockPrefix+phone, entry.BlockedUntil,
		fieldBlockedUntil, entry.BlockedUntil.UnixMilli(),
		fieldReason, entry.Reason,
		fieldCreatedAt, entry.CreatedAt.UnixMilli())
}

func (s *RedisBlockStore) DeleteBlock(ctx context.Context, phone string) error {
	return s.client.Del(ctx, redisBlockPrefix+phone).Err()
}

// PurgeExpired is a no-op, Redis expires entries on its own
func (s *RedisBlockStore) PurgeExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}
