package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uzleague/league-api/internal/logging"
)

type countingCleaner struct {
	calls   atomic.Int32
	deleted int64
	err     error
}

func (c *countingCleaner) Cleanup(context.Context) (int64, error) {
	c.calls.Add(1)
	return c.deleted, c.err
}

func TestCleanupScheduler_StartRunsImmediately(t *testing.T) {
	cleaner := &countingCleaner{deleted: 4}
	scheduler := NewCleanupScheduler(cleaner, "@every 1h", logging.Logger)

	require.NoError(t, scheduler.Start(context.Background()))
	defer scheduler.Stop()

	assert.Equal(t, int32(1), cleaner.calls.Load())
}

func TestCleanupScheduler_InvalidSchedule(t *testing.T) {
	cleaner := &countingCleaner{}
	scheduler := NewCleanupScheduler(cleaner, "every now and then", logging.Logger)

	assert.Error(t, scheduler.Start(context.Background()))
	assert.Equal(t, int32(0), cleaner.calls.Load())
}

func TestCleanupScheduler_RunOnce(t *testing.T) {
	cleaner := &countingCleaner{deleted: 3}
	scheduler := NewCleanupScheduler(cleaner, "@every 1h", logging.Logger)

	assert.Equal(t, int64(3), scheduler.RunOnce(context.Background()))

	cleaner.err = errors.New("mongo unavailable")
	assert.Equal(t, int64(0), scheduler.RunOnce(context.Background()))
	assert.Equal(t, int32(2), cleaner.calls.Load())
}

func TestCleanupScheduler_SweepsService(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()

	_, err := f.service.RequestCode(ctx, testPhone)
	require.NoError(t, err)
	f.clock.Advance(10 * time.Minute)

	scheduler := NewCleanupScheduler(f.service, "@every 1h", logging.Logger)
	assert.Equal(t, int64(1), scheduler.RunOnce(ctx))
	assert.Equal(t, int64(0), scheduler.RunOnce(ctx))
}
