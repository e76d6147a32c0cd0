package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestVerificationRecord_Expired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rec := &VerificationRecord{ExpiresAt: now}

	assert.False(t, rec.Expired(now), "expiry instant itself is still valid")
	assert.False(t, rec.Expired(now.Add(-time.Second)))
	assert.True(t, rec.Expired(now.Add(time.Nanosecond)))
}

func TestBlockEntry_Active(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	entry := &BlockEntry{BlockedUntil: now}

	assert.False(t, entry.Active(now), "block ends at blockedUntil")
	assert.True(t, entry.Active(now.Add(-time.Second)))
	assert.False(t, entry.Active(now.Add(time.Second)))
}

func TestPlayer_ToIdentity(t *testing.T) {
	seen := time.Now()
	p := &Player{ID: primitive.NewObjectID(), Phone: "+998901234567", LastSeenAt: &seen}

	id := p.ToIdentity(true)

	assert.Equal(t, p.ID.Hex(), id.ID)
	assert.Equal(t, "+998901234567", id.Phone)
	assert.True(t, id.Created)
	assert.Equal(t, &seen, id.LastSeenAt)
}
