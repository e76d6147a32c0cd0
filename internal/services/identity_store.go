package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/uzleague/league-api/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// IdentityStore looks up and registers players by verified phone number
type IdentityStore interface {
	// FindByPhone returns models.ErrNotFound when no player has phone
	FindByPhone(ctx context.Context, phone string) (*models.Player, error)
	// Create returns models.ErrDuplicatePhone when the phone is already registered
	Create(ctx context.Context, phone string, now time.Time) (*models.Player, error)
	// TouchLastSeen stamps a login and returns the updated player
	TouchLastSeen(ctx context.Context, id primitive.ObjectID, now time.Time) (*models.Player, error)
}

// MemoryIdentityStore keeps players in process memory
type MemoryIdentityStore struct {
	mu      sync.Mutex
	players map[string]*models.Player
}

// NewMemoryIdentityStore creates an empty in-memory identity store
func NewMemoryIdentityStore() *MemoryIdentityStore {
	return &MemoryIdentityStore{players: make(map[string]*models.Player)}
}

func (s *MemoryIdentityStore) FindByPhone(_ context.Context, phone string) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[phone]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryIdentityStore) Create(_ context.Context, phone string, now time.Time) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[phone]; ok {
		return nil, models.ErrDuplicatePhone
	}
	p := &models.Player{
		ID:        primitive.NewObjectID(),
		Phone:     phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.players[phone] = p
	cp := *p
	return &cp, nil
}

func (s *MemoryIdentityStore) TouchLastSeen(_ context.Context, id primitive.ObjectID, now time.Time) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.players {
		if p.ID == id {
			seen := now
			p.LastSeenAt = &seen
			p.UpdatedAt = now
			p.LoginCount++
			cp := *p
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

// MongoIdentityStore keeps players in a collection with a unique index on phone
type MongoIdentityStore struct {
	collection *mongo.Collection
}

// NewMongoIdentityStore creates a store over collection
func NewMongoIdentityStore(collection *mongo.Collection) *MongoIdentityStore {
	return &MongoIdentityStore{collection: collection}
}

func (s *MongoIdentityStore) FindByPhone(ctx context.Context, phone string) (*models.Player, error) {
	var player models.Player
	err := s.collection.FindOne(ctx, bson.M{"phone": phone}).Decode(&player)
	if errors.Is(err, mongo.ErrNoDocuments) {
		trackDatabaseOperation("player_find", nil)
		return nil, models.ErrNotFound
	}
	trackDatabaseOperation("player_find", err)
	if err != nil {
		return nil, fmt.Errorf("failed to find player: %w", err)
	}
	return &player, nil
}

func (s *MongoIdentityStore) Create(ctx context.Context, phone string, now time.Time) (*models.Player, error) {
	player := &models.Player{
		ID:        primitive.NewObjectID(),
		Phone:     phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.collection.InsertOne(ctx, player)
	if mongo.IsDuplicateKeyError(err) {
		trackDatabaseOperation("player_create", nil)
		return nil, models.ErrDuplicatePhone
	}
	trackDatabaseOperation("player_create", err)
	if err != nil {
		return nil, fmt.Errorf("failed to create player: %w", err)
	}
	return player, nil
}

func (s *MongoIdentityStore) TouchLastSeen(ctx context.Context, id primitive.ObjectID, now time.Time) (*models.Player, error) {
	update := bson.M{
		"$set": bson.M{"last_seen_at": now, "updated_at": now},
		"$inc": bson.M{"login_count": 1},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var player models.Player
	err := s.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&player)
	if errors.Is(err, mongo.ErrNoDocuments) {
		trackDatabaseOperation("player_touch", nil)
		return nil, models.ErrNotFound
	}
	trackDatabaseOperation("player_touch", err)
	if err != nil {
		return nil, fmt.Errorf("failed to update player last seen: %w", err)
	}
	return &player, nil
}
