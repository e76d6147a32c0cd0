package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/uzleague/league-api/internal/models"
	"github.com/uzleague/league-api/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// VerificationStore holds at most one outstanding record per phone.
// IncrementAttempts and Delete only act on the exact record passed in (same phone and salt),
// so a record replaced by a newer request is never touched by a stale caller.
type VerificationStore interface {
	// Put replaces any record for the same phone
	Put(ctx context.Context, record *models.VerificationRecord) error
	// Get returns models.ErrNotFound when the phone has no record
	Get(ctx context.Context, phone string) (*models.VerificationRecord, error)
	// IncrementAttempts returns the new attempt count or models.ErrNotFound
	IncrementAttempts(ctx context.Context, record *models.VerificationRecord) (int, error)
	// Delete reports whether this call removed the record
	Delete(ctx context.Context, record *models.VerificationRecord) (bool, error)
	// DeleteExpired removes every record with expiresAt before now
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// MemoryVerificationStore keeps records in process memory
type MemoryVerificationStore struct {
	mu      sync.Mutex
	records map[string]models.VerificationRecord
}

// NewMemoryVerificationStore creates an empty in-memory store
func NewMemoryVerificationStore() *MemoryVerificationStore {
	return &MemoryVerificationStore{records: make(map[string]models.VerificationRecord)}
}

func (s *MemoryVerificationStore) Put(_ context.Context, record *models.VerificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID.IsZero() {
		record.ID = primitive.NewObjectID()
	}
	s.records[record.Phone] = *record
	return nil
}

func (s *MemoryVerificationStore) Get(_ context.Context, phone string) (*models.VerificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[phone]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &record, nil
}

func (s *MemoryVerificationStore) IncrementAttempts(_ context.Context, record *models.VerificationRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.records[record.Phone]
	if !ok || current.Salt != record.Salt {
		return 0, models.ErrNotFound
	}
	current.Attempts++
	s.records[record.Phone] = current
	return current.Attempts, nil
}

func (s *MemoryVerificationStore) Delete(_ context.Context, record *models.VerificationRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.records[record.Phone]
	if !ok || current.Salt != record.Salt {
		return false, nil
	}
	delete(s.records, record.Phone)
	return true, nil
}

func (s *MemoryVerificationStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for phone, record := range s.records {
		if record.ExpiresAt.Before(now) {
			delete(s.records, phone)
			deleted++
		}
	}
	return deleted, nil
}

// MongoVerificationStore keeps records in a collection with a unique index on phone
type MongoVerificationStore struct {
	collection *mongo.Collection
}

// NewMongoVerificationStore creates a store over collection
func NewMongoVerificationStore(collection *mongo.Collection) *MongoVerificationStore {
	return &MongoVerificationStore{collection: collection}
}

func recordFilter(record *models.VerificationRecord) bson.M {
	return bson.M{"phone": record.Phone, "salt": record.Salt}
}

func trackDatabaseOperation(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	observability.DatabaseOperations.WithLabelValues(operation, status).Inc()
}

func (s *MongoVerificationStore) Put(ctx context.Context, record *models.VerificationRecord) error {
	replacement := bson.M{
		"phone":      record.Phone,
		"code_hash":  record.CodeHash,
		"salt":       record.Salt,
		"attempts":   record.Attempts,
		"created_at": record.CreatedAt,
		"expires_at": record.ExpiresAt,
	}
	opts := options.FindOneAndReplace().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var stored models.VerificationRecord
	err := s.collection.FindOneAndReplace(ctx, bson.M{"phone": record.Phone}, replacement, opts).Decode(&stored)
	trackDatabaseOperation("otp_put", err)
	if err != nil {
		return fmt.Errorf("failed to store verification record: %w", err)
	}
	record.ID = stored.ID
	return nil
}

func (s *MongoVerificationStore) Get(ctx context.Context, phone string) (*models.VerificationRecord, error) {
	var record models.VerificationRecord
	err := s.collection.FindOne(ctx, bson.M{"phone": phone}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		trackDatabaseOperation("otp_get", nil)
		return nil, models.ErrNotFound
	}
	trackDatabaseOperation("otp_get", err)
	if err != nil {
		return nil, fmt.Errorf("failed to read verification record: %w", err)
	}
	return &record, nil
}

func (s *MongoVerificationStore) IncrementAttempts(ctx context.Context, record *models.VerificationRecord) (int, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.VerificationRecord
	err := s.collection.FindOneAndUpdate(ctx, recordFilter(record),
		bson.M{"$inc": bson.M{"attempts": 1}}, opts).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		trackDatabaseOperation("otp_increment", nil)
		return 0, models.ErrNotFound
	}
	trackDatabaseOperation("otp_increment", err)
	if err != nil {
		return 0, fmt.Errorf("failed to increment attempts: %w", err)
	}
	return updated.Attempts, nil
}

func (s *MongoVerificationStore) Delete(ctx context.Context, record *models.VerificationRecord) (bool, error) {
	result, err := s.collection.DeleteOne(ctx, recordFilter(record))
	trackDatabaseOperation("otp_delete", err)
	if err != nil {
		return false, fmt.Errorf("failed to delete verification record: %w", err)
	}
	return result.DeletedCount == 1, nil
}

func (s *MongoVerificationStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.collection.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": now}})
	trackDatabaseOperation("otp_delete_expired", err)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired verification records: %w", err)
	}
	return result.DeletedCount, nil
}
