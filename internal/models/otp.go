package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// VerificationRecord is the single outstanding code for a phone number
type VerificationRecord struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Phone     string             `bson:"phone" json:"phone"`
	CodeHash  string             `bson:"code_hash" json:"-"`
	Salt      string             `bson:"salt" json:"-"`
	Attempts  int                `bson:"attempts" json:"attempts"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	ExpiresAt time.Time          `bson:"expires_at" json:"expires_at"`
}

// Expired reports whether the record is past its expiry at now
func (r *VerificationRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// RateLimitWindow is a fixed counting window for one phone number
type RateLimitWindow struct {
	Count         int       `json:"count"`
	WindowResetAt time.Time `json:"window_reset_at"`
}

// BlockEntry is a temporary lockout after too many failed verifications
type BlockEntry struct {
	BlockedUntil time.Time `json:"blocked_until"`
	Reason       string    `json:"reason"`
	CreatedAt    time.Time `json:"created_at"`
}

// Active reports whether the block still applies at now
func (b *BlockEntry) Active(now time.Time) bool {
	return b.BlockedUntil.After(now)
}

// OTPRequest is the body of POST /auth/otp/request
type OTPRequest struct {
	Phone string `json:"phone" binding:"required" example:"+998901234567"`
}

// OTPVerifyRequest is the body of POST /auth/otp/verify
type OTPVerifyRequest struct {
	Phone string `json:"phone" binding:"required" example:"+998901234567"`
	Code  string `json:"code" binding:"required" example:"123456"`
}

// OTPRequestResponse is returned after a code was issued and handed to the gateway
type OTPRequestResponse struct {
	Message    string `json:"message"`
	TTLSeconds int    `json:"ttlSeconds"`
}

// OTPVerifyResponse is returned after a successful verification
type OTPVerifyResponse struct {
	Message  string   `json:"message"`
	Identity Identity `json:"identity"`
}

// Reason recorded on block entries created by attempt exhaustion
const BlockReasonTooManyAttempts = "too many failed attempts"

// Constants for verification configuration
const (
	VerificationCodeLength = 6
	DefaultMaxAttempts     = 3
)
