package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Player is the league member identified by a verified phone number
type Player struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Phone      string             `bson:"phone" json:"phone"`
	LoginCount int                `bson:"login_count" json:"login_count"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at" json:"updated_at"`
	LastSeenAt *time.Time         `bson:"last_seen_at,omitempty" json:"last_seen_at,omitempty"`
}

// Identity is what a successful verification resolves to
type Identity struct {
	ID         string     `json:"id"`
	Phone      string     `json:"phone"`
	Created    bool       `json:"created"`
	LastSeenAt *time.Time `json:"lastSeenAt,omitempty"`
}

// ToIdentity converts a stored player into the API identity
func (p *Player) ToIdentity(created bool) Identity {
	return Identity{
		ID:         p.ID.Hex(),
		Phone:      p.Phone,
		Created:    created,
		LastSeenAt: p.LastSeenAt,
	}
}
