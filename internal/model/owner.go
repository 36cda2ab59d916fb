package model

import "time"

// Owner represents an account whose data the engine scopes by owner id
type Owner struct {
	ID           string    `json:"id" bson:"_id"`
	Username     string    `json:"username" bson:"username"`
	Email        string    `json:"email" bson:"email"`
	PasswordHash string    `json:"-" bson:"passwordHash"`
	CreatedAt    time.Time `json:"created_at" bson:"createdAt"`
}

// Session represents an active login session
type Session struct {
	Token     string    `json:"token" bson:"_id"`
	OwnerID   string    `json:"owner_id" bson:"ownerId"`
	ExpiresAt time.Time `json:"expires_at" bson:"expiresAt"`
	CreatedAt time.Time `json:"created_at" bson:"createdAt"`
}

// IsExpired returns true if the session has expired
func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
