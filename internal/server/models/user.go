// Package models defines the records the auth server moves between the
// store, the cache and the broker.
package models

import (
	"strconv"
	"time"
)

// UserRecord is a registered user as persisted in the users table.
// PasswordHash is a bcrypt hash; the plaintext password is never stored.
type UserRecord struct {
	ID           int64
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// CacheEntry is the JSON document cached under "user:<email>".
// ID is carried as a decimal string so 64-bit values survive JSON readers
// that decode numbers as float64.
type CacheEntry struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	ID       string `json:"id"`
}

// ToCacheEntry renders u in its cached shape.
func (u *UserRecord) ToCacheEntry() CacheEntry {
	return CacheEntry{
		Email:    u.Email,
		Password: u.PasswordHash,
		ID:       strconv.FormatInt(u.ID, 10),
	}
}

// UserRecord converts the cached document back, rejecting a malformed id.
func (e CacheEntry) UserRecord() (*UserRecord, error) {
	id, err := strconv.ParseInt(e.ID, 10, 64)
	if err != nil {
		return nil, err
	}
	return &UserRecord{ID: id, Email: e.Email, PasswordHash: e.Password}, nil
}
