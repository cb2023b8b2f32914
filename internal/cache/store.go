// Package cache memoizes predictions per (user, calendar day).
//
// Stores are used cache-aside: the caller looks up, computes on a miss and writes back.
// A backend error is reported to the caller, who treats it as a miss.
package cache

import (
	"context"
	"time"

	"focus-backend/internal/models"
)

// DayLayout is the calendar day format used in keys and on the wire
const DayLayout = "2006-01-02"

// Key identifies one user's prediction for one calendar day
type Key struct {
	UserID string
	Day    time.Time // midnight UTC of the calendar day
}

// NewKey builds a key for the calendar day of t, as seen in t's location.
// The time of day is discarded.
func NewKey(userID string, t time.Time) Key {
	y, m, d := t.Date()
	return Key{UserID: userID, Day: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// DayString returns the day as YYYY-MM-DD
func (k Key) DayString() string {
	return k.Day.Format(DayLayout)
}

// String returns the storage key
func (k Key) String() string {
	return "prediction:" + k.UserID + ":" + k.DayString()
}

// Store is a prediction cache backend
type Store interface {
	// Get returns the stored prediction and true, or false on a miss.
	Get(ctx context.Context, key Key) (models.Prediction, bool, error)

	// Put stores p under key, replacing any previous entry.
	Put(ctx context.Context, key Key, p models.Prediction) error

	// Delete removes the entry for key if present.
	Delete(ctx context.Context, key Key) error

	// Name identifies the backend in logs and metrics.
	Name() string

	Close() error
}

// expiryReader is a Store that can report when an entry expires.
// A zero time means the entry does not expire.
type expiryReader interface {
	GetWithExpiry(ctx context.Context, key Key) (models.Prediction, time.Time, bool, error)
}

// expiryWriter is a Store that accepts an absolute expiry for an entry
type expiryWriter interface {
	PutUntil(ctx context.Context, key Key, p models.Prediction, expiresAt time.Time) error
}

// Verify interface implementations at compile time
var (
	_ Store = (*Memory)(nil)
	_ Store = (*Badger)(nil)
	_ Store = (*Tiered)(nil)

	_ expiryWriter = (*Memory)(nil)
	_ expiryReader = (*Badger)(nil)
)
