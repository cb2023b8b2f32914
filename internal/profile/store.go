// Package profile keeps user profiles. A profile is created with default values the
// first time a user is looked up.
package profile

import (
	"context"
	"sync"
	"time"

	"focus-backend/internal/models"
)

// Defaults for a newly created profile
const (
	DefaultName         = "User"
	DefaultAge          = 30
	DefaultGender       = "unknown"
	DefaultHeight       = 170.0
	DefaultWeight       = 65.0
	DefaultActivityGoal = 10000
)

// Store is an in-memory profile store
type Store struct {
	mu       sync.RWMutex
	profiles map[string]*models.UserProfile
	now      func() time.Time
}

// NewStore creates an empty profile store
func NewStore() *Store {
	return &Store{
		profiles: make(map[string]*models.UserProfile),
		now:      time.Now,
	}
}

// GetOrCreate returns the user's profile, creating a default one if none exists.
func (s *Store) GetOrCreate(_ context.Context, userID string) models.UserProfile {
	s.mu.RLock()
	p, ok := s.profiles[userID]
	s.mu.RUnlock()
	if ok {
		return *p
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// another request may have created it meanwhile
	if p, ok := s.profiles[userID]; ok {
		return *p
	}

	p = &models.UserProfile{
		UserID:       userID,
		Name:         DefaultName,
		Age:          DefaultAge,
		Gender:       DefaultGender,
		Height:       DefaultHeight,
		Weight:       DefaultWeight,
		ActivityGoal: DefaultActivityGoal,
		CreatedAt:    s.now(),
	}
	s.profiles[userID] = p
	return *p
}

// Put stores p, replacing any existing profile for the same user
func (s *Store) Put(_ context.Context, p models.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.UserID] = &p
}
