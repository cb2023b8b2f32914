// Package database persists signal history and computed predictions.
// Both tables are append-only; nothing in the service reads them back on the hot path.
package database

import (
	"context"
	"slices"
	"sync"

	"focus-backend/internal/models"
)

// HistorySink receives history and prediction records
type HistorySink interface {
	SaveSignals(ctx context.Context, record *models.HistoryRecord) error
	SavePrediction(ctx context.Context, record *models.PredictionRecord) error
	Close() error
}

var (
	_ HistorySink = (*ClickHouseDB)(nil)
	_ HistorySink = (*MemorySink)(nil)
)

// MemorySink keeps records in process memory. Used when ClickHouse is not configured.
type MemorySink struct {
	mu          sync.RWMutex
	signals     map[string][]models.HistoryRecord
	predictions map[string][]models.PredictionRecord
}

// NewMemorySink creates an empty in-memory sink
func NewMemorySink() *MemorySink {
	return &MemorySink{
		signals:     make(map[string][]models.HistoryRecord),
		predictions: make(map[string][]models.PredictionRecord),
	}
}

// SaveSignals appends a history record
func (s *MemorySink) SaveSignals(_ context.Context, record *models.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals[record.UserID] = append(s.signals[record.UserID], *record)
	return nil
}

// SavePrediction appends a prediction record
func (s *MemorySink) SavePrediction(_ context.Context, record *models.PredictionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.predictions[record.UserID] = append(s.predictions[record.UserID], *record)
	return nil
}

// Signals returns a user's history records in append order
func (s *MemorySink) Signals(userID string) []models.HistoryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.signals[userID])
}

// Predictions returns a user's prediction records in append order
func (s *MemorySink) Predictions(userID string) []models.PredictionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.predictions[userID])
}

func (s *MemorySink) Close() error { return nil }
