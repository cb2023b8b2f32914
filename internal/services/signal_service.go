package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"focus-backend/internal/cache"
	"focus-backend/internal/database"
	"focus-backend/internal/features"
	"focus-backend/internal/logging"
	"focus-backend/internal/models"
)

// SignalService appends incoming signal records to history, predicts the day they
// belong to and forwards the prediction to the publisher.
type SignalService struct {
	engine *PredictionEngine
	sink   database.HistorySink

	// Input channel from the MQTT subscriber
	SignalChan chan *models.SignalMessage
	// Output channel to the MQTT publisher, may be nil
	PredictionChan chan *models.PredictionMessage

	sendTimeout time.Duration
	log         zerolog.Logger
}

// SignalServiceConfig holds configuration for the signal service
type SignalServiceConfig struct {
	SignalChannelSize     int
	PredictionChannelSize int
	SendTimeout           time.Duration
}

// DefaultSignalServiceConfig returns default configuration
func DefaultSignalServiceConfig() SignalServiceConfig {
	return SignalServiceConfig{
		SignalChannelSize:     100,
		PredictionChannelSize: 100,
		SendTimeout:           time.Second,
	}
}

// NewSignalService creates a new signal service with its own channels
func NewSignalService(engine *PredictionEngine, sink database.HistorySink, config SignalServiceConfig) *SignalService {
	if config.SendTimeout <= 0 {
		config.SendTimeout = time.Second
	}
	return &SignalService{
		engine:         engine,
		sink:           sink,
		SignalChan:     make(chan *models.SignalMessage, config.SignalChannelSize),
		PredictionChan: make(chan *models.PredictionMessage, config.PredictionChannelSize),
		sendTimeout:    config.SendTimeout,
		log:            logging.Component("signal-service"),
	}
}

// Serve processes signal messages until ctx is cancelled or the input channel closes.
func (s *SignalService) Serve(ctx context.Context) error {
	s.log.Info().Msg("Signal service starting")

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Signal service shutting down")
			return ctx.Err()
		case msg, ok := <-s.SignalChan:
			if !ok {
				s.log.Info().Msg("Signal channel closed")
				return nil
			}
			s.process(ctx, msg)
		}
	}
}

func (s *SignalService) String() string { return "signal-service" }

// Record appends a signal record to the user's history.
// Signals are stored defaulted and clamped.
func (s *SignalService) Record(ctx context.Context, userID string, signals models.SignalSet, at time.Time) (*models.HistoryRecord, error) {
	record := &models.HistoryRecord{
		UserID:     userID,
		RecordedAt: at,
		Signals:    features.Resolve(signals),
	}
	if err := s.sink.SaveSignals(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save signals for %s: %w", userID, err)
	}
	return record, nil
}

// process handles a single signal message
func (s *SignalService) process(ctx context.Context, msg *models.SignalMessage) {
	if _, err := s.Record(ctx, msg.UserID, msg.Signals, msg.ReceivedAt); err != nil {
		// history is best effort, the prediction still goes out
		s.log.Error().Err(err).Str("user_id", msg.UserID).Msg("Error saving signals")
	}

	// without an explicit date the UTC receive day is used, same as HTTP "today"
	day := msg.Day
	if day.IsZero() {
		day = msg.ReceivedAt.UTC()
	}

	prediction := s.engine.Predict(ctx, msg.UserID, day, msg.Signals)

	s.log.Debug().
		Str("user_id", msg.UserID).
		Float64("score", prediction.ConcentrationScore).
		Str("source", prediction.Source).
		Msg("Signals processed")

	if s.PredictionChan == nil {
		return
	}

	out := &models.PredictionMessage{
		UserID:     msg.UserID,
		Date:       cache.NewKey(msg.UserID, day).DayString(),
		Prediction: prediction,
	}

	select {
	case s.PredictionChan <- out:
	case <-time.After(s.sendTimeout):
		s.log.Warn().Str("user_id", msg.UserID).Msg("Prediction channel full, dropping message")
	}
}
