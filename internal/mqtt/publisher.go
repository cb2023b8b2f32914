package mqtt

import (
	"context"
	"fmt"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"

	"focus-backend/internal/logging"
	"focus-backend/internal/models"
)

// Publisher handles MQTT publishing from channels
type Publisher struct {
	client mqtt.Client

	// Input channel (read by publisher, written by the signal service)
	PredictionChan chan *models.PredictionMessage

	predictionTopic string // e.g., "focus/{user_id}/prediction"
}

// PublisherConfig holds configuration for MQTT publisher
type PublisherConfig struct {
	PredictionTopic string
}

// NewPublisher creates a new MQTT publisher reading from predictionChan
func NewPublisher(client mqtt.Client, config PublisherConfig, predictionChan chan *models.PredictionMessage) *Publisher {
	return &Publisher{
		client:          client,
		PredictionChan:  predictionChan,
		predictionTopic: config.PredictionTopic,
	}
}

// Start publishes predictions from the channel.
// Runs until context is cancelled or channel is closed
func (p *Publisher) Start(ctx context.Context) {
	logging.Info().Str("topic", p.predictionTopic).Msg("MQTT publisher starting")

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("MQTT publisher shutting down")
			return

		case msg, ok := <-p.PredictionChan:
			if !ok {
				logging.Info().Msg("Prediction channel closed, MQTT publisher stopping")
				return
			}

			if err := p.publishPrediction(msg); err != nil {
				logging.Error().Err(err).Str("user_id", msg.UserID).Msg("Error publishing prediction")
			}
		}
	}
}

// publishPrediction publishes one prediction at QoS 1
func (p *Publisher) publishPrediction(msg *models.PredictionMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal prediction: %w", err)
	}

	topic := formatTopic(p.predictionTopic, msg.UserID)

	token := p.client.Publish(topic, 1, false, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish prediction: %w", token.Error())
	}

	logging.Debug().Str("user_id", msg.UserID).Str("topic", topic).Msg("Published prediction")
	return nil
}

// formatTopic replaces the {user_id} placeholder with the actual user ID
func formatTopic(topicPattern, userID string) string {
	return strings.ReplaceAll(topicPattern, "{user_id}", userID)
}
