package mqtt

import (
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"

	"focus-backend/internal/logging"
	"focus-backend/internal/metrics"
	"focus-backend/internal/models"
)

// Subscriber handles MQTT subscriptions and writes messages to channels
type Subscriber struct {
	client mqtt.Client

	// Output channel (written by subscriber, read by the signal service)
	SignalChan chan *models.SignalMessage

	signalTopic string
	sendTimeout time.Duration
}

// SubscriberConfig holds configuration for MQTT subscriber
type SubscriberConfig struct {
	SignalTopic string        // e.g., "focus/+/signals"
	SendTimeout time.Duration // how long to wait on a full channel before dropping
}

// NewSubscriber creates a new MQTT subscriber writing to signalChan
func NewSubscriber(client mqtt.Client, config SubscriberConfig, signalChan chan *models.SignalMessage) *Subscriber {
	if config.SendTimeout <= 0 {
		config.SendTimeout = time.Second
	}
	return &Subscriber{
		client:      client,
		SignalChan:  signalChan,
		signalTopic: config.SignalTopic,
		sendTimeout: config.SendTimeout,
	}
}

// SubscribeAll subscribes to all configured topics
func (s *Subscriber) SubscribeAll() error {
	if s.signalTopic == "" {
		return nil
	}

	token := s.client.Subscribe(s.signalTopic, 1, s.handleSignals)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to signal topic: %w", token.Error())
	}

	logging.Info().Str("topic", s.signalTopic).Msg("Subscribed to signal topic")
	return nil
}

// Unsubscribe removes the signal subscription
func (s *Subscriber) Unsubscribe() {
	if s.signalTopic == "" {
		return
	}
	s.client.Unsubscribe(s.signalTopic).WaitTimeout(time.Second)
}

// handleSignals parses a signal message and writes it to the channel
func (s *Subscriber) handleSignals(_ mqtt.Client, msg mqtt.Message) {
	userID := extractUserID(msg.Topic())
	if userID == "" {
		logging.Warn().Str("topic", msg.Topic()).Msg("Could not extract user ID from topic")
		metrics.IngestMessages.WithLabelValues("rejected").Inc()
		return
	}

	signals, day, err := parseSignalPayload(msg.Payload())
	if err != nil {
		logging.Warn().Err(err).Str("user_id", userID).Msg("Dropping malformed signal message")
		metrics.IngestMessages.WithLabelValues("rejected").Inc()
		return
	}

	message := &models.SignalMessage{
		UserID:     userID,
		Day:        day,
		Signals:    signals,
		ReceivedAt: time.Now().UTC(),
	}

	// Write to channel (non-blocking with timeout)
	select {
	case s.SignalChan <- message:
		metrics.IngestMessages.WithLabelValues("accepted").Inc()
	case <-time.After(s.sendTimeout):
		logging.Warn().Str("user_id", userID).Msg("Signal channel full, dropping message")
		metrics.IngestMessages.WithLabelValues("dropped").Inc()
	}
}

// parseSignalPayload reads a JSON object of signal values with an optional "date".
// Unknown keys and non-numeric values are ignored.
func parseSignalPayload(payload []byte) (models.SignalSet, time.Time, error) {
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return models.SignalSet{}, time.Time{}, fmt.Errorf("failed to parse signal payload: %w", err)
	}

	var day time.Time
	values := make(map[string]float64, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case float64:
			values[key] = v
		case string:
			if key != "date" {
				continue
			}
			parsed, err := time.Parse("2006-01-02", v)
			if err != nil {
				return models.SignalSet{}, time.Time{}, fmt.Errorf("invalid date %q: %w", v, err)
			}
			day = parsed
		}
	}

	return models.SignalSetFromMap(values), day, nil
}

// extractUserID extracts the user ID from topics like focus/{user_id}/signals
func extractUserID(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) >= 3 {
		return parts[1]
	}
	return ""
}
