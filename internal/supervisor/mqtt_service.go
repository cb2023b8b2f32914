package supervisor

import (
	"context"
	"fmt"
	"sync/atomic"

	"focus-backend/internal/logging"
	"focus-backend/internal/models"
	"focus-backend/internal/mqtt"
)

// MQTTServiceConfig holds the broker connection and topic settings
type MQTTServiceConfig struct {
	Client     mqtt.ClientConfig
	Subscriber mqtt.SubscriberConfig
	Publisher  mqtt.PublisherConfig
}

// MQTTService owns the broker connection. It subscribes to signal topics and
// publishes predictions until cancelled. A failed connect is returned so the
// supervisor retries with backoff.
type MQTTService struct {
	config      MQTTServiceConfig
	signals     chan *models.SignalMessage
	predictions chan *models.PredictionMessage
}

func NewMQTTService(config MQTTServiceConfig, signals chan *models.SignalMessage, predictions chan *models.PredictionMessage) *MQTTService {
	return &MQTTService{config: config, signals: signals, predictions: predictions}
}

// Serve implements suture.Service.
func (s *MQTTService) Serve(ctx context.Context) error {
	// set once subscribed; reconnects restore the subscription through it
	var active atomic.Pointer[mqtt.Subscriber]

	clientCfg := s.config.Client
	clientCfg.OnConnect = func() {
		if sub := active.Load(); sub != nil {
			if err := sub.SubscribeAll(); err != nil {
				logging.Warn().Err(err).Msg("Failed to restore subscriptions after reconnect")
			}
		}
	}

	client, err := mqtt.NewClient(clientCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	defer client.Close()

	subscriber := mqtt.NewSubscriber(client.GetNativeClient(), s.config.Subscriber, s.signals)
	if err := subscriber.SubscribeAll(); err != nil {
		return fmt.Errorf("mqtt subscribe: %w", err)
	}
	active.Store(subscriber)
	defer subscriber.Unsubscribe()

	publisher := mqtt.NewPublisher(client.GetNativeClient(), s.config.Publisher, s.predictions)

	logging.Info().
		Str("signals", s.config.Subscriber.SignalTopic).
		Str("predictions", s.config.Publisher.PredictionTopic).
		Msg("MQTT ingest running")

	publisher.Start(ctx)
	return ctx.Err()
}

func (s *MQTTService) String() string { return "mqtt-ingest" }
