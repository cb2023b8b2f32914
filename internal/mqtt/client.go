package mqtt

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"focus-backend/internal/logging"
)

// Client owns the broker connection. Subscriber and Publisher work on the
// native client it exposes.
type Client struct {
	client   mqtt.Client
	clientID string
}

// ClientConfig holds MQTT client configuration
type ClientConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	// UniqueSuffix appends a random suffix so several replicas can share one ClientID setting
	UniqueSuffix   bool
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	// OnConnect runs after every successful (re)connect, e.g. to restore subscriptions
	OnConnect func()
}

const (
	defaultKeepAlive      = 60 * time.Second
	defaultConnectTimeout = 10 * time.Second
	disconnectQuiesceMS   = 250
)

// NewClient connects to the broker and waits at most ConnectTimeout for the handshake
func NewClient(config ClientConfig) (*Client, error) {
	opts, clientID := clientOptions(config)
	native := mqtt.NewClient(opts)

	token := native.Connect()
	if !token.WaitTimeout(opts.ConnectTimeout) {
		native.Disconnect(0)
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: timed out after %s", config.Broker, opts.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", config.Broker, err)
	}

	logging.Info().Str("broker", config.Broker).Str("client_id", clientID).Msg("MQTT client connected")
	return &Client{client: native, clientID: clientID}, nil
}

// clientOptions translates the config into paho options and returns the effective client id
func clientOptions(config ClientConfig) (*mqtt.ClientOptions, string) {
	clientID := config.ClientID
	if config.UniqueSuffix {
		clientID = clientID + "-" + uuid.NewString()[:8]
	}
	keepAlive := config.KeepAlive
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	connectTimeout := config.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}

	log := logging.Component("mqtt")
	onConnect := config.OnConnect

	opts := mqtt.NewClientOptions().
		AddBroker(config.Broker).
		SetClientID(clientID).
		SetUsername(config.Username).
		SetPassword(config.Password).
		SetAutoReconnect(true).
		SetKeepAlive(keepAlive).
		SetPingTimeout(keepAlive / 6).
		SetConnectTimeout(connectTimeout).
		SetDefaultPublishHandler(func(_ mqtt.Client, msg mqtt.Message) {
			log.Debug().Str("topic", msg.Topic()).Msg("Message on unhandled topic")
		}).
		SetOnConnectHandler(func(_ mqtt.Client) {
			log.Info().Msg("Connection established")
			if onConnect != nil {
				onConnect()
			}
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warn().Err(err).Msg("Connection lost, reconnecting")
		})

	return opts, clientID
}

// GetNativeClient returns the underlying paho client
func (c *Client) GetNativeClient() mqtt.Client {
	return c.client
}

func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// ClientID is the id presented to the broker, including any random suffix
func (c *Client) ClientID() string {
	return c.clientID
}

// Close disconnects after letting in-flight work drain briefly
func (c *Client) Close() {
	c.client.Disconnect(disconnectQuiesceMS)
	logging.Info().Str("client_id", c.clientID).Msg("MQTT client disconnected")
}
