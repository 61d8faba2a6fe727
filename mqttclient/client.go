// Package mqttclient publishes telemetry to an external MQTT broker.
// It mirrors the embedded broker's Publish contract so the collector
// does not care which mode is configured.
package mqttclient

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/naspanel/nasmon/encoding"
)

const (
	connectRetryInterval = time.Second
	maxReconnectInterval = 30 * time.Second
	disconnectQuiesce    = 250 * time.Millisecond
)

// Config holds the external-broker connection settings
type Config struct {
	Host      string
	Port      int
	Username  string
	Password  string
	ClientID  string
	KeepAlive time.Duration
	Logger    *slog.Logger
}

// Publisher is a paho-backed client with automatic reconnection.
// Reconnect backoff grows from one second up to thirty seconds.
type Publisher struct {
	client mqtt.Client
	log    *slog.Logger
	closed atomic.Bool
}

// New connects to the broker. The initial connection retries with the
// same backoff as reconnects, so a broker that is briefly down at start
// does not fail the process.
func New(cfg Config) (*Publisher, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "nasmon-" + uuid.NewString()[:8]
	}

	keepAlive := cfg.KeepAlive
	if keepAlive == 0 {
		keepAlive = 60 * time.Second
	}

	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)).
		SetClientID(clientID).
		SetCleanSession(true).
		SetKeepAlive(keepAlive).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(connectRetryInterval).
		SetMaxReconnectInterval(maxReconnectInterval)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		log.Info("connected to external broker", "host", cfg.Host, "port", cfg.Port, "client_id", clientID)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("connection to external broker lost", "error", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnect, token.Error())
	}

	return &Publisher{client: client, log: log}, nil
}

// Publish sends one message and waits for the broker to accept it
func (p *Publisher) Publish(topic string, payload []byte, qos encoding.QoS, retain bool) error {
	if p.closed.Load() {
		return ErrClientClosed
	}

	token := p.client.Publish(topic, byte(qos), retain, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrPublish, err)
	}
	return nil
}

// Close disconnects from the broker, allowing in-flight messages a
// short drain window
func (p *Publisher) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	p.client.Disconnect(uint(disconnectQuiesce.Milliseconds()))
	p.log.Info("disconnected from external broker")
}
