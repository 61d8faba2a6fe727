package broker

import (
	"log/slog"
	"time"

	"github.com/naspanel/nasmon/encoding"
)

// Config holds broker tuning knobs. The zero value is unusable; start
// from DefaultConfig.
type Config struct {
	// Addr is the TCP listen address
	Addr string

	// Username and Password enable authentication when both are non-empty.
	// With credentials configured, anonymous connections are refused.
	Username string
	Password string

	// MaxQoS caps the granted subscription QoS
	MaxQoS encoding.QoS

	// ConnectTimeout is how long a new connection may take to send CONNECT
	ConnectTimeout time.Duration

	// RetryInterval is the QoS 1 retransmit deadline per attempt
	RetryInterval time.Duration

	// MaxRetries is the number of retransmit attempts before the client
	// is disconnected
	MaxRetries int

	// QueueSize bounds the per-client outbound queue
	QueueSize int

	// QueueTimeout is how long a QoS 1 delivery may block on a full queue
	// before the consumer is declared slow
	QueueTimeout time.Duration

	// SweepInterval is the cadence of the keep-alive and retransmit sweep
	SweepInterval time.Duration

	// StopTimeout bounds the graceful drain on Stop
	StopTimeout time.Duration

	// MetricsAddr, when non-empty, serves Prometheus metrics on /metrics
	MetricsAddr string

	Logger *slog.Logger
}

// DefaultConfig returns the stock configuration listening on the standard
// MQTT port
func DefaultConfig() *Config {
	return &Config{
		Addr:           "0.0.0.0:1883",
		MaxQoS:         encoding.QoS1,
		ConnectTimeout: 10 * time.Second,
		RetryInterval:  20 * time.Second,
		MaxRetries:     3,
		QueueSize:      64,
		QueueTimeout:   time.Second,
		SweepInterval:  time.Second,
		StopTimeout:    5 * time.Second,
	}
}

// withDefaults fills unset fields so a partially populated config works
func (c *Config) withDefaults() *Config {
	def := DefaultConfig()

	out := *c
	if out.Addr == "" {
		out.Addr = def.Addr
	}
	if out.ConnectTimeout == 0 {
		out.ConnectTimeout = def.ConnectTimeout
	}
	if out.RetryInterval == 0 {
		out.RetryInterval = def.RetryInterval
	}
	if out.MaxRetries == 0 {
		out.MaxRetries = def.MaxRetries
	}
	if out.QueueSize == 0 {
		out.QueueSize = def.QueueSize
	}
	if out.QueueTimeout == 0 {
		out.QueueTimeout = def.QueueTimeout
	}
	if out.SweepInterval == 0 {
		out.SweepInterval = def.SweepInterval
	}
	if out.StopTimeout == 0 {
		out.StopTimeout = def.StopTimeout
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return &out
}
