// Package collector drives the periodic collection cycle: sample every
// probe, assemble the telemetry payload and hand it to the publisher.
package collector

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/naspanel/nasmon/encoding"
	"github.com/naspanel/nasmon/probe"
)

// Publisher delivers one payload. Both the embedded broker and the
// external-broker client satisfy it.
type Publisher interface {
	Publish(topic string, payload []byte, qos encoding.QoS, retain bool) error
}

// Config holds the collector settings, pre-resolved by the config layer
type Config struct {
	Hostname string
	IP       string
	Topic    string
	QoS      encoding.QoS
	Interval time.Duration
	Logger   *slog.Logger
}

// Collector samples probes on a fixed cadence and publishes the result
type Collector struct {
	cfg      Config
	system   *probe.System
	registry *probe.Registry
	pub      Publisher
	log      *slog.Logger
	now      func() time.Time
}

func New(cfg Config, system *probe.System, registry *probe.Registry, pub Publisher) *Collector {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Collector{
		cfg:      cfg,
		system:   system,
		registry: registry,
		pub:      pub,
		log:      log,
		now:      time.Now,
	}
}

// Run collects immediately, then on every interval tick until ctx is
// cancelled. A failed publish is logged and the loop continues.
func (c *Collector) Run(ctx context.Context) {
	c.log.Info("collector started", "interval", c.cfg.Interval, "topic", c.cfg.Topic)

	c.tick(ctx)

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.tick(ctx)
		case <-ctx.Done():
			c.log.Info("collector stopped")
			return
		}
	}
}

func (c *Collector) tick(ctx context.Context) {
	payload := c.CollectOnce(ctx)

	data, err := json.Marshal(payload)
	if err != nil {
		c.log.Error("payload marshal failed", "error", err)
		return
	}

	if err := c.pub.Publish(c.cfg.Topic, data, c.cfg.QoS, false); err != nil {
		c.log.Warn("publish failed", "topic", c.cfg.Topic, "error", err)
		return
	}

	c.log.Debug("payload published", "topic", c.cfg.Topic, "bytes", len(data))
}

// CollectOnce samples every probe and assembles one payload. Individual
// probe failures never abort the cycle: a built-in block is omitted, a
// custom entry carries the error text.
func (c *Collector) CollectOnce(ctx context.Context) *Payload {
	payload := &Payload{
		Hostname: c.cfg.Hostname,
		IP:       c.cfg.IP,
		Time:     FormatTimestamp(c.now()),
	}

	if cpu, err := c.system.CPU(ctx); err != nil {
		c.log.Warn("cpu probe failed", "error", err)
	} else {
		payload.CPU = &cpu
	}

	if mem, err := c.system.Memory(ctx); err != nil {
		c.log.Warn("memory probe failed", "error", err)
	} else {
		payload.Memory = &mem
	}

	if storage, err := c.system.Storage(ctx); err != nil {
		c.log.Warn("storage probe failed", "error", err)
	} else {
		payload.Storage = &storage
	}

	if network, err := c.system.Network(ctx); err != nil {
		c.log.Warn("network probe failed", "error", err)
	} else {
		payload.Network = &network
	}

	probes := c.registry.Probes()
	if len(probes) > 0 {
		payload.Custom = make(map[string]CustomValue, len(probes))
		for _, p := range probes {
			value, err := p.Sample(ctx)
			if err != nil {
				c.log.Warn("custom probe failed", "probe", p.Name(), "error", err)
				payload.Custom[p.Name()] = CustomValue{Error: err.Error(), Type: string(p.Kind())}
				continue
			}
			payload.Custom[p.Name()] = CustomValue{Value: value.Data, Unit: value.Unit, Type: string(value.Kind)}
		}
	}

	return payload
}
