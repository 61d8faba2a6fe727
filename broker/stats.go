package broker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// stats collects broker metrics. Each broker carries its own registry so
// several instances can coexist in one process.
type stats struct {
	registry *prometheus.Registry

	ActiveConnections prometheus.Gauge
	PacketsReceived   prometheus.Counter
	PacketsSent       prometheus.Counter
	BytesReceived     prometheus.Counter
	BytesSent         prometheus.Counter
	MessagesRouted    prometheus.Counter
	RetainedMessages  prometheus.Gauge
	SlowConsumers     prometheus.Counter
}

func newStats() *stats {
	s := &stats{
		registry: prometheus.NewRegistry(),
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mqtt_active_client_count",
			Help: "The active number of MQTT clients",
		}),
		PacketsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_received_packets",
			Help: "The total number of received MQTT packets",
		}),
		PacketsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_sent_packets",
			Help: "The total number of sent MQTT packets",
		}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_received_bytes",
			Help: "The total number of received MQTT bytes",
		}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_sent_bytes",
			Help: "The total number of sent MQTT bytes",
		}),
		MessagesRouted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_routed_messages",
			Help: "The total number of messages fanned out to subscribers",
		}),
		RetainedMessages: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mqtt_retained_message_count",
			Help: "The number of retained messages held",
		}),
		SlowConsumers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_slow_consumer_disconnects",
			Help: "The total number of clients dropped for a full outbound queue",
		}),
	}

	s.registry.MustRegister(
		s.ActiveConnections,
		s.PacketsReceived,
		s.PacketsSent,
		s.BytesReceived,
		s.BytesSent,
		s.MessagesRouted,
		s.RetainedMessages,
		s.SlowConsumers,
	)

	return s
}

// Handler serves the metrics endpoint for this broker's registry
func (s *stats) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
