package mqttclient

import "errors"

var (
	// ErrConnect indicates the initial broker connection failed
	ErrConnect = errors.New("failed to connect to MQTT broker")

	// ErrPublish indicates a publish was not accepted by the broker
	ErrPublish = errors.New("failed to publish to MQTT broker")

	// ErrClientClosed indicates an operation on a disconnected client
	ErrClientClosed = errors.New("mqtt client is closed")
)
