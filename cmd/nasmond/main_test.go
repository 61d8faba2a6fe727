package main

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/naspanel/nasmon/config"
	"github.com/naspanel/nasmon/encoding"
)

func TestBrokerConfigKeepsGrantCapAtQoS1(t *testing.T) {
	cfg := config.Default()
	cfg.MQTT.QoS = 0

	bc := brokerConfig(cfg, slog.New(slog.DiscardHandler))
	assert.Equal(t, encoding.QoS1, bc.MaxQoS)
	assert.Equal(t, "0.0.0.0:1883", bc.Addr)
}
