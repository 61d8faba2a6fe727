package collector

import (
	"time"

	"github.com/naspanel/nasmon/probe"
)

// TimestampLayout is ISO-8601 without a zone suffix. Timestamps are
// local wall-clock, matching what panel consumers display verbatim.
const TimestampLayout = "2006-01-02T15:04:05"

// Payload is the telemetry document published on every collection tick.
// A failed built-in probe leaves its block nil, which omits the key.
type Payload struct {
	Hostname string                 `json:"hostname"`
	IP       string                 `json:"ip"`
	Time     string                 `json:"timestamp"`
	CPU      *probe.CPUStats        `json:"cpu,omitempty"`
	Memory   *probe.MemoryStats     `json:"memory,omitempty"`
	Storage  *probe.StorageStats    `json:"storage,omitempty"`
	Network  *probe.NetworkStats    `json:"network,omitempty"`
	Custom   map[string]CustomValue `json:"custom,omitempty"`
}

// CustomValue is one user-declared probe result. A failed probe carries
// the error text instead of a value.
type CustomValue struct {
	Value any    `json:"value,omitempty"`
	Unit  string `json:"unit,omitempty"`
	Type  string `json:"type,omitempty"`
	Error string `json:"error,omitempty"`
}

// FormatTimestamp renders a payload timestamp
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}
