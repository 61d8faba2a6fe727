package collector

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naspanel/nasmon/encoding"
	"github.com/naspanel/nasmon/probe"
)

// canonicalPayload is the reference telemetry document consumers are
// built against
const canonicalPayload = `{"hostname":"NAS-Server","ip":"192.168.1.100","timestamp":"2023-12-01T22:58:00",
 "cpu":{"usage":35.5,"temperature":45.2},
 "memory":{"usage":67.8,"total":17179869184,"used":11659091968},
 "storage":{"capacity":32000000000000,"used":18000000000000,
  "disks":[{"id":"hdd1","status":"normal"},{"id":"hdd3","status":"warning"},{"id":"hdd5","status":"error"}]},
 "network":{"upload":2812000,"download":9400000}}`

func TestPayloadMatchesCanonicalDocument(t *testing.T) {
	cpuTemp := 45.2
	payload := &Payload{
		Hostname: "NAS-Server",
		IP:       "192.168.1.100",
		Time:     "2023-12-01T22:58:00",
		CPU:      &probe.CPUStats{Usage: 35.5, Temperature: &cpuTemp},
		Memory:   &probe.MemoryStats{Usage: 67.8, Total: 17179869184, Used: 11659091968},
		Storage: &probe.StorageStats{
			Capacity: 32000000000000,
			Used:     18000000000000,
			Disks: []probe.DiskStatus{
				{ID: "hdd1", Status: "normal"},
				{ID: "hdd3", Status: "warning"},
				{ID: "hdd5", Status: "error"},
			},
		},
		Network: &probe.NetworkStats{Upload: 2812000, Download: 9400000},
	}

	got, err := json.Marshal(payload)
	require.NoError(t, err)

	var gotDoc, wantDoc map[string]any
	require.NoError(t, json.Unmarshal(got, &gotDoc))
	require.NoError(t, json.Unmarshal([]byte(canonicalPayload), &wantDoc))
	assert.Equal(t, wantDoc, gotDoc)
}

func TestPayloadOmitsFailedBuiltins(t *testing.T) {
	payload := &Payload{
		Hostname: "h",
		IP:       "127.0.0.1",
		Time:     "2023-12-01T22:58:00",
		Network:  &probe.NetworkStats{},
	}

	got, err := json.Marshal(payload)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(got, &doc))
	assert.NotContains(t, doc, "cpu")
	assert.NotContains(t, doc, "memory")
	assert.NotContains(t, doc, "storage")
	assert.NotContains(t, doc, "custom")

	// First tick reports zero rates, not a missing block
	assert.Equal(t, map[string]any{"upload": float64(0), "download": float64(0)}, doc["network"])
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2023, 12, 1, 22, 58, 0, 0, time.Local)
	assert.Equal(t, "2023-12-01T22:58:00", FormatTimestamp(ts))
}

type capturePublisher struct {
	mu       sync.Mutex
	topics   []string
	payloads [][]byte
	qos      []encoding.QoS
	retain   []bool
}

func (p *capturePublisher) Publish(topic string, payload []byte, qos encoding.QoS, retain bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	p.qos = append(p.qos, qos)
	p.retain = append(p.retain, retain)
	return nil
}

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.payloads)
}

func newTestCollector(t *testing.T, pub Publisher) *Collector {
	t.Helper()

	registry := probe.NewRegistry()

	ok, err := probe.NewCustom(probe.Spec{Name: "build", Type: "env", Variable: "NASMON_MISSING", Default: "42"})
	require.NoError(t, err)
	require.NoError(t, registry.Register(ok))

	failing, err := probe.NewCustom(probe.Spec{Name: "broken", Type: "file", Path: "/nonexistent/file"})
	require.NoError(t, err)
	require.NoError(t, registry.Register(failing))

	c := New(Config{
		Hostname: "nas-test",
		IP:       "192.168.1.10",
		Topic:    "nas/panel/data",
		QoS:      encoding.QoS1,
		Interval: 50 * time.Millisecond,
	}, probe.NewSystem(), registry, pub)
	c.now = func() time.Time { return time.Date(2023, 12, 1, 22, 58, 0, 0, time.Local) }
	return c
}

func TestCollectOnce(t *testing.T) {
	c := newTestCollector(t, &capturePublisher{})

	payload := c.CollectOnce(context.Background())

	assert.Equal(t, "nas-test", payload.Hostname)
	assert.Equal(t, "192.168.1.10", payload.IP)
	assert.Equal(t, "2023-12-01T22:58:00", payload.Time)

	// One working and one failing custom probe: the failure is isolated
	require.Contains(t, payload.Custom, "build")
	assert.Equal(t, int64(42), payload.Custom["build"].Value)
	assert.Empty(t, payload.Custom["build"].Error)

	require.Contains(t, payload.Custom, "broken")
	assert.Empty(t, payload.Custom["broken"].Value)
	assert.NotEmpty(t, payload.Custom["broken"].Error)
	assert.Equal(t, "file", payload.Custom["broken"].Type)
}

func TestRunPublishesOnSchedule(t *testing.T) {
	pub := &capturePublisher{}
	c := newTestCollector(t, pub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return pub.count() >= 3
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Equal(t, "nas/panel/data", pub.topics[0])
	assert.Equal(t, encoding.QoS1, pub.qos[0])
	assert.False(t, pub.retain[0])

	var doc map[string]any
	require.NoError(t, json.Unmarshal(pub.payloads[0], &doc))
	assert.Equal(t, "nas-test", doc["hostname"])
}
