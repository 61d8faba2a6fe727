package probe

import (
	"context"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	gnet "github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/sensors"
)

// CPUStats is the cpu block of the telemetry payload
type CPUStats struct {
	Usage       float64  `json:"usage"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// MemoryStats is the memory block of the telemetry payload
type MemoryStats struct {
	Usage       float64  `json:"usage"`
	Total       uint64   `json:"total"`
	Used        uint64   `json:"used"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// DiskStatus is one entry of the storage disk list
type DiskStatus struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// StorageStats is the storage block of the telemetry payload
type StorageStats struct {
	Capacity uint64       `json:"capacity"`
	Used     uint64       `json:"used"`
	Disks    []DiskStatus `json:"disks"`
}

// NetworkStats is the network block of the telemetry payload, in
// bytes per second
type NetworkStats struct {
	Upload   uint64 `json:"upload"`
	Download uint64 `json:"download"`
}

const (
	DiskStatusNormal  = "normal"
	DiskStatusWarning = "warning"
	DiskStatusError   = "error"
)

// Disk usage thresholds driving the status heuristic
const (
	diskWarningPercent = 90.0
	diskErrorPercent   = 95.0
)

// System samples the built-in machine probes. Network rate computation
// keeps the previous counter snapshot, so one System must serve all
// ticks of a collector.
type System struct {
	lastSent uint64
	lastRecv uint64
	lastAt   time.Time
	baseline bool
}

func NewSystem() *System {
	return &System{}
}

// CPU samples aggregate usage and, when a sensor exposes one, the CPU
// temperature
func (s *System) CPU(ctx context.Context) (CPUStats, error) {
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return CPUStats{}, err
	}

	usage := 0.0
	if len(percents) > 0 {
		usage = percents[0]
	}

	stats := CPUStats{Usage: round1(usage)}
	if temp, ok := cpuTemperature(ctx); ok {
		t := round1(temp)
		stats.Temperature = &t
	}
	return stats, nil
}

// Memory samples virtual memory usage. A DIMM temperature sensor is
// rare; the field is set only when one exists.
func (s *System) Memory(ctx context.Context) (MemoryStats, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return MemoryStats{}, err
	}

	stats := MemoryStats{
		Usage: round1(vm.UsedPercent),
		Total: vm.Total,
		Used:  vm.Used,
	}
	if temp, ok := memoryTemperature(ctx); ok {
		t := round1(temp)
		stats.Temperature = &t
	}
	return stats, nil
}

// Storage sums capacity across mounted partitions and reports a status
// per device based on fill level
func (s *System) Storage(ctx context.Context) (StorageStats, error) {
	partitions, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return StorageStats{}, err
	}

	stats := StorageStats{Disks: []DiskStatus{}}
	seen := make(map[string]bool)

	for _, part := range partitions {
		usage, err := disk.UsageWithContext(ctx, part.Mountpoint)
		if err != nil {
			// Inaccessible mounts are skipped, not fatal
			continue
		}

		stats.Capacity += usage.Total
		stats.Used += usage.Used

		device := filepath.Base(part.Device)
		if seen[device] {
			continue
		}
		seen[device] = true

		stats.Disks = append(stats.Disks, DiskStatus{
			ID:     device,
			Status: diskStatus(usage.UsedPercent),
		})
	}

	return stats, nil
}

// Network computes upload/download rates in bytes per second from the
// aggregate interface counters. The first sample after start reports
// zero for both.
func (s *System) Network(ctx context.Context) (NetworkStats, error) {
	counters, err := gnet.IOCountersWithContext(ctx, false)
	if err != nil {
		return NetworkStats{}, err
	}
	if len(counters) == 0 {
		return NetworkStats{}, nil
	}

	now := time.Now()
	sent, recv := counters[0].BytesSent, counters[0].BytesRecv

	if !s.baseline {
		s.lastSent, s.lastRecv, s.lastAt = sent, recv, now
		s.baseline = true
		return NetworkStats{}, nil
	}

	elapsed := now.Sub(s.lastAt).Seconds()
	if elapsed <= 0 {
		return NetworkStats{}, nil
	}

	stats := NetworkStats{
		Upload:   rate(sent, s.lastSent, elapsed),
		Download: rate(recv, s.lastRecv, elapsed),
	}

	s.lastSent, s.lastRecv, s.lastAt = sent, recv, now
	return stats, nil
}

// rate converts a counter delta to bytes per second, treating counter
// resets as zero
func rate(current, previous uint64, elapsed float64) uint64 {
	if current < previous {
		return 0
	}
	return uint64(float64(current-previous) / elapsed)
}

func diskStatus(usedPercent float64) string {
	switch {
	case usedPercent >= diskErrorPercent:
		return DiskStatusError
	case usedPercent >= diskWarningPercent:
		return DiskStatusWarning
	default:
		return DiskStatusNormal
	}
}

// cpuTemperature picks the CPU package sensor, preferring the well-known
// Intel and AMD driver names
func cpuTemperature(ctx context.Context) (float64, bool) {
	temps, err := sensors.TemperaturesWithContext(ctx)
	if err != nil || len(temps) == 0 {
		return 0, false
	}

	for _, prefix := range []string{"coretemp", "k10temp"} {
		for _, t := range temps {
			if strings.HasPrefix(t.SensorKey, prefix) {
				return t.Temperature, true
			}
		}
	}
	return temps[0].Temperature, true
}

// memoryTemperature looks for a DIMM sensor
func memoryTemperature(ctx context.Context) (float64, bool) {
	temps, err := sensors.TemperaturesWithContext(ctx)
	if err != nil {
		return 0, false
	}

	for _, t := range temps {
		key := strings.ToLower(t.SensorKey)
		if strings.Contains(key, "dimm") || strings.Contains(key, "memory") || strings.Contains(key, "ram") {
			return t.Temperature, true
		}
	}
	return 0, false
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
