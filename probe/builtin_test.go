package probe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiskStatus(t *testing.T) {
	tests := []struct {
		name        string
		usedPercent float64
		expected    string
	}{
		{name: "empty disk", usedPercent: 0, expected: DiskStatusNormal},
		{name: "half full", usedPercent: 50, expected: DiskStatusNormal},
		{name: "below warning", usedPercent: 89.9, expected: DiskStatusNormal},
		{name: "at warning", usedPercent: 90, expected: DiskStatusWarning},
		{name: "below error", usedPercent: 94.9, expected: DiskStatusWarning},
		{name: "at error", usedPercent: 95, expected: DiskStatusError},
		{name: "full", usedPercent: 100, expected: DiskStatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, diskStatus(tt.usedPercent))
		})
	}
}

func TestRate(t *testing.T) {
	assert.Equal(t, uint64(1000), rate(3000, 1000, 2))
	assert.Equal(t, uint64(0), rate(1000, 1000, 2))

	// Counter reset reports zero instead of underflowing
	assert.Equal(t, uint64(0), rate(500, 1000, 2))
}

func TestRound1(t *testing.T) {
	assert.Equal(t, 35.5, round1(35.456))
	assert.Equal(t, 67.8, round1(67.84))
	assert.Equal(t, 0.0, round1(0))
}
