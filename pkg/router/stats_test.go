package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayerStatsCountsAndAcceptance(t *testing.T) {
	s := NewLayerStats()
	s.Record("pattern", true, 0.001)
	s.Record("pattern", false, 0.002)
	s.Record("semantic", true, 0.010)

	snapshot := s.Snapshot()
	require.Contains(t, snapshot, "pattern")
	assert.Equal(t, int64(2), snapshot["pattern"].Attempts)
	assert.Equal(t, int64(1), snapshot["pattern"].Accepted)
	assert.Equal(t, int64(1), snapshot["semantic"].Attempts)
}

func TestLayerStatsPercentiles(t *testing.T) {
	s := NewLayerStats()
	for i := 1; i <= 100; i++ {
		s.Record("llm", true, float64(i)/1000)
	}

	snapshot := s.Snapshot()
	llm := snapshot["llm"]
	assert.InDelta(t, 0.050, llm.LatencyP50, 0.0011)
	assert.InDelta(t, 0.095, llm.LatencyP95, 0.0011)
	assert.InDelta(t, 0.099, llm.LatencyP99, 0.0011)
}

func TestLayerStatsRingBufferBounded(t *testing.T) {
	s := NewLayerStats()
	for i := 0; i < latencySampleCap*2; i++ {
		s.Record("pattern", true, 1.0)
	}

	snapshot := s.Snapshot()
	assert.Equal(t, int64(latencySampleCap*2), snapshot["pattern"].Attempts)
	assert.Equal(t, 1.0, snapshot["pattern"].LatencyP99)
}

func TestLayerStatsEmptySnapshot(t *testing.T) {
	s := NewLayerStats()
	assert.Empty(t, s.Snapshot())
}
