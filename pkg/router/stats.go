package router

import (
	"sort"
	"sync"
)

// latencySampleCap bounds the per-layer latency history used for
// percentile snapshots.
const latencySampleCap = 1024

type layerAccumulator struct {
	attempts int64
	accepted int64
	samples  []float64
	next     int
	full     bool
}

// LayerStats is the in-process metrics accumulator for the cascade: counts
// per layer and a bounded latency history for percentile snapshots. Many
// request workers update it concurrently.
type LayerStats struct {
	mu     sync.Mutex
	layers map[string]*layerAccumulator
}

// NewLayerStats creates an empty accumulator.
func NewLayerStats() *LayerStats {
	return &LayerStats{layers: make(map[string]*layerAccumulator)}
}

// Record adds one layer attempt with its latency in seconds.
func (s *LayerStats) Record(layer string, accepted bool, seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.layers[layer]
	if !ok {
		acc = &layerAccumulator{samples: make([]float64, 0, latencySampleCap)}
		s.layers[layer] = acc
	}

	acc.attempts++
	if accepted {
		acc.accepted++
	}

	if len(acc.samples) < latencySampleCap {
		acc.samples = append(acc.samples, seconds)
	} else {
		acc.samples[acc.next] = seconds
		acc.next = (acc.next + 1) % latencySampleCap
		acc.full = true
	}
}

// LayerSnapshot is a point-in-time view of one layer's statistics.
// Latency percentiles are in seconds.
type LayerSnapshot struct {
	Attempts   int64   `json:"attempts"`
	Accepted   int64   `json:"accepted"`
	LatencyP50 float64 `json:"latency_p50_seconds"`
	LatencyP95 float64 `json:"latency_p95_seconds"`
	LatencyP99 float64 `json:"latency_p99_seconds"`
}

// Snapshot returns a consistent view across all layers.
func (s *LayerStats) Snapshot() map[string]LayerSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]LayerSnapshot, len(s.layers))
	for layer, acc := range s.layers {
		sorted := make([]float64, len(acc.samples))
		copy(sorted, acc.samples)
		sort.Float64s(sorted)

		out[layer] = LayerSnapshot{
			Attempts:   acc.attempts,
			Accepted:   acc.accepted,
			LatencyP50: percentile(sorted, 0.50),
			LatencyP95: percentile(sorted, 0.95),
			LatencyP99: percentile(sorted, 0.99),
		}
	}
	return out
}

// percentile uses nearest-rank on a sorted sample.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p*float64(len(sorted))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
