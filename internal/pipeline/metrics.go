package pipeline

import (
	"sync/atomic"
)

// Metrics holds per-pipeline counters, reported by the daemon status call.
type Metrics struct {
	Built              atomic.Uint64
	Failed             atomic.Uint64
	Verified           atomic.Uint64
	ChecksumMismatches atomic.Uint64
	Sent               atomic.Uint64
	SendErrors         atomic.Uint64
}

// Stats is a point-in-time copy of Metrics.
type Stats struct {
	Built              uint64 `json:"built"`
	Failed             uint64 `json:"failed"`
	Verified           uint64 `json:"verified"`
	ChecksumMismatches uint64 `json:"checksum_mismatches"`
	Sent               uint64 `json:"sent"`
	SendErrors         uint64 `json:"send_errors"`
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Snapshot copies the current counter values.
func (m *Metrics) Snapshot() Stats {
	return Stats{
		Built:              m.Built.Load(),
		Failed:             m.Failed.Load(),
		Verified:           m.Verified.Load(),
		ChecksumMismatches: m.ChecksumMismatches.Load(),
		Sent:               m.Sent.Load(),
		SendErrors:         m.SendErrors.Load(),
	}
}

// Reset resets all counters to zero.
func (m *Metrics) Reset() {
	m.Built.Store(0)
	m.Failed.Store(0)
	m.Verified.Store(0)
	m.ChecksumMismatches.Store(0)
	m.Sent.Store(0)
	m.SendErrors.Store(0)
}
