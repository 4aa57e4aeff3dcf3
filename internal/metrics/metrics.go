// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BuildsTotal counts pipeline builds by protocol and result
	BuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pktcraft_builds_total",
			Help: "Total number of packet builds",
		},
		[]string{"protocol", "result"},
	)

	// BuildErrorsTotal counts failed builds by error kind
	BuildErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pktcraft_build_errors_total",
			Help: "Total number of failed packet builds",
		},
		[]string{"protocol", "kind"},
	)

	// BuildLatencySeconds measures how long a build takes
	BuildLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pktcraft_build_latency_seconds",
			Help:    "Latency of packet builds in seconds",
			Buckets: prometheus.ExponentialBuckets(0.000001, 2, 16), // 1µs to ~32ms
		},
		[]string{"protocol"},
	)

	// FrameBytes tracks the size of built frames
	FrameBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pktcraft_frame_bytes",
			Help:    "Size of built Ethernet frames in bytes",
			Buckets: prometheus.LinearBuckets(64, 128, 12),
		},
		[]string{"protocol"},
	)

	// TransmitTotal counts frames handed to a transmitter
	TransmitTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pktcraft_transmit_frames_total",
			Help: "Total number of frames transmitted",
		},
		[]string{"driver", "result"},
	)

	// TransmitBytesTotal counts bytes written by transmitters
	TransmitBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pktcraft_transmit_bytes_total",
			Help: "Total number of bytes transmitted",
		},
		[]string{"driver"},
	)

	// ChecksumMismatchTotal counts built frames whose checksums do not verify
	ChecksumMismatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pktcraft_checksum_mismatch_total",
			Help: "Total number of built frames failing checksum verification",
		},
		[]string{"layer"},
	)

	// StoredFrames tracks frames in the frame store
	StoredFrames = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pktcraft_stored_frames",
			Help: "Number of frames in the frame store",
		},
	)

	// ReplayFramesTotal counts frames sent by sequence replay
	ReplayFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pktcraft_replay_frames_total",
			Help: "Total number of frames sent by sequence replay",
		},
		[]string{"result"},
	)

	// ControlRequestsTotal counts control socket requests by method
	ControlRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pktcraft_control_requests_total",
			Help: "Total number of control socket requests",
		},
		[]string{"method", "result"},
	)
)
