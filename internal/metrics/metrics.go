// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons used as the `reason` label of FramesDroppedTotal.
const (
	DropMalformed   = "malformed"
	DropUntagged    = "untagged_trunk"
	DropUnknownPort = "unknown_port"
	DropFiltered    = "filtered"
	DropNoEgress    = "no_egress"
)

// Decision kinds used as the `kind` label of ForwardDecisionsTotal.
const (
	KindUnicast  = "unicast"
	KindFlood    = "flood"
	KindFiltered = "filtered"
)

var (
	// FramesReceivedTotal counts frames read from each port.
	FramesReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vswitch_frames_received_total",
			Help: "Total number of frames received",
		},
		[]string{"port"},
	)

	// FramesTransmittedTotal counts frames written to each port.
	FramesTransmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vswitch_frames_transmitted_total",
			Help: "Total number of frames transmitted",
		},
		[]string{"port"},
	)

	// FramesDroppedTotal counts frames discarded by the forwarding loop.
	FramesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vswitch_frames_dropped_total",
			Help: "Total number of frames dropped",
		},
		[]string{"reason"},
	)

	// ForwardDecisionsTotal counts forwarding decisions by kind.
	ForwardDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vswitch_forward_decisions_total",
			Help: "Total number of forwarding decisions (unicast, flood, filtered)",
		},
		[]string{"kind"},
	)

	// TransmitErrorsTotal counts failed writes per port.
	TransmitErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vswitch_transmit_errors_total",
			Help: "Total number of frame transmit errors",
		},
		[]string{"port"},
	)

	// FDBEntries tracks the forwarding table size.
	FDBEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vswitch_fdb_entries",
			Help: "Number of entries in the forwarding table",
		},
	)

	// FDBMovesTotal counts MAC addresses relearned on a different port.
	FDBMovesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vswitch_fdb_moves_total",
			Help: "Total number of MAC addresses that moved to another port",
		},
	)

	// ProcessLatencySeconds measures one forwarding iteration, decode to last transmit.
	ProcessLatencySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vswitch_process_latency_seconds",
			Help:    "Latency of a forwarding iteration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.000001, 2, 20), // 1µs to ~1s
		},
	)

	// MirrorErrorsTotal counts frames the pcap mirror failed to record.
	MirrorErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vswitch_mirror_errors_total",
			Help: "Total number of frames the pcap mirror failed to write",
		},
	)
)
