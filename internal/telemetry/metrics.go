// Package telemetry exposes the Prometheus gauges/counters/histograms the
// core publishes, grounded on the log-capture pipeline's internal/metrics
// package (promauto-registered vectors with component/operation labels).
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ArenaAllocatedUnicodeTotal counts codepoints interned into the
	// shared string arena.
	ArenaAllocatedUnicodeTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crdt_text_arena_allocated_unicode_total",
		Help: "Total number of Unicode codepoints interned into the shared string arena",
	})

	// ArenaContainersRegistered counts distinct containers registered.
	ArenaContainersRegistered = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crdt_text_arena_containers_registered",
		Help: "Number of distinct containers registered in the shared arena",
	})

	// TrackerAppliedOpsTotal counts ops ingested by the tracker, by
	// apply-decision branch (full, forward, shift).
	TrackerAppliedOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crdt_text_tracker_applied_ops_total",
		Help: "Total ops ingested by the tracker, labeled by apply decision",
	}, []string{"decision"})

	// TrackerEffectsEmittedTotal counts effects produced by iter_effects.
	TrackerEffectsEmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crdt_text_tracker_effects_emitted_total",
		Help: "Total effects emitted by the tracker, labeled by kind (ins, del)",
	}, []string{"kind"})

	// RopeGCLiveRatio records the live-to-inserted codepoint ratio the
	// last time the rope recomputed slice aliveness.
	RopeGCLiveRatio = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crdt_text_rope_gc_live_ratio",
		Help: "Live-to-inserted codepoint ratio as of the last GC aliveness recomputation",
	})

	// RopeOperationDuration times insert/delete calls on the rope.
	RopeOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crdt_text_rope_operation_duration_seconds",
		Help:    "Duration of rope operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
)
