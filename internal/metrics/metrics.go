// Package metrics exposes chronologd's process-wide Prometheus counters:
// ingestion, discard, extraction, directory, and persistence activity.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns an independent Prometheus registry so tests can construct
// isolated instances instead of racing on a package-level default.
type Collector struct {
	registry *prometheus.Registry

	eventsIngested    *prometheus.CounterVec
	eventsDiscarded   *prometheus.CounterVec
	chunksExtracted   *prometheus.CounterVec
	chunksFinalized   *prometheus.CounterVec
	invariantViolated *prometheus.CounterVec
	directoryOps      *prometheus.CounterVec
	persistedBytes    *prometheus.CounterVec
}

// New constructs a Collector and registers its instruments on a fresh
// registry.
func New() *Collector {
	registry := prometheus.NewRegistry()
	c := &Collector{
		registry: registry,
		eventsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chronolog",
			Name:      "events_ingested_total",
			Help:      "Events accepted by a story's ingestion handle.",
		}, []string{"story_id"}),
		eventsDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chronolog",
			Name:      "events_discarded_total",
			Help:      "Events dropped during merge because timeline extension failed.",
		}, []string{"story_id"}),
		chunksExtracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chronolog",
			Name:      "chunks_extracted_total",
			Help:      "Non-empty chunks handed to the extraction queue.",
		}, []string{"story_id"}),
		chunksFinalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chronolog",
			Name:      "chunks_finalized_total",
			Help:      "Chunks stashed during pipeline finalization.",
		}, []string{"story_id"}),
		invariantViolated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chronolog",
			Name:      "invariant_violations_total",
			Help:      "Fatal invariant violations that poisoned a story's pipeline.",
		}, []string{"story_id"}),
		directoryOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chronolog",
			Name:      "directory_operations_total",
			Help:      "MetaDirectory operations by name and result.",
		}, []string{"op", "result"}),
		persistedBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chronolog",
			Name:      "persisted_bytes_total",
			Help:      "Compressed bytes written by the persistence sink.",
		}, []string{"codec"}),
	}
	registry.MustRegister(
		c.eventsIngested,
		c.eventsDiscarded,
		c.chunksExtracted,
		c.chunksFinalized,
		c.invariantViolated,
		c.directoryOps,
		c.persistedBytes,
	)
	return c
}

// IncEventsIngested records one accepted event for storyID.
func (c *Collector) IncEventsIngested(storyID string) {
	if c == nil {
		return
	}
	c.eventsIngested.WithLabelValues(storyID).Inc()
}

// IncEventsDiscarded records one dropped event for storyID.
func (c *Collector) IncEventsDiscarded(storyID string) {
	if c == nil {
		return
	}
	c.eventsDiscarded.WithLabelValues(storyID).Inc()
}

// IncChunksExtracted records one chunk reaching the extraction queue
// through the normal decay path.
func (c *Collector) IncChunksExtracted(storyID string) {
	if c == nil {
		return
	}
	c.chunksExtracted.WithLabelValues(storyID).Inc()
}

// IncChunksFinalized records one chunk stashed during finalization.
func (c *Collector) IncChunksFinalized(storyID string) {
	if c == nil {
		return
	}
	c.chunksFinalized.WithLabelValues(storyID).Inc()
}

// IncInvariantViolation records a fatal invariant violation for storyID.
func (c *Collector) IncInvariantViolation(storyID string) {
	if c == nil {
		return
	}
	c.invariantViolated.WithLabelValues(storyID).Inc()
}

// ObserveDirectoryOp records one MetaDirectory call outcome.
func (c *Collector) ObserveDirectoryOp(op, result string) {
	if c == nil {
		return
	}
	c.directoryOps.WithLabelValues(op, result).Inc()
}

// AddPersistedBytes records bytes written by the persistence sink under codec.
func (c *Collector) AddPersistedBytes(codec string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.persistedBytes.WithLabelValues(codec).Add(float64(n))
}

// Handler returns an http.Handler that serves the collector's registry in
// the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
