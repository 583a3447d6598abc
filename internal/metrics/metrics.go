// Package metrics exposes Prometheus instrumentation for the ingest and
// reconciliation pipeline. Register nothing yourself; promauto wires the
// collectors into the default registry at init.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EntriesParsed counts content records successfully parsed, by source
	// format ("m3u", "xtream", "xmltv").
	EntriesParsed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamhaven_entries_parsed_total",
		Help: "Content records successfully parsed, by format.",
	}, []string{"format"})

	// EntriesDropped counts per-entry failures that were isolated and
	// skipped (dangling M3U entries, unknown EPG channels, bad timestamps).
	EntriesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamhaven_entries_dropped_total",
		Help: "Malformed or unresolvable entries skipped during parse.",
	}, []string{"format"})

	// GroupsComputed records the group count of the most recent grouping
	// pass, by content kind.
	GroupsComputed = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "streamhaven_content_groups",
		Help: "Groups produced by the most recent grouping pass, by kind.",
	}, []string{"kind"})

	// RebuildDuration observes full denormalization rebuild wall time.
	RebuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "streamhaven_denorm_rebuild_seconds",
		Help:    "Duration of full denormalized-field rebuilds.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	// EPGPurged counts guide entries removed by retention purges.
	EPGPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamhaven_epg_purged_total",
		Help: "EPG entries removed because they aged past retention.",
	})
)
