// Package metrics exposes prometheus counters and gauges for the sync
// engines: ambient operational visibility that spec.md's Non-goals
// don't exclude (only a CLI/UI surface is out of scope, not metrics
// plumbing). client_golang is already an indirect dependency of the
// teacher (pulled in transitively via libp2p) promoted here to direct.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry groups every counter/gauge this module exports. Construct
// one per process and register it against a prometheus.Registerer of
// the caller's choosing.
type Registry struct {
	KnownChecked    *prometheus.CounterVec
	Uploaded        *prometheus.CounterVec
	Skipped         *prometheus.CounterVec
	InFlightUploads prometheus.Gauge
	SyncDuration    *prometheus.HistogramVec
}

// NewRegistry builds a Registry and registers its metrics against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		KnownChecked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brioche",
			Subsystem: "sync",
			Name:      "known_checked_total",
			Help:      "Items submitted to a known_* diff call, by phase.",
		}, []string{"phase"}),
		Uploaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brioche",
			Subsystem: "sync",
			Name:      "uploaded_total",
			Help:      "Items uploaded to the registry, by phase.",
		}, []string{"phase"}),
		Skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brioche",
			Subsystem: "sync",
			Name:      "skipped_total",
			Help:      "Items already known to the registry, by phase.",
		}, []string{"phase"}),
		InFlightUploads: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "brioche",
			Subsystem: "sync",
			Name:      "in_flight_uploads",
			Help:      "Number of blob uploads currently in flight across the on-disk and loaded-blob phases.",
		}),
		SyncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "brioche",
			Subsystem: "sync",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of a full sync engine run, by engine.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"engine"}),
	}

	reg.MustRegister(r.KnownChecked, r.Uploaded, r.Skipped, r.InFlightUploads, r.SyncDuration)
	return r
}
