// Package metrics exposes Prometheus metrics of the cluster routing core. All
// recording methods are safe to call on a nil *Registry, which discards them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds the metrics of one client instance.
type Registry struct {
	registry *prometheus.Registry

	DiscoveryAttemptsTotal *prometheus.CounterVec
	DiscoveryDuration      prometheus.Histogram
	GossipCallsTotal       *prometheus.CounterVec
	GenerationsTotal       *prometheus.CounterVec
	ConnectionsOpen        prometheus.Gauge
	DialsTotal             *prometheus.CounterVec
	RequestsTotal          *prometheus.CounterVec
}

// NewRegistry creates the metrics and registers them in the given registry.
func NewRegistry(registry *prometheus.Registry) *Registry {
	r := &Registry{registry: registry}

	r.DiscoveryAttemptsTotal = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "esclient_discovery_attempts_total",
			Help: "Total number of discovery attempts",
		},
		[]string{"result"}, // success, failure
	)

	r.DiscoveryDuration = promauto.With(registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "esclient_discovery_duration_seconds",
			Help:    "Duration of endpoint discovery including retries",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0},
		},
	)

	r.GossipCallsTotal = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "esclient_gossip_calls_total",
			Help: "Total number of gossip calls to cluster members",
		},
		[]string{"result"}, // success, error, no_member
	)

	r.GenerationsTotal = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "esclient_endpoint_generations_total",
			Help: "Total number of shared endpoint generations started",
		},
		[]string{"reason"}, // initial, broken, failed, reset
	)

	r.ConnectionsOpen = promauto.With(registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "esclient_connections_open",
			Help: "Number of cached connections to cluster members",
		},
	)

	r.DialsTotal = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "esclient_dials_total",
			Help: "Total number of connection attempts",
		},
		[]string{"result"}, // success, failure
	)

	r.RequestsTotal = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "esclient_requests_total",
			Help: "Total number of routed requests by outcome",
		},
		[]string{"outcome"}, // ok, error, transport_failure, not_leader
	)

	return r
}

// Gatherer returns the underlying registry, e.g. to serve it over HTTP.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

func result(ok bool) string {
	if ok {
		return "success"
	}

	return "failure"
}

// RecordDiscovery records one finished discovery run.
func (r *Registry) RecordDiscovery(attempts int, ok bool, duration time.Duration) {
	if r == nil {
		return
	}

	r.DiscoveryAttemptsTotal.WithLabelValues(result(ok)).Add(float64(attempts))
	r.DiscoveryDuration.Observe(duration.Seconds())
}

// RecordGossip records the outcome of a single gossip call.
func (r *Registry) RecordGossip(outcome string) {
	if r == nil {
		return
	}

	r.GossipCallsTotal.WithLabelValues(outcome).Inc()
}

// RecordGeneration records a new generation of a shared value.
func (r *Registry) RecordGeneration(reason string) {
	if r == nil {
		return
	}

	r.GenerationsTotal.WithLabelValues(reason).Inc()
}

// RecordDial records a connection attempt and the number of open connections.
func (r *Registry) RecordDial(ok bool, open int) {
	if r == nil {
		return
	}

	r.DialsTotal.WithLabelValues(result(ok)).Inc()
	r.ConnectionsOpen.Set(float64(open))
}

// SetConnectionsOpen updates the number of cached connections.
func (r *Registry) SetConnectionsOpen(open int) {
	if r == nil {
		return
	}

	r.ConnectionsOpen.Set(float64(open))
}

// RecordRequest records the outcome of a routed request.
func (r *Registry) RecordRequest(outcome string) {
	if r == nil {
		return
	}

	r.RequestsTotal.WithLabelValues(outcome).Inc()
}
