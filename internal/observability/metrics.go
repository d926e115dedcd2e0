package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "member_locator"

// Metrics holds the Prometheus counters, histograms, and gauges for a locator run.
type Metrics struct {
	MembersLoaded    prometheus.Counter
	MembersProcessed prometheus.Counter
	MembersResolved  prometheus.Counter
	MembersDropped   *prometheus.CounterVec // labels: reason={no_location,unusable,unresolved}
	PipelineRunning  prometheus.Gauge
	RunDuration      prometheus.Histogram

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,empty,error,rejected}
	GeocodeCache       *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram

	// Cache store and collaborators.
	CacheThinned  *prometheus.CounterVec // labels: namespace
	ForumRequests *prometheus.CounterVec // labels: page={login,directory,profile}, outcome={success,error,cached}
	SinkWrites    *prometheus.CounterVec // labels: sink, outcome={success,error}
}

func newMetrics() *Metrics {
	return &Metrics{
		MembersLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "members_loaded_total",
			Help:      "Total member records read from the member source.",
		}),
		MembersProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "members_processed_total",
			Help:      "Total member records run through enrichment.",
		}),
		MembersResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "members_resolved_total",
			Help:      "Total member records whose location resolved to a coordinate.",
		}),
		MembersDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "members_dropped_total",
			Help:      "Member records left out of the output, by reason.",
		}, []string{"reason"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete locator run.",
			Buckets:   []float64{1, 10, 60, 300, 900, 1800, 3600, 7200},
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Nominatim search requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocode cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Nominatim request duration in seconds, cooldown excluded.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		CacheThinned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_thinned_total",
			Help:      "Cache entries deleted by thinning, by namespace.",
		}, []string{"namespace"}),
		ForumRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forum_requests_total",
			Help:      "Forum page fetches by page kind and outcome.",
		}, []string{"page", "outcome"}),
		SinkWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_writes_total",
			Help:      "Writes of the enriched member list by sink and outcome.",
		}, []string{"sink", "outcome"}),
	}
}

// NewMetrics creates and registers all locator metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.MembersLoaded,
		m.MembersProcessed,
		m.MembersResolved,
		m.MembersDropped,
		m.PipelineRunning,
		m.RunDuration,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.CacheThinned,
		m.ForumRequests,
		m.SinkWrites,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
