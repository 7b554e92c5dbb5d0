package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "polygon_dashboard"

// Metrics holds the Prometheus counters, histograms, and gauges for the dashboard.
type Metrics struct {
	// Feed metrics.
	FeedFetches       *prometheus.CounterVec   // labels: source, outcome={success,error}
	FeedFetchDuration *prometheus.HistogramVec // labels: source
	FeedLoaded        prometheus.Gauge
	FeedPoints        prometheus.Gauge

	// Reconciliation metrics.
	ValueBroadcasts *prometheus.CounterVec // labels: result={applied,skipped}
	Polygons        prometheus.Gauge

	// Snapshot publishing metrics.
	SnapshotsPublished prometheus.Counter
	PublishErrors      prometheus.Counter

	// Live stream metrics.
	StreamClients prometheus.Gauge
	StreamDropped prometheus.Counter
}

// NewMetrics creates and registers all dashboard metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FeedFetches,
		m.FeedFetchDuration,
		m.FeedLoaded,
		m.FeedPoints,
		m.ValueBroadcasts,
		m.Polygons,
		m.SnapshotsPublished,
		m.PublishErrors,
		m.StreamClients,
		m.StreamDropped,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FeedFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_fetches_total",
			Help:      "Temperature feed fetches by data source and outcome.",
		}, []string{"source", "outcome"}),
		FeedFetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_fetch_duration_seconds",
			Help:      "Duration of a feed fetch in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"source"}),
		FeedLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_loaded",
			Help:      "1 once a feed has been loaded into the timeline, 0 before.",
		}),
		FeedPoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_points",
			Help:      "Number of hourly points in the active timeline.",
		}),
		ValueBroadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "value_broadcasts_total",
			Help:      "Timeline value broadcasts to the polygon store by result.",
		}, []string{"result"}),
		Polygons: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "polygons",
			Help:      "Number of polygons in the store.",
		}),
		SnapshotsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_published_total",
			Help:      "Polygon color snapshots delivered to a publisher.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed snapshot publish attempts.",
		}),
		StreamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_clients",
			Help:      "Connected live stream clients.",
		}),
		StreamDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_dropped_total",
			Help:      "Stream clients disconnected for falling behind.",
		}),
	}
}
