// Package metrics defines the Prometheus collectors of the database and
// exposes an HTTP handler for scraping.
//
// Every method is safe on a nil *Metrics, so components can be built
// without metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	QueriesTotal         *prometheus.CounterVec
	QueryLatency         *prometheus.HistogramVec
	DocsExamined         *prometheus.HistogramVec
	KeysExamined         *prometheus.HistogramVec
	WritesTotal          *prometheus.CounterVec
	IndexBuildsTotal     *prometheus.CounterVec
	IndexBuildDuration   prometheus.Histogram
	ReaperCyclesTotal    prometheus.Counter
	ReaperDeletedTotal   *prometheus.CounterVec
	ReaperFailuresTotal  prometheus.Counter
	CollectionDocuments  *prometheus.GaugeVec

	gatherer prometheus.Gatherer
}

var examinedBuckets = []float64{0, 1, 10, 100, 1000, 10000, 100000}

// New creates the collectors and registers them with reg. A nil reg uses a
// fresh registry, which keeps tests independent of each other.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idxdb_http_requests_total",
				Help: "Total number of HTTP requests by method, route, and status.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "idxdb_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "route"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "idxdb_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idxdb_queries_total",
				Help: "Total queries by operation and winning plan stage.",
			},
			[]string{"operation", "stage"},
		),
		QueryLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "idxdb_query_latency_seconds",
				Help:    "Query latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"operation"},
		),
		DocsExamined: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "idxdb_query_docs_examined",
				Help:    "Documents examined per query.",
				Buckets: examinedBuckets,
			},
			[]string{"stage"},
		),
		KeysExamined: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "idxdb_query_keys_examined",
				Help:    "Index keys examined per query.",
				Buckets: examinedBuckets,
			},
			[]string{"stage"},
		),
		WritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idxdb_writes_total",
				Help: "Total committed writes by collection and operation.",
			},
			[]string{"collection", "operation"},
		),
		IndexBuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idxdb_index_builds_total",
				Help: "Total index builds by status.",
			},
			[]string{"status"},
		),
		IndexBuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "idxdb_index_build_duration_seconds",
				Help:    "Index build latency in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		),
		ReaperCyclesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "idxdb_reaper_cycles_total",
				Help: "Total TTL reaper cycles.",
			},
		),
		ReaperDeletedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idxdb_reaper_deleted_total",
				Help: "Documents removed by the TTL reaper.",
			},
			[]string{"collection"},
		),
		ReaperFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "idxdb_reaper_failures_total",
				Help: "Expired documents the TTL reaper failed to delete.",
			},
		),
		CollectionDocuments: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "idxdb_collection_documents",
				Help: "Number of documents per collection.",
			},
			[]string{"collection"},
		),
	}

	if reg == nil {
		registry := prometheus.NewRegistry()
		reg = registry
		m.gatherer = registry
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.QueriesTotal,
		m.QueryLatency,
		m.DocsExamined,
		m.KeysExamined,
		m.WritesTotal,
		m.IndexBuildsTotal,
		m.IndexBuildDuration,
		m.ReaperCyclesTotal,
		m.ReaperDeletedTotal,
		m.ReaperFailuresTotal,
		m.CollectionDocuments,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler for the registry the
// collectors were registered with.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveQuery records one planned query.
func (m *Metrics) ObserveQuery(operation, stage string, keys, docs int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(operation, stage).Inc()
	m.QueryLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
	m.DocsExamined.WithLabelValues(stage).Observe(float64(docs))
	m.KeysExamined.WithLabelValues(stage).Observe(float64(keys))
}

// ObserveWrite records one committed write.
func (m *Metrics) ObserveWrite(collection, operation string) {
	if m == nil {
		return
	}
	m.WritesTotal.WithLabelValues(collection, operation).Inc()
}

// ObserveIndexBuild records one index build.
func (m *Metrics) ObserveIndexBuild(_ string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.IndexBuildsTotal.WithLabelValues(status).Inc()
	m.IndexBuildDuration.Observe(elapsed.Seconds())
}

// ObserveReaperCycle records one reaper cycle.
func (m *Metrics) ObserveReaperCycle(deleted map[string]int, failures int) {
	if m == nil {
		return
	}
	m.ReaperCyclesTotal.Inc()
	for coll, n := range deleted {
		m.ReaperDeletedTotal.WithLabelValues(coll).Add(float64(n))
	}
	m.ReaperFailuresTotal.Add(float64(failures))
}

// SetDocuments records the size of a collection.
func (m *Metrics) SetDocuments(collection string, n int) {
	if m == nil {
		return
	}
	m.CollectionDocuments.WithLabelValues(collection).Set(float64(n))
}
