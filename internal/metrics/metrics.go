// Package metrics exposes Prometheus collectors for the order service.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tango"

type Metrics struct {
	commits       *prometheus.CounterVec
	commitSeconds *prometheus.HistogramVec
	attempts      prometheus.Histogram
	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	published     *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "commits_total",
			Help:      "Order commits by outcome (confirmed or error kind).",
		}, []string{"outcome"}),
		commitSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "commit_duration_seconds",
			Help:      "Order commit latency.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"outcome"}),
		attempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "commit_attempts",
			Help:      "Units of work opened per commit.",
			Buckets:   []float64{1, 2, 3, 5, 8},
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"handler", "code", "method"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"handler", "method"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "publish_total",
			Help:      "Outbox publish attempts by topic and result.",
		}, []string{"topic", "ok"}),
	}
	reg.MustRegister(m.commits, m.commitSeconds, m.attempts, m.requests, m.latency, m.published)
	return m
}

func (m *Metrics) ObserveCommit(outcome string, attempts int, seconds float64) {
	m.commits.WithLabelValues(outcome).Inc()
	m.commitSeconds.WithLabelValues(outcome).Observe(seconds)
	if attempts > 0 {
		m.attempts.Observe(float64(attempts))
	}
}

func (m *Metrics) ObservePublish(topic string, err error) {
	m.published.WithLabelValues(topic, strconv.FormatBool(err == nil)).Inc()
}

// InstrumentHandler counts and times requests served by h under name.
func (m *Metrics) InstrumentHandler(name string, h http.Handler) http.Handler {
	labels := prometheus.Labels{"handler": name}
	return promhttp.InstrumentHandlerDuration(m.latency.MustCurryWith(labels),
		promhttp.InstrumentHandlerCounter(m.requests.MustCurryWith(labels), h))
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
