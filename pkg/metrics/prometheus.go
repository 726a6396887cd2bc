package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	resolverCalls      *prometheus.CounterVec
	marketsScored      *prometheus.CounterVec
	reportsDispatched  *prometheus.CounterVec
	errorsTotal        *prometheus.CounterVec
	latency            *prometheus.HistogramVec
	httpRequests       *prometheus.CounterVec
	httpRequestLatency *prometheus.HistogramVec
}

// New registers the recorder's collectors on reg. A nil reg means the
// default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Recorder{
		resolverCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vaultrisk_resolver_calls_total",
				Help: "Resolver invocations by outcome (ok, fallback, cache_hit)",
			},
			[]string{"resolver", "outcome"},
		),
		marketsScored: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vaultrisk_market_scores_total",
				Help: "Markets scored, by grade",
			},
			[]string{"grade"},
		),
		reportsDispatched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vaultrisk_reports_dispatched_total",
				Help: "Vault reports handed to a sink backend",
			},
			[]string{"backend"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vaultrisk_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vaultrisk_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vaultrisk_http_requests_total",
				Help: "HTTP requests by route and status",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vaultrisk_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// RecordResolverCall counts one resolver outcome.
func (r *Recorder) RecordResolverCall(resolver, outcome string) {
	r.resolverCalls.WithLabelValues(resolver, outcome).Inc()
}

// RecordMarketScored counts a scored market under its grade.
func (r *Recorder) RecordMarketScored(grade string) {
	r.marketsScored.WithLabelValues(grade).Inc()
}

func (r *Recorder) RecordReportDispatched(backend string) {
	r.reportsDispatched.WithLabelValues(backend).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordHTTPRequest is used by the echo metrics middleware.
func (r *Recorder) RecordHTTPRequest(method, route, status string, seconds float64) {
	r.httpRequests.WithLabelValues(method, route, status).Inc()
	r.httpRequestLatency.WithLabelValues(method, route).Observe(seconds)
}

// Handler serves g in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordResolverCall(string, string) {}
func (Nop) RecordMarketScored(string) {}
func (Nop) RecordReportDispatched(string) {}
func (Nop) RecordError(string) {}
func (Nop) RecordLatency(string, float64) {}
func (Nop) RecordHTTPRequest(string, string, string, float64) {}
