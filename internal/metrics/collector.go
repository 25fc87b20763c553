// Package metrics exposes Prometheus metrics for the screening pipeline.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const namespace = "call_screener"

// Collector records pipeline metrics on its own registry
type Collector struct {
	registry *prometheus.Registry

	adapterCallsTotal   *prometheus.CounterVec
	adapterCallDuration *prometheus.HistogramVec
	adapterRetriesTotal *prometheus.CounterVec

	stateTransitions *prometheus.CounterVec
	activeSessions   prometheus.Gauge
	decisionsTotal   *prometheus.CounterVec
	manualDecisions  *prometheus.CounterVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector creates a collector backed by a fresh registry
func NewCollector(logger *zap.Logger) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collector{
		registry: reg,
		logger:   logger.With(zap.String("component", "metrics")),

		adapterCallsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adapter_calls_total",
			Help:      "Total number of provider adapter calls",
		}, []string{"kind", "provider", "status"}),

		adapterCallDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "adapter_call_duration_seconds",
			Help:      "Provider adapter call duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"kind", "provider"}),

		adapterRetriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adapter_retries_total",
			Help:      "Total number of retried provider adapter calls",
		}, []string{"kind", "provider"}),

		stateTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Total number of call session state transitions",
		}, []string{"from", "to"}),

		activeSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of calls currently being screened",
		}),

		decisionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Total number of resolved calls by decision",
		}, []string{"decision", "likely_spam"}),

		manualDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "manual_decisions_total",
			Help:      "Total number of calls handed to the user without a verdict",
		}, []string{"reason"}),

		httpRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),

		httpRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Registry returns the registry for exposition
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordAdapterCall records one adapter attempt
func (c *Collector) RecordAdapterCall(kind, provider string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.adapterCallsTotal.WithLabelValues(kind, provider, status).Inc()
	c.adapterCallDuration.WithLabelValues(kind, provider).Observe(duration.Seconds())
}

// RecordRetry counts a retried adapter attempt
func (c *Collector) RecordRetry(kind, provider string) {
	c.adapterRetriesTotal.WithLabelValues(kind, provider).Inc()
}

// RecordTransition counts a session state change
func (c *Collector) RecordTransition(from, to string) {
	c.stateTransitions.WithLabelValues(from, to).Inc()
}

// SessionStarted increments the active session gauge
func (c *Collector) SessionStarted() {
	c.activeSessions.Inc()
}

// SessionEnded decrements the active session gauge
func (c *Collector) SessionEnded() {
	c.activeSessions.Dec()
}

// RecordDecision counts a resolved call
func (c *Collector) RecordDecision(decision string, likelySpam bool) {
	c.decisionsTotal.WithLabelValues(decision, strconv.FormatBool(likelySpam)).Inc()
}

// RecordManualDecision counts a call that fell back to a manual decision
func (c *Collector) RecordManualDecision(reason string) {
	c.manualDecisions.WithLabelValues(reason).Inc()
}

// RecordHTTPRequest records one API request
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
