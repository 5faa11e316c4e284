package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors on a private registry, so
// several instances can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
	scoresTotal         *prometheus.CounterVec
	scoreValue          prometheus.Histogram
	scoringDuration     prometheus.Histogram
	scoringFailures     *prometheus.CounterVec
	storageRetries      *prometheus.CounterVec
	storageErrors       *prometheus.CounterVec
	biasRuns            prometheus.Counter
	biasDisparityRatio  *prometheus.GaugeVec
	biasDetected        *prometheus.GaugeVec
	rateLimitedRequests *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "yecs_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "yecs_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		scoresTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "yecs_scores_total",
			Help: "Scores computed and stored, by risk level",
		}, []string{"risk_level"}),
		scoreValue: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "yecs_score_value",
			Help:    "Distribution of YECS scores",
			Buckets: prometheus.LinearBuckets(300, 50, 12),
		}),
		scoringDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "yecs_scoring_duration_seconds",
			Help:    "End-to-end scoring latency including the history append",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		scoringFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "yecs_scoring_failures_total",
			Help: "Scoring requests that did not produce a stored record",
		}, []string{"reason"}),
		storageRetries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "yecs_storage_retries_total",
			Help: "Retried score history operations",
		}, []string{"operation"}),
		storageErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "yecs_storage_errors_total",
			Help: "Score history operations that failed after all retries",
		}, []string{"operation"}),
		biasRuns: f.NewCounter(prometheus.CounterOpts{
			Name: "yecs_bias_analysis_runs_total",
			Help: "Completed bias analyses",
		}),
		biasDisparityRatio: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "yecs_bias_disparity_ratio",
			Help: "Latest disparate-impact ratio per audited attribute",
		}, []string{"attribute"}),
		biasDetected: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "yecs_bias_detected",
			Help: "1 when the latest analysis flagged the attribute",
		}, []string{"attribute"}),
		rateLimitedRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "yecs_rate_limited_requests_total",
			Help: "Requests rejected by the rate limiter",
		}, []string{"backend"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) RecordRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (m *Metrics) RecordScore(riskLevel string, score int, duration time.Duration) {
	if m == nil {
		return
	}
	m.scoresTotal.WithLabelValues(riskLevel).Inc()
	m.scoreValue.Observe(float64(score))
	m.scoringDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordScoringFailure(reason string) {
	if m == nil {
		return
	}
	m.scoringFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordStorageRetry(operation string) {
	if m == nil {
		return
	}
	m.storageRetries.WithLabelValues(operation).Inc()
}

func (m *Metrics) RecordStorageError(operation string) {
	if m == nil {
		return
	}
	m.storageErrors.WithLabelValues(operation).Inc()
}

func (m *Metrics) RecordBiasRun() {
	if m == nil {
		return
	}
	m.biasRuns.Inc()
}

// RecordBiasAttribute publishes one attribute's verdict. A nil ratio clears the gauge.
func (m *Metrics) RecordBiasAttribute(attribute string, ratio *float64, detected bool) {
	if m == nil {
		return
	}
	if ratio != nil {
		m.biasDisparityRatio.WithLabelValues(attribute).Set(*ratio)
	} else {
		m.biasDisparityRatio.DeleteLabelValues(attribute)
	}
	v := 0.0
	if detected {
		v = 1
	}
	m.biasDetected.WithLabelValues(attribute).Set(v)
}

func (m *Metrics) RecordRateLimited(backend string) {
	if m == nil {
		return
	}
	m.rateLimitedRequests.WithLabelValues(backend).Inc()
}
