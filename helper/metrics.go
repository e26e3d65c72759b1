package helper

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "wikigraph"

// Metrics holds the prometheus collectors of all components.
// All methods are safe to call on a nil receiver.
type Metrics struct {
	Registry *prometheus.Registry

	retrievalCalls  *prometheus.CounterVec
	hopsPerRequest  prometheus.Histogram
	verdicts        *prometheus.CounterVec
	requestDuration prometheus.Histogram
	planReprompts   prometheus.Counter
	passDuration    prometheus.Histogram
	metricsWrites   *prometheus.CounterVec
	integrityIssues *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	breakerState    *prometheus.GaugeVec
	feedback        *prometheus.CounterVec
}

// NewMetrics registers all collectors on a new registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		Registry: registry,
		retrievalCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "retrieval_calls_total",
			Help:      "Document index calls per hop by outcome.",
		}, []string{"outcome"}),
		hopsPerRequest: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "hops_per_request",
			Help:      "Number of retrieval hops issued per request.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5},
		}),
		verdicts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "verdicts_total",
			Help:      "Confidence decisions by kind.",
		}, []string{"kind"}),
		requestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "request_duration_seconds",
			Help:      "End-to-end orchestration latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		planReprompts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "planner_reprompts_total",
			Help:      "Classifier reprompts caused by malformed output.",
		}),
		passDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "graph_metrics_pass_duration_seconds",
			Help:      "Duration of a graph metrics recomputation pass.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		metricsWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "graph_metrics_writes_total",
			Help:      "Node metrics writes by result.",
		}, []string{"result"}),
		integrityIssues: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "graph_integrity_issues_total",
			Help:      "Hierarchy integrity issues found during metrics passes.",
		}, []string{"kind"}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by cache and result.",
		}, []string{"cache", "result"}),
		breakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "circuit_breaker_open",
			Help:      "1 if the named circuit breaker is open.",
		}, []string{"name"}),
		feedback: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "answer_feedback_total",
			Help:      "User feedback on answers by helpfulness.",
		}, []string{"helpful"}),
	}
}

// RetrievalCall counts one document index call by outcome (ok, empty, failed)
func (m *Metrics) RetrievalCall(outcome string) {
	if m == nil {
		return
	}
	m.retrievalCalls.WithLabelValues(outcome).Inc()
}

// Request records one finished orchestration
func (m *Metrics) Request(hops int, verdict string, duration time.Duration) {
	if m == nil {
		return
	}
	m.hopsPerRequest.Observe(float64(hops))
	if verdict != "" {
		m.verdicts.WithLabelValues(verdict).Inc()
	}
	m.requestDuration.Observe(duration.Seconds())
}

// Reprompt counts one classifier reprompt
func (m *Metrics) Reprompt() {
	if m == nil {
		return
	}
	m.planReprompts.Inc()
}

// MetricsPass records one graph metrics pass
func (m *Metrics) MetricsPass(duration time.Duration) {
	if m == nil {
		return
	}
	m.passDuration.Observe(duration.Seconds())
}

// MetricsWrite counts node metric writes by result (written, conflict, failed)
func (m *Metrics) MetricsWrite(result string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.metricsWrites.WithLabelValues(result).Add(float64(n))
}

// IntegrityIssue counts one hierarchy integrity issue
func (m *Metrics) IntegrityIssue(kind string) {
	if m == nil {
		return
	}
	m.integrityIssues.WithLabelValues(kind).Inc()
}

// CacheLookup counts one cache lookup
func (m *Metrics) CacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(cache, result).Inc()
}

// BreakerOpen sets the state gauge of a circuit breaker
func (m *Metrics) BreakerOpen(name string, open bool) {
	if m == nil {
		return
	}
	value := 0.0
	if open {
		value = 1
	}
	m.breakerState.WithLabelValues(name).Set(value)
}

// Feedback counts one user rating of an answer
func (m *Metrics) Feedback(helpful bool) {
	if m == nil {
		return
	}
	m.feedback.WithLabelValues(strconv.FormatBool(helpful)).Inc()
}
