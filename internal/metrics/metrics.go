// Package metrics exposes prometheus counters for the degrade paths of the
// service. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "agriassist"

// Metrics holds the application instruments
type Metrics struct {
	registry *prometheus.Registry

	chatResponses           *prometheus.CounterVec
	tierFailures            *prometheus.CounterVec
	riskFallbacks           *prometheus.CounterVec
	recommendationFallbacks prometheus.Counter
	persistenceFailures     *prometheus.CounterVec
}

// New registers the instruments on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		chatResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_responses_total",
			Help:      "Chat responses by the tier that served them.",
		}, []string{"source"}),
		tierFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_tier_failures_total",
			Help:      "Resolver tier attempts that failed and escalated.",
		}, []string{"tier"}),
		riskFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_signal_fallbacks_total",
			Help:      "Risk signal fetches that degraded to fallback values.",
		}, []string{"signal"}),
		recommendationFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendation_fallbacks_total",
			Help:      "Recommendation requests answered with the generic fallback plan.",
		}),
		persistenceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_failures_total",
			Help:      "Failed writes of chat sessions or usage statistics.",
		}, []string{"store"}),
	}

	reg.MustRegister(
		m.chatResponses,
		m.tierFailures,
		m.riskFallbacks,
		m.recommendationFallbacks,
		m.persistenceFailures,
	)
	return m
}

// Handler serves the registry in the prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ChatResponse(source string) {
	if m == nil {
		return
	}
	m.chatResponses.WithLabelValues(source).Inc()
}

func (m *Metrics) TierFailure(tier string) {
	if m == nil {
		return
	}
	m.tierFailures.WithLabelValues(tier).Inc()
}

func (m *Metrics) RiskFallback(signal string) {
	if m == nil {
		return
	}
	m.riskFallbacks.WithLabelValues(signal).Inc()
}

func (m *Metrics) RecommendationFallback() {
	if m == nil {
		return
	}
	m.recommendationFallbacks.Inc()
}

func (m *Metrics) PersistenceFailure(store string) {
	if m == nil {
		return
	}
	m.persistenceFailures.WithLabelValues(store).Inc()
}
