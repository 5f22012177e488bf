package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "counsel"

// CounselMetrics exposes counters/histograms for counseling turns and the
// model calls behind them. A nil *CounselMetrics is valid and records nothing.
type CounselMetrics struct {
	turnsTotal         *prometheus.CounterVec
	needTotal          *prometheus.CounterVec
	generationFailures *prometheus.CounterVec
	resourcesShown     prometheus.Counter
	llmLatency         *prometheus.HistogramVec
	llmTokens          *prometheus.CounterVec
	activeSessions     prometheus.Gauge
}

func NewCounselMetrics(reg prometheus.Registerer) *CounselMetrics {
	m := &CounselMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Total counseling turns by risk tier",
		}, []string{"tier"}),
		needTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "need_total",
			Help:      "Need classifications by outcome",
		}, []string{"need", "source"}),
		generationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "generation_failures_total",
			Help:      "Reply generation failures by kind",
		}, []string{"kind"}),
		resourcesShown: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "resources_shown_total",
			Help:      "Turns where crisis resources were disclosed",
		}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "latency_seconds",
			Help:      "Latency of LLM completions",
			Buckets:   []float64{0.25, 0.5, 1, 2, 3, 4, 5, 6, 8, 10, 15, 20, 30, 60},
		}, []string{"model", "purpose", "status"}),
		llmTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Tokens used by the LLM",
		}, []string{"model", "type"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "active_sessions",
			Help:      "Sessions currently held by this process",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.turnsTotal,
		m.needTotal,
		m.generationFailures,
		m.resourcesShown,
		m.llmLatency,
		m.llmTokens,
		m.activeSessions,
	)
	return m
}

func (m *CounselMetrics) ObserveTurn(tier string, resourcesShown bool) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(tier).Inc()
	if resourcesShown {
		m.resourcesShown.Inc()
	}
}

// ObserveNeed counts a need classification. source is "model" when the
// classifier answered and "default" when it degraded.
func (m *CounselMetrics) ObserveNeed(need, source string) {
	if m == nil {
		return
	}
	m.needTotal.WithLabelValues(need, source).Inc()
}

func (m *CounselMetrics) ObserveGenerationFailure(kind string) {
	if m == nil {
		return
	}
	m.generationFailures.WithLabelValues(kind).Inc()
}

func (m *CounselMetrics) ObserveLLMCall(model, purpose, status string, seconds float64) {
	if m == nil {
		return
	}
	m.llmLatency.WithLabelValues(model, purpose, status).Observe(seconds)
}

func (m *CounselMetrics) ObserveTokens(model string, input, output, total int32) {
	if m == nil {
		return
	}
	if input > 0 {
		m.llmTokens.WithLabelValues(model, "input").Add(float64(input))
	}
	if output > 0 {
		m.llmTokens.WithLabelValues(model, "output").Add(float64(output))
	}
	if total > 0 {
		m.llmTokens.WithLabelValues(model, "total").Add(float64(total))
	}
}

func (m *CounselMetrics) SessionOpened() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

func (m *CounselMetrics) SessionClosed() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}
