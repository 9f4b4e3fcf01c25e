package ai

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts upstream requests by kind and outcome. All methods are
// nil-receiver safe so the client works unmetered.
type Metrics struct {
	requests *prometheus.CounterVec
}

// NewMetrics registers the counters on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "translator_ai_requests_total",
			Help: "Upstream AI requests by kind (translate, transcribe, summary) and outcome.",
		}, []string{"kind", "outcome"}),
	}
	reg.MustRegister(m.requests)
	return m
}

// Request records one upstream call.
func (m *Metrics) Request(kind, outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(kind, outcome).Inc()
}
