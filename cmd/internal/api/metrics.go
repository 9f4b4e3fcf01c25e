package api

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts accepted mutations. Nil-receiver safe.
type Metrics struct {
	stored  prometheus.Counter
	deleted prometheus.Counter
}

// NewMetrics registers the counters on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		stored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "translator_messages_stored_total",
			Help: "Message rows accepted by POST /v1/messages.",
		}),
		deleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "translator_messages_deleted_total",
			Help: "Message rows removed by DELETE endpoints.",
		}),
	}
	reg.MustRegister(m.stored, m.deleted)
	return m
}

func (m *Metrics) Stored() {
	if m != nil {
		m.stored.Inc()
	}
}

func (m *Metrics) Deleted(n int) {
	if m != nil {
		m.deleted.Add(float64(n))
	}
}
