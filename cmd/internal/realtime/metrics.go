package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks change-feed health. All methods are nil-safe so wiring
// stays optional in tests.
type Metrics struct {
	connections   prometheus.Gauge
	eventsSent    prometheus.Counter
	eventsDropped prometheus.Counter
}

// NewMetrics registers feed collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "translator_feed_connections",
			Help: "Currently connected change-feed subscribers.",
		}),
		eventsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "translator_feed_events_sent_total",
			Help: "Change events enqueued to subscriber send queues.",
		}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "translator_feed_events_dropped_total",
			Help: "Change events dropped because a subscriber queue was full.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.connections, m.eventsSent, m.eventsDropped)
	}
	return m
}

// ConnOpened increments the subscriber gauge.
func (m *Metrics) ConnOpened() {
	if m != nil {
		m.connections.Inc()
	}
}

// ConnClosed decrements the subscriber gauge.
func (m *Metrics) ConnClosed() {
	if m != nil {
		m.connections.Dec()
	}
}

// EventSent counts a successfully enqueued event.
func (m *Metrics) EventSent() {
	if m != nil {
		m.eventsSent.Inc()
	}
}

// EventDropped counts an event dropped under backpressure.
func (m *Metrics) EventDropped() {
	if m != nil {
		m.eventsDropped.Inc()
	}
}
