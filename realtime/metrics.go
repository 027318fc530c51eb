package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes gateway and broadcaster counters. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	connections prometheus.Gauge
	handshakes  *prometheus.CounterVec
	published   *prometheus.CounterVec
	delivered   prometheus.Counter
	dropped     prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg when it is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "accounts",
			Subsystem: "realtime",
			Name:      "connections",
			Help:      "Live realtime connections.",
		}),
		handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "accounts",
			Subsystem: "realtime",
			Name:      "handshakes_total",
			Help:      "Realtime handshakes by result.",
		}, []string{"result"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "accounts",
			Subsystem: "realtime",
			Name:      "events_published_total",
			Help:      "Events published by kind.",
		}, []string{"kind"}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "accounts",
			Subsystem: "realtime",
			Name:      "frames_delivered_total",
			Help:      "Frames queued to connections.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "accounts",
			Subsystem: "realtime",
			Name:      "frames_dropped_total",
			Help:      "Frames dropped because the connection queue was full or closed.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.connections, m.handshakes, m.published, m.delivered, m.dropped)
	}

	return m
}

func (m *Metrics) connected() {
	if m != nil {
		m.connections.Inc()
	}
}

func (m *Metrics) disconnected() {
	if m != nil {
		m.connections.Dec()
	}
}

func (m *Metrics) handshake(result string) {
	if m != nil {
		m.handshakes.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) publish(kind Kind, delivered, dropped int) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(string(kind)).Inc()
	m.delivered.Add(float64(delivered))
	m.dropped.Add(float64(dropped))
}
