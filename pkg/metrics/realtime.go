package metrics

import "github.com/prometheus/client_golang/prometheus"

// RealtimeMetrics tracks live channel connections and event fan-out.
type RealtimeMetrics struct {
	connections prometheus.Gauge
	delivered   *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	joins       *prometheus.CounterVec
}

// NewRealtimeMetrics registers the live channel metrics on the provided registerer.
func NewRealtimeMetrics(reg prometheus.Registerer) *RealtimeMetrics {
	if reg == nil {
		return &RealtimeMetrics{}
	}
	connections := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_connections",
		Help: "Live channel connections currently open.",
	})
	delivered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_events_delivered_total",
		Help: "Event frames accepted by a connection send queue.",
	}, []string{"event"})
	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_events_dropped_total",
		Help: "Event frames dropped because a connection queue was full or closed.",
	}, []string{"event"})
	joins := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_scope_joins_total",
		Help: "Client initiated list scope joins by result.",
	}, []string{"result"})
	reg.MustRegister(connections, delivered, dropped, joins)
	return &RealtimeMetrics{
		connections: connections,
		delivered:   delivered,
		dropped:     dropped,
		joins:       joins,
	}
}

func (m *RealtimeMetrics) ConnectionOpened() {
	if m == nil || m.connections == nil {
		return
	}
	m.connections.Inc()
}

func (m *RealtimeMetrics) ConnectionClosed() {
	if m == nil || m.connections == nil {
		return
	}
	m.connections.Dec()
}

// AddDelivered counts n successful enqueues of the named event.
func (m *RealtimeMetrics) AddDelivered(event string, n int) {
	if m == nil || m.delivered == nil || n <= 0 {
		return
	}
	m.delivered.WithLabelValues(normalizeLabel(event)).Add(float64(n))
}

// IncDropped counts one frame lost to a full or closed queue.
func (m *RealtimeMetrics) IncDropped(event string) {
	if m == nil || m.dropped == nil {
		return
	}
	m.dropped.WithLabelValues(normalizeLabel(event)).Inc()
}

// IncJoin records a scope join attempt; result is "ok" or the rejecting error code.
func (m *RealtimeMetrics) IncJoin(result string) {
	if m == nil || m.joins == nil {
		return
	}
	m.joins.WithLabelValues(normalizeLabel(result)).Inc()
}
