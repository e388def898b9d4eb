package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector implements ports.Recorder over promauto metrics.
type PrometheusCollector struct {
	roomsActive           prometheus.Gauge
	participantsConnected prometheus.Gauge
	connectionsTotal      prometheus.Counter
	messagesRelayedTotal  *prometheus.CounterVec
	messagesDroppedTotal  *prometheus.CounterVec
	roomOccupancy         prometheus.Histogram
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		roomsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "signal_rooms_active",
			Help: "Number of rooms with at least one participant",
		}),

		participantsConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "signal_participants_connected",
			Help: "Number of registered participants",
		}),

		connectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "signal_connections_total",
			Help: "Total number of websocket connections accepted",
		}),

		messagesRelayedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "signal_messages_relayed_total",
			Help: "Total number of signaling messages delivered",
		}, []string{"type"}),

		messagesDroppedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "signal_messages_dropped_total",
			Help: "Total number of signaling messages dropped because the recipient had no live connection",
		}, []string{"type"}),

		roomOccupancy: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "signal_room_occupancy",
			Help:    "Room size observed at each join, joiner included",
			Buckets: prometheus.LinearBuckets(1, 1, 12),
		}),
	}
}

func (p *PrometheusCollector) ConnectionOpened() {
	p.connectionsTotal.Inc()
}

func (p *PrometheusCollector) ConnectionClosed() {}

func (p *PrometheusCollector) MessageRelayed(eventType string) {
	p.messagesRelayedTotal.WithLabelValues(eventType).Inc()
}

func (p *PrometheusCollector) MessageDropped(eventType string) {
	p.messagesDroppedTotal.WithLabelValues(eventType).Inc()
}

func (p *PrometheusCollector) RoomJoined(size int) {
	p.roomOccupancy.Observe(float64(size))
}

func (p *PrometheusCollector) RoomStats(rooms, participants int) {
	p.roomsActive.Set(float64(rooms))
	p.participantsConnected.Set(float64(participants))
}
