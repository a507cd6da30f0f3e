// Package metrics exposes relay counters in Prometheus format.
// All methods are safe to call on a nil *Metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "incommunicado"

// Relay outcomes.
const (
	OutcomeForwarded    = "forwarded"
	OutcomeDenied       = "denied"
	OutcomeOffline      = "offline"
	OutcomeUnregistered = "unregistered"
	OutcomeDropped      = "dropped"
)

type Metrics struct {
	registry *prometheus.Registry

	peersOnline   prometheus.Gauge
	trustEdges    prometheus.Gauge
	relayed       *prometheus.CounterVec
	broadcasts    prometheus.Counter
	droppedFrames prometheus.Counter
	rateLimited   prometheus.Counter
	kicked        prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		peersOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "peers_online",
			Help:      "Peers currently registered.",
		}),
		trustEdges: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "trust_edges",
			Help:      "Masters with at least one invitee.",
		}),
		relayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_events_total",
			Help:      "Point-to-point events by kind and outcome.",
		}, []string{"kind", "outcome"}),
		broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presence_broadcasts_total",
			Help:      "Presence rebroadcasts triggered by topology changes.",
		}),
		droppedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_frames_total",
			Help:      "Frames dropped because a connection buffer was full or closed.",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_frames_total",
			Help:      "Inbound frames rejected by the per-connection rate limiter.",
		}),
		kicked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kicked_peers_total",
			Help:      "Connections closed by the backpressure policy.",
		}),
	}
	m.registry.MustRegister(
		m.peersOnline,
		m.trustEdges,
		m.relayed,
		m.broadcasts,
		m.droppedFrames,
		m.rateLimited,
		m.kicked,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the text exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SetTopology(peers, edges int) {
	if m == nil {
		return
	}
	m.peersOnline.Set(float64(peers))
	m.trustEdges.Set(float64(edges))
}

func (m *Metrics) ObserveRelay(kind, outcome string) {
	if m == nil {
		return
	}
	m.relayed.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) IncBroadcast() {
	if m == nil {
		return
	}
	m.broadcasts.Inc()
}

func (m *Metrics) IncDroppedFrame() {
	if m == nil {
		return
	}
	m.droppedFrames.Inc()
}

func (m *Metrics) IncRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

func (m *Metrics) IncKicked() {
	if m == nil {
		return
	}
	m.kicked.Inc()
}
