// Package metrics holds the Prometheus collectors exported by the chat server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "roomcast"

type Metrics struct {
	Events         *prometheus.CounterVec
	Ignored        *prometheus.CounterVec
	HandleDuration prometheus.Histogram
	Deliveries     prometheus.Counter
	Dropped        prometheus.Counter
	Stored         prometheus.Counter
	Connections    prometheus.Gauge
	Sessions       prometheus.Gauge
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "events_total",
			Help:      "Inbound client events handled, by event name.",
		}, []string{"event"}),
		Ignored: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "ignored_events_total",
			Help:      "Inbound events absorbed without effect, by reason.",
		}, []string{"reason"}),
		HandleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "handle_duration_seconds",
			Help:      "Time to handle one event including fan-out.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}),
		Deliveries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "deliveries_total",
			Help:      "Outbound events queued to connections.",
		}),
		Dropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "dropped_total",
			Help:      "Outbound events dropped because a connection's buffer was full.",
		}),
		Stored: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "messages_appended_total",
			Help:      "Messages appended to the message store.",
		}),
		Connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Live connections, joined or not.",
		}),
		Sessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Connections that have joined a room.",
		}),
	}
}
