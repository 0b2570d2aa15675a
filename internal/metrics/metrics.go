// Package metrics exposes the Prometheus collectors of the collaboration server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "collab"

type Metrics struct {
	ActiveRooms      prometheus.Gauge
	ActiveSessions   prometheus.Gauge
	RoomsCreated     prometheus.Counter
	RoomsEvicted     prometheus.Counter
	JoinsRejected    *prometheus.CounterVec
	MessagesTotal    *prometheus.CounterVec
	Violations       *prometheus.CounterVec
	DeliveriesFailed *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on registry. Each server instance should use
// its own registry so tests can build several.
func New(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		ActiveRooms: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Number of rooms held in the registry",
		}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of sessions joined to a room",
		}),
		RoomsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_created_total",
			Help:      "Total number of rooms created by a first join",
		}),
		RoomsEvicted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_evicted_total",
			Help:      "Total number of idle rooms removed from the registry",
		}),
		JoinsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "joins_rejected_total",
			Help:      "Total number of rejected join attempts by code",
		}, []string{"code"}),
		MessagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Total number of inbound messages by type",
		}, []string{"type"}),
		Violations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "abuse_violations_total",
			Help:      "Total number of abuse limit violations by code",
		}, []string{"code"}),
		DeliveriesFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_failed_total",
			Help:      "Total number of outbound events not queued for a recipient",
		}, []string{"result"}),
		gatherer: registry,
	}
}

// NewNop returns collectors registered on a private registry.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
