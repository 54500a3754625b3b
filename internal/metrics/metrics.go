// Package metrics exposes dashboard client counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pkt.systems/teamwatch/schema"
)

const namespace = "teamwatch"

// Metrics holds the client collectors on a private registry. It satisfies both
// the controller and the stream session observer interfaces.
type Metrics struct {
	registry *prometheus.Registry

	// EventsReceived counts stream events by outcome (admitted, filtered, duplicate).
	EventsReceived *prometheus.CounterVec
	// FetchTotal counts pull requests by endpoint and status (ok, error).
	FetchTotal *prometheus.CounterVec
	// StaleResponses counts fetch responses discarded because a newer one was issued.
	StaleResponses *prometheus.CounterVec
	// StreamReconnects counts transitions to open after the first.
	StreamReconnects prometheus.Counter
	// MessagesDiscarded counts stream messages dropped by reason.
	MessagesDiscarded *prometheus.CounterVec
	// StreamState is 1 for the current connection state label and 0 for the others.
	StreamState *prometheus.GaugeVec
	// EventsPerMinute is the rate shown on the dashboard.
	EventsPerMinute prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	m := &Metrics{
		registry: reg,
		EventsReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_received_total",
				Help:      "Stream events received, by outcome",
			},
			[]string{"result"},
		),
		FetchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_total",
				Help:      "Pull requests against the backend, by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),
		StaleResponses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stale_responses_total",
				Help:      "Fetch responses discarded because a newer request superseded them",
			},
			[]string{"endpoint"},
		),
		StreamReconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_reconnects_total",
			Help:      "Stream connections opened after the first",
		}),
		MessagesDiscarded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stream_messages_discarded_total",
				Help:      "Stream messages dropped, by reason",
			},
			[]string{"reason"},
		),
		StreamState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stream_state",
				Help:      "Current stream connection state",
			},
			[]string{"state"},
		),
		EventsPerMinute: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "events_per_minute",
			Help:      "Displayed event rate over the trailing minute",
		}),
	}
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m.ConnState(schema.ConnConnecting)
	return m
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// EventReceived records a stream event outcome.
func (m *Metrics) EventReceived(result string) {
	m.EventsReceived.WithLabelValues(result).Inc()
}

// FetchCompleted records a pull request result.
func (m *Metrics) FetchCompleted(endpoint string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.FetchTotal.WithLabelValues(endpoint, status).Inc()
}

// StaleResponse records a discarded fetch response.
func (m *Metrics) StaleResponse(endpoint string) {
	m.StaleResponses.WithLabelValues(endpoint).Inc()
}

// ConnState marks state as the current connection state.
func (m *Metrics) ConnState(state schema.ConnState) {
	for _, candidate := range []schema.ConnState{schema.ConnConnecting, schema.ConnOpen, schema.ConnDisconnected} {
		value := 0.0
		if candidate == state {
			value = 1
		}
		m.StreamState.WithLabelValues(candidate.String()).Set(value)
	}
}

// Rate records the displayed events-per-minute figure.
func (m *Metrics) Rate(perMinute int64) {
	m.EventsPerMinute.Set(float64(perMinute))
}

// Reconnected records a reopened stream.
func (m *Metrics) Reconnected() {
	m.StreamReconnects.Inc()
}

// MessageDiscarded records a dropped stream message.
func (m *Metrics) MessageDiscarded(reason string) {
	m.MessagesDiscarded.WithLabelValues(reason).Inc()
}
