// Package metrics exposes conversation and transport counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m3rciful/mailbot/core/logger"
	"github.com/m3rciful/mailbot/internal/conversation"
)

const namespace = "mailbot"

// Metrics holds the application's collectors in a private registry.
type Metrics struct {
	registry *prometheus.Registry

	SessionsStarted prometheus.Counter
	SessionsEnded   *prometheus.CounterVec
	SessionsActive  prometheus.Gauge
	Deliveries      *prometheus.CounterVec
	Events          *prometheus.CounterVec
	ValidationFails *prometheus.CounterVec

	Updates        *prometheus.CounterVec
	UpdateDuration *prometheus.HistogramVec
}

// New creates and registers all collectors, including the Go runtime and
// process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Conversations started.",
		}),
		SessionsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_ended_total",
			Help:      "Conversations ended, by reason.",
		}, []string{"reason"}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Conversations in progress.",
		}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Email delivery attempts, by status.",
		}, []string{"status"}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Conversation events handled, by kind.",
		}, []string{"kind"}),
		ValidationFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reprompts_total",
			Help:      "Inputs rejected at a stage, by stage.",
		}, []string{"stage"}),

		Updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telegram_updates_total",
			Help:      "Telegram updates handled, by kind and status.",
		}, []string{"kind", "status"}),
		UpdateDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "telegram_update_duration_seconds",
			Help:      "Time spent in Telegram update handlers.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
	}

	registry.MustRegister(
		m.SessionsStarted,
		m.SessionsEnded,
		m.SessionsActive,
		m.Deliveries,
		m.Events,
		m.ValidationFails,
		m.Updates,
		m.UpdateDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Register adds extra collectors, e.g. counters backed by other components.
func (m *Metrics) Register(cs ...prometheus.Collector) error {
	for _, c := range cs {
		if err := m.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// CounterFunc builds a counter read from fn at scrape time.
func CounterFunc(name, help string, fn func() float64) prometheus.Collector {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn)
}

// SessionStarted implements conversation.Observer.
func (m *Metrics) SessionStarted(conversation.Session) {
	m.SessionsStarted.Inc()
	m.SessionsActive.Inc()
}

// SessionEnded implements conversation.Observer.
func (m *Metrics) SessionEnded(_ conversation.Session, reason conversation.EndReason) {
	m.SessionsEnded.WithLabelValues(string(reason)).Inc()
	m.SessionsActive.Dec()
	switch reason {
	case conversation.EndCompleted:
		m.Deliveries.WithLabelValues("sent").Inc()
	case conversation.EndDeliveryFailed:
		m.Deliveries.WithLabelValues("failed").Inc()
	}
}

// EventHandled implements conversation.Observer.
func (m *Metrics) EventHandled(ev conversation.Event, t conversation.Transition) {
	m.Events.WithLabelValues(string(ev.Kind)).Inc()
	if t.Err != nil && !conversation.Terminal(t.Err) && t.From == t.To {
		m.ValidationFails.WithLabelValues(string(t.From)).Inc()
	}
}

// ObserveUpdate records one handled Telegram update.
func (m *Metrics) ObserveUpdate(kind string, took time.Duration, err error) {
	m.Updates.WithLabelValues(kind, logger.Status(err)).Inc()
	m.UpdateDuration.WithLabelValues(kind).Observe(took.Seconds())
}
