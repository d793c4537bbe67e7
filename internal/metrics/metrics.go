// Package metrics exposes Prometheus instruments for dispatched turns.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dispatchbot"

type Metrics struct {
	// TurnsTotal counts completed turns.
	// Labels: intent (chat, weather, ...), outcome (ok, error)
	TurnsTotal *prometheus.CounterVec

	// TurnDurationSeconds measures submit-to-persist latency.
	// Labels: intent
	TurnDurationSeconds *prometheus.HistogramVec

	// ActiveTurns is the number of turns in flight across conversations.
	ActiveTurns prometheus.Gauge

	// RejectedTotal counts submissions refused because a turn was in flight.
	RejectedTotal prometheus.Counter

	// PersistFailuresTotal counts turns whose append or invalidation failed.
	PersistFailuresTotal prometheus.Counter

	// StreamChunksTotal counts chunks received from chat sessions.
	StreamChunksTotal prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TurnsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "turns",
			Name:      "total",
			Help:      "Completed turns by intent and outcome",
		}, []string{"intent", "outcome"}),
		TurnDurationSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "turns",
			Name:      "duration_seconds",
			Help:      "Turn duration from submission to persistence",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"intent"}),
		ActiveTurns: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "turns",
			Name:      "active",
			Help:      "Turns currently in flight",
		}),
		RejectedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "turns",
			Name:      "rejected_total",
			Help:      "Submissions rejected while a turn was in flight",
		}),
		PersistFailuresTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "persist_failures_total",
			Help:      "Turns that could not be appended or invalidated",
		}),
		StreamChunksTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "chunks_total",
			Help:      "Chunks received from chat sessions",
		}),
	}
}

func (m *Metrics) TurnStarted() {
	if m == nil {
		return
	}
	m.ActiveTurns.Inc()
}

func (m *Metrics) TurnFinished(intent string, failed bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	m.ActiveTurns.Dec()
	m.TurnsTotal.WithLabelValues(intent, outcome).Inc()
	m.TurnDurationSeconds.WithLabelValues(intent).Observe(elapsed.Seconds())
}

func (m *Metrics) TurnRejected() {
	if m == nil {
		return
	}
	m.RejectedTotal.Inc()
}

func (m *Metrics) PersistFailed() {
	if m == nil {
		return
	}
	m.PersistFailuresTotal.Inc()
}

func (m *Metrics) ChunkReceived() {
	if m == nil {
		return
	}
	m.StreamChunksTotal.Inc()
}
