// Package metrics exposes game counters in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "handgame"

// Metrics groups the collectors recorded by the session controllers.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	activeSessions    prometheus.Gauge
	sessionsStarted   prometheus.Counter
	sessionsEnded     *prometheus.CounterVec
	verdicts          *prometheus.CounterVec
	questions         *prometheus.CounterVec
	upstreamFailures  *prometheus.CounterVec
	eventsDropped     *prometheus.CounterVec
	judgementDuration prometheus.Histogram
}

// New registers all collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Sessions currently held in memory.",
		}),
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Session starts, including difficulty restarts.",
		}),
		sessionsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_ended_total",
			Help:      "Sessions that reached a terminal phase.",
		}, []string{"reason"}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdicts_total",
			Help:      "Judgement verdicts by how the controller handled them.",
		}, []string{"result"}),
		questions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "questions_completed_total",
			Help:      "Completed questions by outcome.",
		}, []string{"outcome"}),
		upstreamFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_failures_total",
			Help:      "Failed collaborator calls by call name.",
		}, []string{"call"}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Session events dropped because the event queue was full.",
		}, []string{"event"}),
		judgementDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "judgement_duration_seconds",
			Help:      "Round trip of capture submissions to the judge.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.activeSessions,
		m.sessionsStarted,
		m.sessionsEnded,
		m.verdicts,
		m.questions,
		m.upstreamFailures,
		m.eventsDropped,
		m.judgementDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

// SessionClosed records a session leaving memory. reason is "finished",
// "quit" or "expired".
func (m *Metrics) SessionClosed(reason string) {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
	m.sessionsEnded.WithLabelValues(reason).Inc()
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessionsStarted.Inc()
}

// Verdict records a verdict as "correct", "incorrect" or "stale".
func (m *Metrics) Verdict(result string) {
	if m == nil {
		return
	}
	m.verdicts.WithLabelValues(result).Inc()
}

// QuestionCompleted records "solved" or "skipped".
func (m *Metrics) QuestionCompleted(outcome string) {
	if m == nil {
		return
	}
	m.questions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) UpstreamFailure(call string) {
	if m == nil {
		return
	}
	m.upstreamFailures.WithLabelValues(call).Inc()
}

// EventDropped records a session event lost to a full event queue.
func (m *Metrics) EventDropped(event string) {
	if m == nil {
		return
	}
	m.eventsDropped.WithLabelValues(event).Inc()
}

func (m *Metrics) ObserveJudgement(d time.Duration) {
	if m == nil {
		return
	}
	m.judgementDuration.Observe(d.Seconds())
}
