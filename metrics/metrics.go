// Package metrics exposes session lifecycle and backend instrumentation as
// Prometheus collectors. A nil *Recorder is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/sessionmesh/core"
)

const namespace = "sessionmesh"

// Recorder groups the collectors of one process.
type Recorder struct {
	sessionsStarted     *prometheus.CounterVec
	sessionsEnded       *prometheus.CounterVec
	turns               *prometheus.CounterVec
	generationFailures  *prometheus.CounterVec
	persistenceFailures *prometheus.CounterVec
	activeSessions      prometheus.Gauge
	generationDuration  *prometheus.HistogramVec
}

// New creates a Recorder and registers its collectors on reg. A nil reg
// leaves the collectors unregistered.
func New(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		sessionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Sessions started, by mode.",
		}, []string{"mode"}),
		sessionsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_ended_total",
			Help:      "Sessions ended, by terminal reason.",
		}, []string{"reason"}),
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Delivered conversation turns, by mode.",
		}, []string{"mode"}),
		generationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_failures_total",
			Help:      "Failed backend generations, by mode.",
		}, []string{"mode"}),
		persistenceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_failures_total",
			Help:      "Failed transcript store operations, by operation.",
		}, []string{"op"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Sessions currently open.",
		}),
		generationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Backend generation latency, by mode.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		}, []string{"mode"}),
	}

	if reg == nil {
		return r, nil
	}
	for _, c := range []prometheus.Collector{
		r.sessionsStarted,
		r.sessionsEnded,
		r.turns,
		r.generationFailures,
		r.persistenceFailures,
		r.activeSessions,
		r.generationDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// SessionStarted counts a new session and raises the active gauge.
func (r *Recorder) SessionStarted(mode core.Mode) {
	if r == nil {
		return
	}
	r.sessionsStarted.WithLabelValues(string(mode)).Inc()
	r.activeSessions.Inc()
}

// SessionEnded counts a terminated session and lowers the active gauge.
func (r *Recorder) SessionEnded(reason core.EndReason) {
	if r == nil {
		return
	}
	r.sessionsEnded.WithLabelValues(string(reason)).Inc()
	r.activeSessions.Dec()
}

// Turn counts a delivered response.
func (r *Recorder) Turn(mode core.Mode) {
	if r == nil {
		return
	}
	r.turns.WithLabelValues(string(mode)).Inc()
}

// Generation observes one backend call.
func (r *Recorder) Generation(mode core.Mode, dur time.Duration, err error) {
	if r == nil {
		return
	}
	r.generationDuration.WithLabelValues(string(mode)).Observe(dur.Seconds())
	if err != nil {
		r.generationFailures.WithLabelValues(string(mode)).Inc()
	}
}

// PersistenceFailure counts a failed transcript operation.
func (r *Recorder) PersistenceFailure(op string) {
	if r == nil {
		return
	}
	r.persistenceFailures.WithLabelValues(op).Inc()
}
