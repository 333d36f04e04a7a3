package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// StreamMetrics collects engine-level counters. A nil *StreamMetrics is a
// valid no-op receiver so callers never need to guard.
type StreamMetrics struct {
	sessionsStarted   prometheus.Counter
	sessionsCompleted prometheus.Counter
	sessionsFailed    prometheus.Counter
	recoveries        prometheus.Counter
	chunksReceived    *prometheus.CounterVec
	retries           *prometheus.CounterVec
	refreshes         *prometheus.CounterVec
	sessionDuration   prometheus.Histogram
}

// New registers the engine collectors. Pass nil to use the default
// registerer.
func New(reg prometheus.Registerer) *StreamMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &StreamMetrics{
		sessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "askstream_sessions_started_total",
			Help: "Streaming sessions opened, including recovery restarts.",
		}),
		sessionsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "askstream_sessions_completed_total",
			Help: "Sessions that reached a terminal end chunk.",
		}),
		sessionsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "askstream_sessions_failed_total",
			Help: "Sessions that terminated without completing.",
		}),
		recoveries: factory.NewCounter(prometheus.CounterOpts{
			Name: "askstream_recoveries_total",
			Help: "Full-restart recoveries after transport interruptions.",
		}),
		chunksReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "askstream_chunks_received_total",
			Help: "Accepted chunks by type.",
		}, []string{"type"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "askstream_retries_total",
			Help: "Request retries by error code.",
		}, []string{"code"}),
		refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "askstream_credential_refreshes_total",
			Help: "Credential refresh operations by outcome.",
		}, []string{"outcome"}),
		sessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "askstream_session_duration_seconds",
			Help:    "Wall time from start to terminal state.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
}

func (m *StreamMetrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessionsStarted.Inc()
}

func (m *StreamMetrics) SessionCompleted(seconds float64) {
	if m == nil {
		return
	}
	m.sessionsCompleted.Inc()
	m.sessionDuration.Observe(seconds)
}

func (m *StreamMetrics) SessionFailed(seconds float64) {
	if m == nil {
		return
	}
	m.sessionsFailed.Inc()
	m.sessionDuration.Observe(seconds)
}

func (m *StreamMetrics) Recovery() {
	if m == nil {
		return
	}
	m.recoveries.Inc()
}

func (m *StreamMetrics) ChunkReceived(chunkType string) {
	if m == nil {
		return
	}
	m.chunksReceived.WithLabelValues(chunkType).Inc()
}

func (m *StreamMetrics) Retry(code string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(code).Inc()
}

func (m *StreamMetrics) Refresh(success bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.refreshes.WithLabelValues(outcome).Inc()
}
