package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "intervu_active_sessions",
		Help: "Number of live interview sessions currently streaming",
	})

	sessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intervu_sessions_total",
		Help: "Total number of interview sessions by outcome",
	}, []string{"outcome"})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "intervu_session_duration_seconds",
		Help:    "Duration of live interview sessions in seconds",
		Buckets: []float64{10, 30, 60, 180, 300, 600, 900, 1800},
	})

	connectLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "intervu_connect_latency_seconds",
		Help:    "Time from dial to setup completion",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	// Realtime input metrics
	realtimeInputs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intervu_realtime_inputs_total",
		Help: "Realtime input events by kind and disposition",
	}, []string{"kind", "result"}) // kind: audio|video, result: sent|dropped|failed

	// Inbound metrics
	serverEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intervu_server_events_total",
		Help: "Inbound server events by type",
	}, []string{"type"})

	transcriptItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intervu_transcript_items_total",
		Help: "Finalized transcript items by role",
	}, []string{"role"})

	playbackQueued = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "intervu_playback_queued_seconds",
		Help:    "Assistant audio queued ahead of the output clock when a chunk is scheduled",
		Buckets: []float64{0, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	// Report generation metrics
	reportRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intervu_report_requests_total",
		Help: "Report generation requests by status",
	}, []string{"status"})

	reportLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "intervu_report_latency_seconds",
		Help:    "Report generation latency in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40},
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intervu_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "intervu_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intervu_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})

	// Audio metrics
	audioBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intervu_audio_bytes_total",
		Help: "Total PCM audio bytes processed",
	}, []string{"direction"}) // direction: "in" or "out"
)

// SessionMetrics tracks metrics for a single interview session.
// A nil *SessionMetrics is valid and records nothing.
type SessionMetrics struct {
	sessionID    string
	startTime    time.Time
	connectStart time.Time
	streaming    bool
	mu           sync.Mutex
}

// NewSessionMetrics creates a new metrics tracker for a session
func NewSessionMetrics(sessionID string) *SessionMetrics {
	return &SessionMetrics{
		sessionID: sessionID,
		startTime: time.Now(),
	}
}

// RecordConnectStart marks the beginning of the connection handshake
func (m *SessionMetrics) RecordConnectStart() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.connectStart = time.Now()
	m.mu.Unlock()
}

// RecordStreaming records that the session reached the streaming state
func (m *SessionMetrics) RecordStreaming() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.streaming {
		return
	}
	m.streaming = true
	if !m.connectStart.IsZero() {
		connectLatency.Observe(time.Since(m.connectStart).Seconds())
	}
	m.startTime = time.Now()
	activeSessions.Inc()
}

// RecordSessionEnd records the end of a session with its outcome label
func (m *SessionMetrics) RecordSessionEnd(outcome string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	sessionsTotal.WithLabelValues(outcome).Inc()
	if m.streaming {
		m.streaming = false
		activeSessions.Dec()
		sessionDuration.Observe(time.Since(m.startTime).Seconds())
	}
}

// RecordRealtimeInput records the disposition of an outbound audio block or video frame
func (m *SessionMetrics) RecordRealtimeInput(kind, result string) {
	if m == nil {
		return
	}
	realtimeInputs.WithLabelValues(kind, result).Inc()
}

// RecordServerEvent records an inbound server event
func (m *SessionMetrics) RecordServerEvent(eventType string) {
	if m == nil {
		return
	}
	serverEvents.WithLabelValues(eventType).Inc()
}

// RecordTranscriptItem records a finalized transcript turn
func (m *SessionMetrics) RecordTranscriptItem(role string) {
	if m == nil {
		return
	}
	transcriptItems.WithLabelValues(role).Inc()
}

// RecordPlaybackQueued records how far ahead of the output clock audio is queued
func (m *SessionMetrics) RecordPlaybackQueued(seconds float64) {
	if m == nil {
		return
	}
	playbackQueued.Observe(seconds)
}

// RecordError records an error
func (m *SessionMetrics) RecordError(errorType, component string) {
	if m == nil {
		return
	}
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordAudioBytes records audio bytes processed
func (m *SessionMetrics) RecordAudioBytes(direction string, bytes int64) {
	if m == nil {
		return
	}
	audioBytes.WithLabelValues(direction).Add(float64(bytes))
}

// RecordReport records a report generation attempt
func RecordReport(success bool, latency time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	reportRequests.WithLabelValues(status).Inc()
	reportLatency.Observe(latency.Seconds())
}

// RecordError records an error outside of a session scope
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
