package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicetovoice_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	// Event channel metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voicetovoice_active_sessions",
		Help: "Number of connected event channel sessions",
	})

	totalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicetovoice_sessions_total",
		Help: "Total number of event channel sessions",
	})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voicetovoice_session_duration_seconds",
		Help:    "Duration of event channel sessions in seconds",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
	})

	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicetovoice_events_total",
		Help: "Total number of events exchanged",
	}, []string{"event", "direction"}) // direction: "in" or "out"

	// Provider metrics
	providerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicetovoice_provider_requests_total",
		Help: "Total number of external provider requests",
	}, []string{"provider", "status"})

	providerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voicetovoice_provider_latency_seconds",
		Help:    "External provider latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	}, []string{"provider"})

	// Assessment metrics
	assessmentStages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicetovoice_assessment_stages_total",
		Help: "Assessment stage outcomes",
	}, []string{"stage", "status"})

	// Voice assistant metrics
	playbackTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicetovoice_playback_transitions_total",
		Help: "Playback state machine transitions",
	}, []string{"from", "to"})

	controlIntents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicetovoice_control_intents_total",
		Help: "Voice control intents applied",
	}, []string{"kind"})

	// Persistence metrics
	persistenceWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicetovoice_persistence_writes_total",
		Help: "Score table writes",
	}, []string{"table", "status"})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicetovoice_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "voicetovoice_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicetovoice_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})

	// Audio metrics
	audioBytesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicetovoice_audio_bytes_total",
		Help: "Total audio bytes processed",
	}, []string{"direction"})
)

// Metrics tracks metrics for a single event channel session
type Metrics struct {
	sessionID string
	startTime time.Time
	providers map[string]time.Time
	mu        sync.Mutex
}

// NewSessionMetrics creates a new metrics tracker for a session
func NewSessionMetrics(sessionID string) *Metrics {
	return &Metrics{
		sessionID: sessionID,
		startTime: time.Now(),
		providers: make(map[string]time.Time),
	}
}

// RecordSessionStart records the start of a session
func (m *Metrics) RecordSessionStart() {
	activeSessions.Inc()
	totalSessions.Inc()
}

// RecordSessionEnd records the end of a session
func (m *Metrics) RecordSessionEnd() {
	activeSessions.Dec()
	sessionDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordEvent counts an inbound or outbound event.
func (m *Metrics) RecordEvent(event, direction string) {
	eventsTotal.WithLabelValues(event, direction).Inc()
}

// RecordProviderStart marks the start of a provider call.
func (m *Metrics) RecordProviderStart(provider string) {
	m.mu.Lock()
	m.providers[provider] = time.Now()
	m.mu.Unlock()
}

// RecordProviderEnd records the outcome of a provider call started with
// RecordProviderStart.
func (m *Metrics) RecordProviderEnd(provider string, success bool) {
	m.mu.Lock()
	start, ok := m.providers[provider]
	delete(m.providers, provider)
	m.mu.Unlock()

	if ok {
		providerLatency.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	}
	providerRequests.WithLabelValues(provider, statusLabel(success)).Inc()
}

// RecordError records an error
func (m *Metrics) RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordAudioBytes records audio bytes processed
func (m *Metrics) RecordAudioBytes(direction string, bytes int64) {
	audioBytesProcessed.WithLabelValues(direction).Add(float64(bytes))
}

// ObserveProvider records a provider call that does not belong to a session.
func ObserveProvider(provider string, start time.Time, success bool) {
	providerLatency.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	providerRequests.WithLabelValues(provider, statusLabel(success)).Inc()
}

// RecordAssessmentStage records the outcome of one assessment stage.
func RecordAssessmentStage(stage string, success bool) {
	assessmentStages.WithLabelValues(stage, statusLabel(success)).Inc()
}

// RecordPlaybackTransition counts a playback state change.
func RecordPlaybackTransition(from, to string) {
	playbackTransitions.WithLabelValues(from, to).Inc()
}

// RecordIntent counts an applied control intent.
func RecordIntent(kind string) {
	controlIntents.WithLabelValues(kind).Inc()
}

// RecordPersistenceWrite counts an insert into a score table.
func RecordPersistenceWrite(table string, success bool) {
	persistenceWrites.WithLabelValues(table, statusLabel(success)).Inc()
}

// RecordError records an error outside a session.
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

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
