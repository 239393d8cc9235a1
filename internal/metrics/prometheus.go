package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the voice summary bot
type Metrics struct {
	// Voice capture metrics
	VoicePackets  prometheus.Counter
	FramesDecoded prometheus.Counter
	DecodeErrors  prometheus.Counter
	DecodedBytes  prometheus.Counter
	TurnsStarted  prometheus.Counter
	TurnsEnded    prometheus.Counter
	TurnDuration  prometheus.Histogram

	// Session metrics
	ActiveSessions    prometheus.Gauge
	SessionsCreated   prometheus.Counter
	SessionsDestroyed prometheus.Counter
	SessionDuration   prometheus.Histogram
	RecordingBytes    prometheus.Histogram

	// Transcription metrics
	TranscriptionRequests  prometheus.Counter
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	TranscriptionRetries   prometheus.Counter
	TranscriptionDuration  prometheus.Histogram

	// Summarization metrics
	SummariesGenerated prometheus.Counter
	SummariesSkipped   prometheus.Counter
	SummaryFailures    prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		VoicePackets: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voicebot_voice_packets_total",
			Help: "Total number of Opus voice packets received",
		}),
		FramesDecoded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voicebot_frames_decoded_total",
			Help: "Total number of Opus frames successfully decoded",
		}),
		DecodeErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voicebot_decode_errors_total",
			Help: "Total number of voice frames skipped due to decode errors",
		}),
		DecodedBytes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voicebot_decoded_bytes_total",
			Help: "Total number of decoded PCM bytes appended to recording buffers",
		}),
		TurnsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voicebot_speaking_turns_started_total",
			Help: "Total number of speaking turns started",
		}),
		TurnsEnded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voicebot_speaking_turns_ended_total",
			Help: "Total number of speaking turns ended",
		}),
		TurnDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicebot_speaking_turn_duration_seconds",
			Help:    "Duration of speaking turns in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
		}),

		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "voicebot_active_sessions",
			Help: "Current number of active recording sessions",
		}),
		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voicebot_sessions_created_total",
			Help: "Total number of recording sessions created",
		}),
		SessionsDestroyed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voicebot_sessions_destroyed_total",
			Help: "Total number of recording sessions destroyed",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicebot_session_duration_seconds",
			Help:    "Duration of recording sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68 minutes
		}),
		RecordingBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicebot_recording_bytes",
			Help:    "Size of drained recordings in bytes",
			Buckets: prometheus.ExponentialBuckets(65536, 4, 10), // 64KB to ~16GB
		}),

		TranscriptionRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voicebot_transcription_requests_total",
			Help: "Total number of transcription requests sent",
		}),
		TranscriptionSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voicebot_transcription_successes_total",
			Help: "Total number of successful transcription requests",
		}),
		TranscriptionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voicebot_transcription_failures_total",
			Help: "Total number of transcription requests that exhausted retries",
		}),
		TranscriptionRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voicebot_transcription_retries_total",
			Help: "Total number of transcription request retries",
		}),
		TranscriptionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicebot_transcription_duration_seconds",
			Help:    "Duration of transcription requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),

		SummariesGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voicebot_summaries_generated_total",
			Help: "Total number of summaries generated",
		}),
		SummariesSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voicebot_summaries_skipped_total",
			Help: "Total number of summaries skipped for short transcripts",
		}),
		SummaryFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voicebot_summary_failures_total",
			Help: "Total number of failed summarization requests",
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "voicebot_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voicebot_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "voicebot_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordVoicePacket increments the voice packet counter
func (m *Metrics) RecordVoicePacket() {
	m.VoicePackets.Inc()
}

// RecordFrameDecoded records a successfully decoded frame and its PCM size
func (m *Metrics) RecordFrameDecoded(pcmBytes int) {
	m.FramesDecoded.Inc()
	m.DecodedBytes.Add(float64(pcmBytes))
}

// RecordDecodeError increments the decode error counter
func (m *Metrics) RecordDecodeError() {
	m.DecodeErrors.Inc()
}

// RecordTurnStarted increments the speaking turn counter
func (m *Metrics) RecordTurnStarted() {
	m.TurnsStarted.Inc()
}

// RecordTurnEnded records a completed speaking turn
func (m *Metrics) RecordTurnEnded(durationSeconds float64) {
	m.TurnsEnded.Inc()
	m.TurnDuration.Observe(durationSeconds)
}

// SetActiveSessions sets the current number of active sessions
func (m *Metrics) SetActiveSessions(count int) {
	m.ActiveSessions.Set(float64(count))
}

// RecordSessionCreated increments the sessions created counter
func (m *Metrics) RecordSessionCreated() {
	m.SessionsCreated.Inc()
}

// RecordSessionDestroyed records a finished session and its recording size
func (m *Metrics) RecordSessionDestroyed(durationSeconds float64, recordingBytes int) {
	m.SessionsDestroyed.Inc()
	m.SessionDuration.Observe(durationSeconds)
	m.RecordingBytes.Observe(float64(recordingBytes))
}

// RecordTranscriptionRequest increments transcription requests counter
func (m *Metrics) RecordTranscriptionRequest() {
	m.TranscriptionRequests.Inc()
}

// RecordTranscriptionSuccess records a successful transcription
func (m *Metrics) RecordTranscriptionSuccess(durationSeconds float64) {
	m.TranscriptionSuccesses.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordTranscriptionFailure records a failed transcription
func (m *Metrics) RecordTranscriptionFailure(durationSeconds float64) {
	m.TranscriptionFailures.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordTranscriptionRetry increments the retry counter
func (m *Metrics) RecordTranscriptionRetry() {
	m.TranscriptionRetries.Inc()
}

// RecordSummaryGenerated increments the summaries generated counter
func (m *Metrics) RecordSummaryGenerated() {
	m.SummariesGenerated.Inc()
}

// RecordSummarySkipped increments the summaries skipped counter
func (m *Metrics) RecordSummarySkipped() {
	m.SummariesSkipped.Inc()
}

// RecordSummaryFailure increments the summary failure counter
func (m *Metrics) RecordSummaryFailure() {
	m.SummaryFailures.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
