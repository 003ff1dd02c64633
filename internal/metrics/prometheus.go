package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the voice assistant
type Metrics struct {
	// Transcription metrics
	TranscriptionRequests *prometheus.CounterVec
	TranscriptionJobs     *prometheus.CounterVec
	PollAttempts          prometheus.Histogram
	TranscriptionDuration prometheus.Histogram

	// Turn metrics
	Turns         *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	Conversations prometheus.Gauge

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates all metrics and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		TranscriptionRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voice_transcription_requests_total",
			Help: "Transcription requests by recognizer mode and result",
		}, []string{"mode", "result"}),
		TranscriptionJobs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voice_transcription_jobs_total",
			Help: "Asynchronous transcription jobs by terminal outcome",
		}, []string{"outcome"}),
		PollAttempts: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "voice_transcription_poll_attempts",
			Help:    "Status checks spent per transcription job",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60},
		}),
		TranscriptionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "voice_transcription_duration_seconds",
			Help:    "Time spent turning audio into text",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 9),
		}),

		Turns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voice_turns_total",
			Help: "Dialogue turns by outcome",
		}, []string{"outcome"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voice_stage_duration_seconds",
			Help:    "Duration of each turn stage",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"stage"}),
		Conversations: f.NewGauge(prometheus.GaugeOpts{
			Name: "voice_conversations",
			Help: "Conversations currently held in memory",
		}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voice_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voice_http_request_duration_seconds",
			Help:    "HTTP request duration by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// NewNop returns metrics registered with a throwaway registry
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
