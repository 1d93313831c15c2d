// Package metrics defines the Prometheus metrics of the translator.
//
// All Record/Set methods are safe on a nil *Metrics so that components can
// run without instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "livetranslate"

// Metrics contains all Prometheus metrics for the translator.
type Metrics struct {
	// Capture metrics
	FramesCaptured prometheus.Counter
	FramesSent     prometheus.Counter
	FramesDropped  *prometheus.CounterVec
	SendErrors     prometheus.Counter

	// Playback metrics
	SegmentsScheduled prometheus.Counter
	SegmentsFlushed   prometheus.Counter
	Interruptions     prometheus.Counter
	DecodeErrors      prometheus.Counter
	ScheduledAudio    prometheus.Counter
	PlaybackLead      prometheus.Histogram

	// Session metrics
	Sessions        prometheus.Counter
	SessionErrors   *prometheus.CounterVec
	Connected       prometheus.Gauge
	SessionDuration prometheus.Histogram

	// Volume metrics
	InputLevel  prometheus.Gauge
	OutputLevel prometheus.Gauge

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates all metrics and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		FramesCaptured: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_captured_total",
			Help:      "Total number of microphone frames captured",
		}),
		FramesSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Total number of frames sent to the remote session",
		}),
		FramesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Total number of captured frames that were not sent",
		}, []string{"reason"}),
		SendErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_errors_total",
			Help:      "Total number of failed sends",
		}),

		SegmentsScheduled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_scheduled_total",
			Help:      "Total number of audio segments scheduled for playback",
		}),
		SegmentsFlushed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_flushed_total",
			Help:      "Total number of segments stopped by an interruption",
		}),
		Interruptions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interruptions_total",
			Help:      "Total number of server interruptions",
		}),
		DecodeErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Total number of inbound audio payloads that failed to decode",
		}),
		ScheduledAudio: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduled_audio_seconds_total",
			Help:      "Total seconds of translated audio scheduled",
		}),
		PlaybackLead: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "playback_lead_seconds",
			Help:      "Time between scheduling a segment and its start",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
		}),

		Sessions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of sessions opened",
		}),
		SessionErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_errors_total",
			Help:      "Total number of session failures",
		}, []string{"kind"}),
		Connected: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected",
			Help:      "1 while a session is connected",
		}),
		SessionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of connected sessions",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1 hour
		}),

		InputLevel: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "input_level",
			Help:      "Last reported microphone level (0-1)",
		}),
		OutputLevel: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "output_level",
			Help:      "Last reported playback level (0-1)",
		}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status_code"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// RecordFrameCaptured increments the captured frames counter
func (m *Metrics) RecordFrameCaptured() {
	if m == nil {
		return
	}
	m.FramesCaptured.Inc()
}

// RecordFrameSent increments the sent frames counter
func (m *Metrics) RecordFrameSent() {
	if m == nil {
		return
	}
	m.FramesSent.Inc()
}

// RecordFrameDropped increments the dropped frames counter for reason
// ("no_session" or "queue_full").
func (m *Metrics) RecordFrameDropped(reason string) {
	if m == nil {
		return
	}
	m.FramesDropped.WithLabelValues(reason).Inc()
}

// RecordSendError increments the send errors counter
func (m *Metrics) RecordSendError() {
	if m == nil {
		return
	}
	m.SendErrors.Inc()
}

// RecordSegmentScheduled records a scheduled segment, its length and how far
// ahead of the playback clock it starts.
func (m *Metrics) RecordSegmentScheduled(durationSeconds, leadSeconds float64) {
	if m == nil {
		return
	}
	m.SegmentsScheduled.Inc()
	m.ScheduledAudio.Add(durationSeconds)
	m.PlaybackLead.Observe(leadSeconds)
}

// RecordInterruption records an interruption and how many segments it stopped
func (m *Metrics) RecordInterruption(flushed int) {
	if m == nil {
		return
	}
	m.Interruptions.Inc()
	m.SegmentsFlushed.Add(float64(flushed))
}

// RecordDecodeError increments the decode errors counter
func (m *Metrics) RecordDecodeError() {
	if m == nil {
		return
	}
	m.DecodeErrors.Inc()
}

// RecordSessionOpened increments the sessions counter and sets connected
func (m *Metrics) RecordSessionOpened() {
	if m == nil {
		return
	}
	m.Sessions.Inc()
	m.Connected.Set(1)
}

// RecordSessionClosed clears connected and records the session duration
func (m *Metrics) RecordSessionClosed(durationSeconds float64) {
	if m == nil {
		return
	}
	m.Connected.Set(0)
	if durationSeconds > 0 {
		m.SessionDuration.Observe(durationSeconds)
	}
}

// RecordSessionError increments the session errors counter for kind
func (m *Metrics) RecordSessionError(kind string) {
	if m == nil {
		return
	}
	m.SessionErrors.WithLabelValues(kind).Inc()
}

// SetLevels sets the volume gauges
func (m *Metrics) SetLevels(input, output float64) {
	if m == nil {
		return
	}
	m.InputLevel.Set(input)
	m.OutputLevel.Set(output)
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, route, statusCode string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(durationSeconds)
}
