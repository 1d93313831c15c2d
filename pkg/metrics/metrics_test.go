package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// value returns the sum of all series of the named counter or gauge.
func value(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		var sum float64
		for _, m := range mf.GetMetric() {
			sum += m.GetCounter().GetValue() + m.GetGauge().GetValue()
		}
		return sum
	}
	return 0
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.RecordFrameCaptured()
	m.RecordFrameSent()
	m.RecordFrameDropped("no_session")
	m.RecordSendError()
	m.RecordSegmentScheduled(0.5, 0.1)
	m.RecordInterruption(2)
	m.RecordDecodeError()
	m.RecordSessionOpened()
	m.RecordSessionClosed(1)
	m.RecordSessionError("runtime")
	m.SetLevels(0.5, 0.5)
	m.RecordHTTPRequest("GET", "/api/status", "200", 0.01)
}

func TestRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordFrameCaptured()
	m.RecordFrameCaptured()
	m.RecordFrameDropped("queue_full")
	m.RecordFrameDropped("no_session")
	m.RecordSegmentScheduled(0.5, 0)
	m.RecordSegmentScheduled(0.25, 0.5)
	m.RecordInterruption(3)
	m.RecordSessionOpened()

	tests := []struct {
		name string
		want float64
	}{
		{"livetranslate_frames_captured_total", 2},
		{"livetranslate_frames_dropped_total", 2},
		{"livetranslate_segments_scheduled_total", 2},
		{"livetranslate_scheduled_audio_seconds_total", 0.75},
		{"livetranslate_segments_flushed_total", 3},
		{"livetranslate_interruptions_total", 1},
		{"livetranslate_connected", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := value(t, reg, tt.name); got != tt.want {
				t.Errorf("%s = %f, want %f", tt.name, got, tt.want)
			}
		})
	}

	m.RecordSessionClosed(12)
	if got := value(t, reg, "livetranslate_connected"); got != 0 {
		t.Errorf("connected = %f, want 0", got)
	}
}

func TestNewRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)

	defer func() {
		if recover() == nil {
			t.Error("Expected duplicate registration to panic")
		}
	}()
	New(reg)
}
