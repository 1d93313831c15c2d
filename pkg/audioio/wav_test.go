package audioio

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/youpy/go-wav"
)

func writeTestWAV(t *testing.T, rate, channels, frames int, value int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	w := wav.NewWriter(f, uint32(frames), uint16(channels), uint32(rate), 16)
	samples := make([]wav.Sample, frames)
	for i := range samples {
		samples[i].Values[0] = value
		samples[i].Values[1] = value
	}
	if err := w.WriteSamples(samples); err != nil {
		t.Fatalf("write samples: %v", err)
	}
	return path
}

func TestLoadWAV(t *testing.T) {
	path := writeTestWAV(t, 8000, 2, 800, 16384)

	samples, rate, err := LoadWAV(path)
	if err != nil {
		t.Fatalf("LoadWAV failed: %v", err)
	}
	if rate != 8000 {
		t.Errorf("Expected rate 8000, got %d", rate)
	}
	if len(samples) != 800 {
		t.Fatalf("Expected 800 mono samples, got %d", len(samples))
	}
	if samples[0] != 0.5 {
		t.Errorf("Expected 0.5, got %f", samples[0])
	}
}

func TestLoadWAV_Missing(t *testing.T) {
	if _, _, err := LoadWAV(filepath.Join(t.TempDir(), "nope.wav")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestWAVSource_FramesAndEOF(t *testing.T) {
	// 0.5s at 8kHz becomes 8000 samples at 16kHz: two full frames and a padded third.
	path := writeTestWAV(t, 8000, 1, 4000, 8192)

	cfg := DefaultConfig()
	cfg.Backend = BackendWAV
	cfg.Path = path
	cfg.FrameSize = 3200

	src := NewWAVSource(cfg, nil, WithoutPacing())
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	var frames int
	for {
		frame, err := src.Read(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if len(frame.Samples) != cfg.FrameSize {
			t.Errorf("Expected %d samples, got %d", cfg.FrameSize, len(frame.Samples))
		}
		if frame.SampleRate != 16000 {
			t.Errorf("Expected 16000 Hz, got %d", frame.SampleRate)
		}
		frames++
	}
	if frames != 3 {
		t.Errorf("Expected 3 frames, got %d", frames)
	}
}

func TestWAVSource_StartMissingFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendWAV
	cfg.Path = filepath.Join(t.TempDir(), "missing.wav")

	src := NewWAVSource(cfg, nil)
	defer src.Close()
	if err := src.Start(context.Background()); err == nil {
		t.Error("Expected Start to fail for a missing file")
	}
}

func TestNewSource_Backends(t *testing.T) {
	tests := []struct {
		name    string
		backend Backend
		path    string
		want    string
		wantErr bool
	}{
		{"mock", BackendMock, "", "mock", false},
		{"wav", BackendWAV, "in.wav", "wav", false},
		{"wav without path", BackendWAV, "", "", true},
		{"unknown", Backend("tape"), "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Backend = tt.backend
			cfg.Path = tt.path
			src, err := NewSource(cfg, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewSource error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && src.Name() != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, src.Name())
			}
		})
	}
}

func TestNewSink_WAVUsesMock(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendWAV
	sink, err := NewSink(cfg, nil)
	if err != nil {
		t.Fatalf("NewSink failed: %v", err)
	}
	defer sink.Close()
	if sink.Name() != "mock" {
		t.Errorf("Expected mock sink, got %s", sink.Name())
	}
}
