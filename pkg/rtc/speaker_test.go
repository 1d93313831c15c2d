package rtc

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v3/pkg/media"

	"github.com/teslashibe/go-livetranslate/pkg/audioio"
)

type fakeEncoder struct{}

func (fakeEncoder) Encode(pcm []int16, data []byte) (int, error) {
	data[0], data[1] = byte(pcm[0]), byte(pcm[0]>>8)
	return 2, nil
}

type trackRecorder struct {
	mu      sync.Mutex
	samples []media.Sample
}

func (r *trackRecorder) WriteSample(s media.Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, s)
	return nil
}

func (r *trackRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}

func TestSpeaker_WritesOpusFrames(t *testing.T) {
	rec := &trackRecorder{}
	s := newSpeaker(audioio.DefaultConfig(), rec, slog.Default())
	s.newEncoder = func(int, int) (encoder, error) { return fakeEncoder{}, nil }
	defer s.Close()

	cfg := s.Config()
	if cfg.SampleRate != opusRate || cfg.FrameSize != opusFrameSize {
		t.Errorf("Unexpected speaker config: %+v", cfg)
	}

	buf, err := s.Context().NewBuffer([][]float32{constant(opusRate/10, 0.5)}, opusRate)
	if err != nil {
		t.Fatalf("NewBuffer failed: %v", err)
	}
	if _, err := s.Context().Schedule(buf, 0, nil, nil); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for rec.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.samples) < 3 {
		t.Fatalf("Expected at least 3 samples, got %d", len(rec.samples))
	}
	first := rec.samples[0]
	if first.Duration != opusFrameDuration {
		t.Errorf("Expected %v duration, got %v", opusFrameDuration, first.Duration)
	}
	if len(first.Data) != 2 {
		t.Errorf("Expected 2-byte packet, got %d", len(first.Data))
	}
	if s.Stats().FramesRendered%opusFrameSize != 0 {
		t.Errorf("Expected whole periods rendered, got %d", s.Stats().FramesRendered)
	}
}

func TestSpeaker_EncoderUnavailable(t *testing.T) {
	want := errors.New("no opus")
	s := newSpeaker(audioio.DefaultConfig(), &trackRecorder{}, slog.Default())
	s.newEncoder = func(int, int) (encoder, error) { return nil, want }
	defer s.Close()

	if err := s.Start(context.Background()); !errors.Is(err, want) {
		t.Errorf("Expected %v, got %v", want, err)
	}
	if s.Stats().Running {
		t.Error("Expected speaker not running")
	}
}
