package rtc

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-livetranslate/pkg/audioio"
)

const micBuffer = 16

// Microphone is an audioio.Source fed by a browser's audio track. Decoded
// samples are regrouped into frames of cfg.FrameSize.
type Microphone struct {
	cfg    audioio.Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	stream  chan audioio.Frame
	pending []float32
	stop    func() bool

	framesRead  atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64
}

func newMicrophone(cfg audioio.Config, logger *slog.Logger) *Microphone {
	return &Microphone{cfg: cfg, logger: logger}
}

// Start begins accepting audio from the peer. Capture stops when ctx is done.
func (m *Microphone) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	if m.running {
		return nil
	}
	m.running = true
	m.stream = make(chan audioio.Frame, micBuffer)
	m.stop = context.AfterFunc(ctx, func() { m.Stop() })

	m.logger.Info("webrtc microphone started", "sample_rate", m.cfg.SampleRate)
	return nil
}

// push resamples decoded audio to cfg.SampleRate and emits every complete
// frame. Frames the consumer has no room for are dropped.
func (m *Microphone) push(samples []float32, sampleRate int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}

	m.pending = append(m.pending, audioio.Resample(samples, sampleRate, m.cfg.SampleRate)...)
	for len(m.pending) >= m.cfg.FrameSize {
		frame := audioio.Frame{
			Samples:    make([]float32, m.cfg.FrameSize),
			SampleRate: m.cfg.SampleRate,
		}
		copy(frame.Samples, m.pending)
		m.pending = m.pending[m.cfg.FrameSize:]

		select {
		case m.stream <- frame:
			m.framesRead.Add(1)
			m.samplesRead.Add(int64(len(frame.Samples)))
		default:
			m.overruns.Add(1)
		}
	}
	if len(m.pending) == 0 {
		m.pending = m.pending[:0:0]
	}
}

// Stop halts capture and closes the stream.
func (m *Microphone) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return nil
	}
	m.running = false
	m.pending = nil
	if m.stop != nil {
		m.stop()
		m.stop = nil
	}
	close(m.stream)
	m.logger.Info("webrtc microphone stopped")
	return nil
}

// Read reads the next frame.
func (m *Microphone) Read(ctx context.Context) (audioio.Frame, error) {
	stream := m.Stream()
	if stream == nil {
		return audioio.Frame{}, io.EOF
	}
	select {
	case frame, ok := <-stream:
		if !ok {
			return audioio.Frame{}, io.EOF
		}
		return frame, nil
	case <-ctx.Done():
		return audioio.Frame{}, ctx.Err()
	}
}

// Stream returns the frame channel.
func (m *Microphone) Stream() <-chan audioio.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stream
}

// Config returns the audio configuration.
func (m *Microphone) Config() audioio.Config { return m.cfg }

// Name returns "webrtc".
func (m *Microphone) Name() string { return string(audioio.BackendWebRTC) }

// Close stops capture for good.
func (m *Microphone) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return m.Stop()
}

// Stats returns source statistics.
func (m *Microphone) Stats() audioio.SourceStats {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()
	return audioio.SourceStats{
		FramesRead:  m.framesRead.Load(),
		SamplesRead: m.samplesRead.Load(),
		Overruns:    m.overruns.Load(),
		Running:     running,
		Backend:     m.Name(),
	}
}

var _ audioio.SourceWithStats = (*Microphone)(nil)
