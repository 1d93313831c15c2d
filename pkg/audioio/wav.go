package audioio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/youpy/go-wav"
)

// WAVSource plays a 16-bit PCM WAV file as if it were a microphone. The file
// is downmixed, resampled to the configured rate and delivered in real time.
// The stream closes at end of file.
type WAVSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	streamCh chan Frame
	stopCh   chan struct{}
	doneCh   chan struct{}
	realtime bool

	framesRead  atomic.Int64
	samplesRead atomic.Int64
}

// WAVOption configures a WAVSource.
type WAVOption func(*WAVSource)

// WithoutPacing delivers frames as fast as the consumer reads them.
func WithoutPacing() WAVOption {
	return func(w *WAVSource) {
		w.realtime = false
	}
}

// NewWAVSource creates a source reading cfg.Path.
func NewWAVSource(cfg Config, logger *slog.Logger, opts ...WAVOption) *WAVSource {
	if logger == nil {
		logger = slog.Default()
	}
	w := &WAVSource{cfg: cfg, logger: logger, realtime: true}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// LoadWAV reads a whole 16-bit PCM WAV file as mono samples at its native rate.
func LoadWAV(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	r := wav.NewReader(f)
	format, err := r.Format()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read WAV format: %w", err)
	}
	if format.AudioFormat != wav.AudioFormatPCM || format.BitsPerSample != 16 {
		return nil, 0, fmt.Errorf("unsupported WAV encoding: format=%d bits=%d", format.AudioFormat, format.BitsPerSample)
	}

	data, err := io.ReadAll(r)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, 0, fmt.Errorf("failed to read WAV data: %w", err)
	}
	samples := Downmix(PCM16ToFloat(data), int(format.NumChannels))
	return samples, int(format.SampleRate), nil
}

// Start opens the file and begins delivering frames. A missing or
// unreadable file fails here.
func (w *WAVSource) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return io.ErrClosedPipe
	}
	if w.running {
		return nil
	}

	samples, rate, err := LoadWAV(w.cfg.Path)
	if err != nil {
		return fmt.Errorf("wav source: %w", err)
	}
	samples = Resample(samples, rate, w.cfg.SampleRate)

	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.streamCh = make(chan Frame, 4)

	go w.playLoop(ctx, samples, w.streamCh, w.stopCh, w.doneCh)

	w.logger.Info("wav audio source started",
		"path", w.cfg.Path,
		"file_rate", rate,
		"duration", time.Duration(float64(len(samples))/float64(w.cfg.SampleRate)*float64(time.Second)),
	)
	return nil
}

func (w *WAVSource) playLoop(ctx context.Context, samples []float32, out chan<- Frame, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer close(out)

	var tick <-chan time.Time
	if w.realtime {
		ticker := time.NewTicker(w.cfg.FrameDuration())
		defer ticker.Stop()
		tick = ticker.C
	}

	size := w.cfg.FrameSize
	for off := 0; off < len(samples); off += size {
		if tick != nil {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-tick:
			}
		}

		frame := Frame{Samples: make([]float32, size), SampleRate: w.cfg.SampleRate}
		copy(frame.Samples, samples[off:min(off+size, len(samples))])

		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case out <- frame:
			w.framesRead.Add(1)
			w.samplesRead.Add(int64(size))
		}
	}
	w.logger.Info("wav audio source reached end of file", "path", w.cfg.Path)
}

// Stop halts playback and closes the stream.
func (w *WAVSource) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	close(w.stopCh)
	done := w.doneCh
	w.mu.Unlock()

	<-done
	return nil
}

// Read reads the next frame. It returns io.EOF at end of file.
func (w *WAVSource) Read(ctx context.Context) (Frame, error) {
	stream := w.Stream()
	if stream == nil {
		return Frame{}, io.EOF
	}
	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case frame, ok := <-stream:
		if !ok {
			return Frame{}, io.EOF
		}
		return frame, nil
	}
}

// Stream returns the frame channel.
func (w *WAVSource) Stream() <-chan Frame {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.streamCh
}

// Config returns the audio configuration.
func (w *WAVSource) Config() Config { return w.cfg }

// Name returns "wav".
func (w *WAVSource) Name() string { return string(BackendWAV) }

// Close releases resources.
func (w *WAVSource) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()
	return w.Stop()
}

// Stats returns source statistics.
func (w *WAVSource) Stats() SourceStats {
	w.mu.Lock()
	running := w.running
	w.mu.Unlock()
	return SourceStats{
		FramesRead:  w.framesRead.Load(),
		SamplesRead: w.samplesRead.Load(),
		Running:     running,
		Backend:     string(BackendWAV),
	}
}

var _ SourceWithStats = (*WAVSource)(nil)
