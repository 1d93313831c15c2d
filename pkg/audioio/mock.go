package audioio

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// MockSource is a mock audio source for testing.
// It generates synthetic audio (silence or sine wave).
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	streamCh chan Frame
	stopCh   chan struct{}
	doneCh   chan struct{}

	// Stats
	framesRead  atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64

	// Synthetic audio generation
	phase     float64
	frequency float64 // Hz, 0 = silence
	amplitude float64 // 0.0 to 1.0
	interval  time.Duration
	startErr  error
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithSineWave configures the mock to generate a sine wave.
func WithSineWave(frequency, amplitude float64) MockSourceOption {
	return func(m *MockSource) {
		m.frequency = frequency
		m.amplitude = amplitude
	}
}

// WithFrameInterval overrides the delay between frames, which otherwise
// matches the frame duration.
func WithFrameInterval(d time.Duration) MockSourceOption {
	return func(m *MockSource) {
		m.interval = d
	}
}

// WithStartError makes Start fail with err, as a denied or missing
// microphone would.
func WithStartError(err error) MockSourceOption {
	return func(m *MockSource) {
		m.startErr = err
	}
}

// NewMockSource creates a new mock audio source.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}

	m := &MockSource{
		cfg:       cfg,
		logger:    logger,
		amplitude: 0.5,
		interval:  cfg.FrameDuration(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.interval <= 0 {
		m.interval = 10 * time.Millisecond
	}
	return m
}

// Start begins generating audio.
func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	if m.startErr != nil {
		return m.startErr
	}
	if m.running {
		return nil
	}

	m.running = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	m.streamCh = make(chan Frame, 10)

	go m.generateLoop(ctx, m.streamCh, m.stopCh, m.doneCh)

	m.logger.Info("mock audio source started",
		"sample_rate", m.cfg.SampleRate,
		"frequency", m.frequency,
	)
	return nil
}

func (m *MockSource) generateLoop(ctx context.Context, out chan<- Frame, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer close(out)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			frame := m.generateFrame()
			select {
			case out <- frame:
				m.framesRead.Add(1)
				m.samplesRead.Add(int64(len(frame.Samples)))
			default:
				m.overruns.Add(1)
				m.logger.Debug("mock source: buffer full, dropping frame")
			}
		}
	}
}

func (m *MockSource) generateFrame() Frame {
	samples := make([]float32, m.cfg.FrameSize)
	if m.frequency > 0 {
		step := 2 * math.Pi * m.frequency / float64(m.cfg.SampleRate)
		for i := range samples {
			samples[i] = float32(m.amplitude * math.Sin(m.phase))
			m.phase += step
			if m.phase >= 2*math.Pi {
				m.phase -= 2 * math.Pi
			}
		}
	}
	// else: samples are already zero (silence)

	return Frame{Samples: samples, SampleRate: m.cfg.SampleRate}
}

// Stop halts audio generation and closes the stream.
func (m *MockSource) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	close(m.stopCh)
	done := m.doneCh
	m.mu.Unlock()

	<-done
	m.logger.Info("mock audio source stopped")
	return nil
}

// Read reads the next frame.
func (m *MockSource) Read(ctx context.Context) (Frame, error) {
	stream := m.Stream()
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

// Stream returns the frame channel. It is nil before the first Start.
func (m *MockSource) Stream() <-chan Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streamCh
}

// Config returns the audio configuration.
func (m *MockSource) Config() Config {
	return m.cfg
}

// Name returns "mock".
func (m *MockSource) Name() string {
	return string(BackendMock)
}

// Close releases resources.
func (m *MockSource) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	return m.Stop()
}

// Stats returns source statistics.
func (m *MockSource) Stats() SourceStats {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()

	return SourceStats{
		FramesRead:  m.framesRead.Load(),
		SamplesRead: m.samplesRead.Load(),
		Overruns:    m.overruns.Load(),
		Running:     running,
		Backend:     string(BackendMock),
	}
}

// Ensure MockSource implements SourceWithStats.
var _ SourceWithStats = (*MockSource)(nil)

// MockSink is a mock speaker. It renders its Context on a ticker, or only
// when Advance is called if it uses a manual clock.
type MockSink struct {
	cfg    Config
	logger *slog.Logger
	ctx    *Context

	manual   bool
	startErr error

	mu      sync.Mutex
	running bool
	closed  bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	framesRendered atomic.Int64
}

// MockSinkOption configures a MockSink.
type MockSinkOption func(*MockSink)

// WithManualClock disables the render ticker. The Context clock then only
// moves when Advance is called.
func WithManualClock() MockSinkOption {
	return func(m *MockSink) {
		m.manual = true
	}
}

// WithSinkStartError makes Start fail with err.
func WithSinkStartError(err error) MockSinkOption {
	return func(m *MockSink) {
		m.startErr = err
	}
}

// NewMockSink creates a new mock audio sink with its own Context at cfg.SampleRate.
func NewMockSink(cfg Config, logger *slog.Logger, opts ...MockSinkOption) *MockSink {
	if logger == nil {
		logger = slog.Default()
	}
	m := &MockSink{
		cfg:    cfg,
		logger: logger,
		ctx:    NewContext(cfg.SampleRate),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins rendering.
func (m *MockSink) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	if m.startErr != nil {
		return m.startErr
	}
	if m.running {
		return nil
	}
	m.running = true

	if !m.manual {
		m.stopCh = make(chan struct{})
		m.doneCh = make(chan struct{})
		go m.renderLoop(ctx, m.stopCh, m.doneCh)
	}

	m.logger.Info("mock audio sink started", "sample_rate", m.cfg.SampleRate, "manual", m.manual)
	return nil
}

func (m *MockSink) renderLoop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	period := m.cfg.FrameDuration()
	if period <= 0 {
		period = 20 * time.Millisecond
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	buf := make([]float32, m.cfg.FrameSize)
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			m.framesRendered.Add(int64(m.ctx.Render(buf)))
		}
	}
}

// Advance renders d worth of audio and returns the mixed output.
func (m *MockSink) Advance(d time.Duration) []float32 {
	n := int(math.Round(d.Seconds() * float64(m.ctx.SampleRate())))
	out := make([]float32, n)
	chunk := m.cfg.FrameSize
	if chunk <= 0 {
		chunk = n
	}
	for off := 0; off < n; off += chunk {
		end := min(off+chunk, n)
		m.framesRendered.Add(int64(m.ctx.Render(out[off:end])))
	}
	return out
}

// Stop halts rendering.
func (m *MockSink) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	stop, done := m.stopCh, m.doneCh
	m.stopCh, m.doneCh = nil, nil
	m.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	m.logger.Info("mock audio sink stopped")
	return nil
}

// Context returns the playback Context.
func (m *MockSink) Context() *Context {
	return m.ctx
}

// Config returns the audio configuration.
func (m *MockSink) Config() Config {
	return m.cfg
}

// Name returns "mock".
func (m *MockSink) Name() string {
	return string(BackendMock)
}

// Close stops rendering and closes the Context.
func (m *MockSink) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	err := m.Stop()
	m.ctx.Close()
	return err
}

// Stats returns sink statistics.
func (m *MockSink) Stats() SinkStats {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()

	return SinkStats{
		FramesRendered: m.framesRendered.Load(),
		Running:        running,
		Backend:        string(BackendMock),
		ActiveVoices:   m.ctx.ActiveVoices(),
	}
}

// Ensure MockSink implements SinkWithStats.
var _ SinkWithStats = (*MockSink)(nil)
