// Package volume derives live input/output levels from analyzer taps.
package volume

import (
	"context"
	"sync"
	"time"
)

// Default timing of a Monitor.
const (
	DefaultFrameInterval = 16 * time.Millisecond
	DefaultMinInterval   = 50 * time.Millisecond
)

// Snapshot is one pair of normalized levels in [0, 1].
type Snapshot struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
}

// Tap is the analyzer surface the monitor reads. *audioio.Analyzer implements it.
type Tap interface {
	ByteFrequencyData(dst []uint8) []uint8
	FrequencyBinCount() int
}

// Level returns the mean of bins scaled to [0, 1]. Empty input is 0.
func Level(bins []uint8) float64 {
	if len(bins) == 0 {
		return 0
	}
	var sum int
	for _, b := range bins {
		sum += int(b)
	}
	return float64(sum) / float64(len(bins)) / 255
}

// Monitor polls two taps on a fixed tick and emits throttled snapshots.
// A nil tap reads as 0. The monitor stops on its own when Alive reports false.
type Monitor struct {
	input, output Tap
	emit          func(Snapshot)

	frameInterval time.Duration
	minInterval   time.Duration
	alive         func() bool
	now           func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	// owned by the loop goroutine
	last time.Time
	bins []uint8
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithFrameInterval sets the polling tick.
func WithFrameInterval(d time.Duration) Option {
	return func(m *Monitor) { m.frameInterval = d }
}

// WithMinInterval sets the minimum time between two emissions.
func WithMinInterval(d time.Duration) Option {
	return func(m *Monitor) { m.minInterval = d }
}

// WithAlive sets the liveness check run on every tick.
func WithAlive(fn func() bool) Option {
	return func(m *Monitor) { m.alive = fn }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// New creates a Monitor that calls emit with each snapshot.
func New(input, output Tap, emit func(Snapshot), opts ...Option) *Monitor {
	m := &Monitor{
		input:         input,
		output:        output,
		emit:          emit,
		frameInterval: DefaultFrameInterval,
		minInterval:   DefaultMinInterval,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.frameInterval <= 0 {
		m.frameInterval = DefaultFrameInterval
	}
	if m.minInterval < m.frameInterval {
		m.minInterval = m.frameInterval
	}
	return m
}

// Start launches the polling loop. Calling Start on a running monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.loop(ctx, m.done)
}

// Stop cancels the loop and waits for it to exit. It must not be called
// from the emit function.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !m.step(m.now()) {
				return
			}
		}
	}
}

// step runs one tick. It returns false when the monitor should terminate.
func (m *Monitor) step(now time.Time) bool {
	if m.alive != nil && !m.alive() {
		return false
	}
	if !m.last.IsZero() && now.Sub(m.last) < m.minInterval {
		return true
	}
	m.last = now

	snap := Snapshot{Input: m.read(m.input), Output: m.read(m.output)}
	if m.emit != nil {
		m.emit(snap)
	}
	return true
}

func (m *Monitor) read(tap Tap) float64 {
	if tap == nil {
		return 0
	}
	m.bins = tap.ByteFrequencyData(m.bins)
	return Level(m.bins)
}
