// Package playback queues decoded audio segments for gapless playback.
package playback

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-livetranslate/pkg/audioio"
	"github.com/teslashibe/go-livetranslate/pkg/metrics"
)

// ErrNoContext is returned by Enqueue on a Scheduler without a Context.
var ErrNoContext = errors.New("playback: no output context")

// Scheduler places segments back-to-back on a Context timeline. Each segment
// starts where the previous one ends, or now if the timeline has fallen
// behind the playback clock.
type Scheduler struct {
	ctx     *audioio.Context
	tap     *audioio.Analyzer
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu        sync.Mutex
	nextStart float64
	active    map[*audioio.Voice]struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTap routes every scheduled segment through tap.
func WithTap(tap *audioio.Analyzer) Option {
	return func(s *Scheduler) { s.tap = tap }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// NewScheduler creates a Scheduler on ctx.
func NewScheduler(ctx *audioio.Context, opts ...Option) *Scheduler {
	s := &Scheduler{
		ctx:    ctx,
		active: make(map[*audioio.Voice]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Enqueue schedules buf at max(next start, now) and advances the timeline by
// its duration. The voice leaves the active set when it finishes.
func (s *Scheduler) Enqueue(buf *audioio.Buffer) (*audioio.Voice, error) {
	if s.ctx == nil {
		return nil, ErrNoContext
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.ctx.CurrentTime()
	if s.nextStart < now {
		s.nextStart = now
	}
	start := s.nextStart

	var voice *audioio.Voice
	voice, err := s.ctx.Schedule(buf, start, s.tap, func() { s.finished(&voice) })
	if err != nil {
		return nil, err
	}
	s.nextStart += buf.Duration()
	s.active[voice] = struct{}{}

	s.metrics.RecordSegmentScheduled(buf.Duration(), start-now)
	s.logger.Debug("segment scheduled",
		"start", start,
		"duration", buf.Duration(),
		"next_start", s.nextStart,
		"active", len(s.active),
	)
	return voice, nil
}

func (s *Scheduler) finished(v **audioio.Voice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, *v)
}

// Flush stops every active voice, empties the set and resets the timeline so
// the next segment starts immediately. It returns the number of voices stopped.
func (s *Scheduler) Flush() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.active)
	for v := range s.active {
		v.Stop()
	}
	clear(s.active)
	s.nextStart = 0

	if n > 0 {
		s.logger.Debug("playback flushed", "stopped", n)
	}
	return n
}

// Reset forgets all voices and the timeline without stopping anything.
// Use it once the Context itself has been closed.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.active)
	s.nextStart = 0
}

// Active returns the number of scheduled or playing voices.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}
