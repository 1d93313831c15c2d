// Package capture pumps microphone frames to the remote session.
package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-livetranslate/pkg/audioio"
	"github.com/teslashibe/go-livetranslate/pkg/metrics"
	"github.com/teslashibe/go-livetranslate/pkg/pcm"
)

// DefaultQueueSize is the number of encoded frames that may wait for the sender.
const DefaultQueueSize = 8

// Sender delivers one encoded frame to the remote session.
type Sender interface {
	Send(blob pcm.Blob) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(pcm.Blob) error

// Send calls f(blob).
func (f SenderFunc) Send(blob pcm.Blob) error { return f(blob) }

// Stats counts what happened to captured frames.
type Stats struct {
	Captured   int64 `json:"captured"`
	Sent       int64 `json:"sent"`
	Dropped    int64 `json:"dropped"`
	SendErrors int64 `json:"send_errors"`
}

// Tap receives a copy of every captured frame. *audioio.Analyzer implements it.
type Tap interface {
	Write(samples []float32)
}

// Pipeline reads frames from a Source, taps them, encodes them and hands
// them to the bound Sender in arrival order. Encoding and sending run on
// separate goroutines joined by a bounded queue, so a slow sender never
// stalls capture; frames that do not fit are dropped.
type Pipeline struct {
	source  audioio.Source
	tap     Tap
	metrics *metrics.Metrics
	logger  *slog.Logger

	queue chan pcm.Blob

	mu     sync.RWMutex
	sender Sender

	runMu  sync.Mutex
	cancel context.CancelFunc
	group  *errgroup.Group

	captured   atomic.Int64
	sent       atomic.Int64
	dropped    atomic.Int64
	sendErrors atomic.Int64
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTap sets the tap that sees every captured frame.
func WithTap(tap Tap) Option {
	return func(p *Pipeline) { p.tap = tap }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithQueueSize sets the send queue capacity.
func WithQueueSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.queue = make(chan pcm.Blob, n)
		}
	}
}

// New creates a Pipeline reading from source.
func New(source audioio.Source, opts ...Option) *Pipeline {
	p := &Pipeline{
		source: source,
		queue:  make(chan pcm.Blob, DefaultQueueSize),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Bind attaches the sender that receives subsequent frames.
func (p *Pipeline) Bind(s Sender) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sender = s
}

// Unbind detaches the sender. Frames captured afterwards are dropped.
func (p *Pipeline) Unbind() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sender = nil
}

func (p *Pipeline) boundSender() Sender {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sender
}

// Start launches the pump and sender goroutines. The source must already be
// started. Calling Start on a running pipeline is a no-op.
func (p *Pipeline) Start(ctx context.Context) {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.pump(gctx) })
	g.Go(func() error { return p.sendLoop(gctx) })

	p.cancel = cancel
	p.group = g
	p.logger.Debug("capture pipeline started", "source", p.source.Name())
}

// Stop cancels both goroutines and waits for them to exit.
// It is safe to call Stop multiple times.
func (p *Pipeline) Stop() {
	p.runMu.Lock()
	cancel, g := p.cancel, p.group
	p.cancel, p.group = nil, nil
	p.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Warn("capture pipeline stopped with error", "error", err)
	}
	p.logger.Debug("capture pipeline stopped", "stats", p.Stats())
}

func (p *Pipeline) pump(ctx context.Context) error {
	stream := p.source.Stream()
	if stream == nil {
		return errors.New("capture: source not started")
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-stream:
			if !ok {
				p.logger.Info("capture source ended")
				return nil
			}
			p.handle(frame)
		}
	}
}

func (p *Pipeline) handle(frame audioio.Frame) {
	p.captured.Add(1)
	p.metrics.RecordFrameCaptured()

	if p.tap != nil {
		p.tap.Write(frame.Samples)
	}

	if p.boundSender() == nil {
		p.drop("no_session")
		return
	}

	blob := pcm.Encode(frame.Samples, frame.SampleRate)
	select {
	case p.queue <- blob:
	default:
		p.drop("queue_full")
	}
}

func (p *Pipeline) drop(reason string) {
	p.dropped.Add(1)
	p.metrics.RecordFrameDropped(reason)
}

func (p *Pipeline) sendLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case blob := <-p.queue:
			s := p.boundSender()
			if s == nil {
				p.drop("no_session")
				continue
			}
			if err := s.Send(blob); err != nil {
				p.sendErrors.Add(1)
				p.metrics.RecordSendError()
				p.logger.Warn("failed to send audio frame", "error", err)
				continue
			}
			p.sent.Add(1)
			p.metrics.RecordFrameSent()
		}
	}
}

// Stats returns frame counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Captured:   p.captured.Load(),
		Sent:       p.sent.Load(),
		Dropped:    p.dropped.Load(),
		SendErrors: p.sendErrors.Load(),
	}
}
