// Package translator runs a realtime speech-to-speech translation session.
//
// A Client captures the microphone, streams it to a live session configured
// as a translator, schedules the translated audio for gapless playback and
// reports volume levels, transcripts, connection changes and errors through
// Callbacks.
package translator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-livetranslate/pkg/audioio"
	"github.com/teslashibe/go-livetranslate/pkg/capture"
	"github.com/teslashibe/go-livetranslate/pkg/live"
	"github.com/teslashibe/go-livetranslate/pkg/metrics"
	"github.com/teslashibe/go-livetranslate/pkg/pcm"
	"github.com/teslashibe/go-livetranslate/pkg/playback"
	"github.com/teslashibe/go-livetranslate/pkg/volume"
)

// Client owns at most one translation session at a time.
type Client struct {
	cfg        Config
	cb         Callbacks
	dialer     live.Dialer
	credErr    error
	newMic     audioio.SourceFactory
	newSpeaker audioio.SinkFactory
	metrics    *metrics.Metrics
	logger     *slog.Logger

	// lifecycle serializes session setup with external teardown.
	lifecycle sync.Mutex

	mu      sync.Mutex
	state   State
	lastErr string
	conn    *connection

	transcript *transcript
}

// Option configures a Client.
type Option func(*Client)

// WithMicrophone replaces the microphone factory.
func WithMicrophone(f audioio.SourceFactory) Option {
	return func(c *Client) { c.newMic = f }
}

// WithSpeaker replaces the speaker factory.
func WithSpeaker(f audioio.SinkFactory) Option {
	return func(c *Client) { c.newSpeaker = f }
}

// WithDialer replaces the Gemini Live dialer.
func WithDialer(d live.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a Client. Without a dialer option it dials Gemini Live with the
// configured credential; when there is none, ErrCredentialMissing is reported
// through OnError right away and every Connect fails with it.
func New(cfg Config, cb Callbacks, opts ...Option) *Client {
	applyDefaults(&cfg)

	c := &Client{
		cfg:        cfg,
		cb:         cb,
		newMic:     audioio.NewSource,
		newSpeaker: audioio.NewSink,
		state:      StateDisconnected,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.transcript = newTranscript(cfg.TranscriptLimit)

	if c.dialer == nil {
		g, err := live.NewGemini(cfg.APIKey,
			live.WithTokenSource(cfg.TokenSource),
			live.WithEndpoint(cfg.Endpoint),
			live.WithLogger(c.logger),
		)
		if err != nil {
			c.credErr = fmt.Errorf("%w: set GOOGLE_API_KEY or enable application default credentials", ErrCredentialMissing)
			c.lastErr = c.credErr.Error()
			c.metrics.RecordSessionError(errorKind(c.credErr))
			c.logger.Error("no credential configured", "error", c.credErr)
			c.cb.reportError(c.credErr.Error())
		} else {
			c.dialer = g
		}
	}
	return c
}

func applyDefaults(cfg *Config) {
	def := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Voice == "" {
		cfg.Voice = def.Voice
	}
	if cfg.Input.SampleRate == 0 {
		cfg.Input = def.Input
	}
	if cfg.Output.SampleRate == 0 {
		cfg.Output = def.Output
	}
	if cfg.SendQueue <= 0 {
		cfg.SendQueue = def.SendQueue
	}
	if cfg.VolumeInterval <= 0 {
		cfg.VolumeInterval = def.VolumeInterval
	}
	if cfg.FFTSize <= 0 {
		cfg.FFTSize = def.FFTSize
	}
	if cfg.TranscriptLimit <= 0 {
		cfg.TranscriptLimit = def.TranscriptLimit
	}
}

// connection holds the resources of one session. Fields set during setup are
// read by teardown only after setup finished or was abandoned.
type connection struct {
	id             uuid.UUID
	source, target string
	logger         *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	sink      audioio.Sink
	mic       audioio.Source
	inTap     *audioio.Analyzer
	outTap    *audioio.Analyzer
	scheduler *playback.Scheduler
	monitor   *volume.Monitor
	capture   *capture.Pipeline
	session   live.Session

	events      *eventQueue
	loopStarted bool
	loopDone    chan struct{}
	capturing   bool // owned by the event loop

	opened    time.Time
	stopping  atomic.Bool
	claimed   atomic.Bool
	reporting atomic.Bool
	finished  chan struct{}
}

func newConnection(parent context.Context, source, target string, logger *slog.Logger) *connection {
	id := uuid.New()
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	return &connection{
		id:       id,
		source:   source,
		target:   target,
		logger:   logger.With("session_id", id.String()),
		ctx:      ctx,
		cancel:   cancel,
		events:   newEventQueue(),
		loopDone: make(chan struct{}),
		finished: make(chan struct{}),
	}
}

func (conn *connection) abort() {
	conn.stopping.Store(true)
	conn.cancel()
}

func (conn *connection) alive() bool {
	return !conn.stopping.Load()
}

// callbacks turns session events into queued events.
func (conn *connection) callbacks() live.Callbacks {
	return live.Callbacks{
		OnOpen: func() {
			conn.events.post(event{kind: eventOpen})
		},
		OnMessage: func(msg live.Message) {
			conn.events.post(event{kind: eventMessage, msg: msg})
		},
		OnClose: func(err error) {
			conn.events.post(event{kind: eventClose, err: err})
		},
		OnError: func(err error) {
			conn.events.post(event{kind: eventError, err: err})
		},
	}
}

// Connect opens a session translating from source to target, where both are
// language display names. It is a no-op while a session is connecting or
// connected, and waits for a failed session to finish tearing down. On
// failure the error is reported through OnError, everything acquired so far
// is released and the wrapped sentinel is returned.
func (c *Client) Connect(ctx context.Context, source, target string) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	prev := c.conn
	c.mu.Unlock()
	if prev != nil && prev.claimed.Load() {
		// A failed session is still tearing down; its final callbacks must
		// not land after the new session's.
		<-prev.finished
	}

	c.mu.Lock()
	if c.state == StateConnecting || c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}
	conn := newConnection(ctx, source, target, c.logger)
	c.state = StateConnecting
	c.lastErr = ""
	c.conn = conn
	c.mu.Unlock()

	conn.logger.Info("connecting", "source", source, "target", target)

	if err := c.open(ctx, conn); err != nil {
		cause := err
		if conn.stopping.Load() {
			// Disconnect was requested while we were setting up.
			cause = nil
		}
		c.shutdown(conn, cause, false)
		return err
	}

	conn.opened = time.Now()
	c.mu.Lock()
	if c.conn == conn {
		c.state = StateConnected
	}
	c.mu.Unlock()

	c.metrics.RecordSessionOpened()
	conn.logger.Info("session connected")
	c.cb.connectionUpdate(true)

	conn.loopStarted = true
	go c.loop(conn)
	return nil
}

// open acquires the audio resources and dials the session, in that order.
func (c *Client) open(ctx context.Context, conn *connection) error {
	if c.dialer == nil {
		return c.credErr
	}
	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrSessionOpen, err)
	}

	sink, err := c.newSpeaker(c.cfg.Output, conn.logger)
	if err != nil {
		return fmt.Errorf("%w: audio output: %v", ErrSessionOpen, err)
	}
	conn.sink = sink
	if err := sink.Start(conn.ctx); err != nil {
		return fmt.Errorf("%w: audio output: %v", ErrSessionOpen, err)
	}

	conn.inTap = audioio.NewAnalyzer(c.cfg.FFTSize)
	conn.outTap = audioio.NewAnalyzer(c.cfg.FFTSize)
	conn.scheduler = playback.NewScheduler(sink.Context(),
		playback.WithTap(conn.outTap),
		playback.WithMetrics(c.metrics),
		playback.WithLogger(conn.logger),
	)
	conn.monitor = volume.New(conn.inTap, conn.outTap, c.emitVolume,
		volume.WithMinInterval(c.cfg.VolumeInterval),
		volume.WithAlive(conn.alive),
	)
	conn.monitor.Start(conn.ctx)

	mic, err := c.newMic(c.cfg.Input, conn.logger)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMicrophoneDenied, err)
	}
	conn.mic = mic
	if err := mic.Start(conn.ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrMicrophoneDenied, err)
	}
	conn.capture = capture.New(mic,
		capture.WithTap(conn.inTap),
		capture.WithMetrics(c.metrics),
		capture.WithLogger(conn.logger),
		capture.WithQueueSize(c.cfg.SendQueue),
	)

	dialCtx, cancelDial := context.WithCancel(ctx)
	defer cancelDial()
	stop := context.AfterFunc(conn.ctx, cancelDial)
	defer stop()

	session, err := c.dialer.Dial(dialCtx, live.SessionConfig{
		Model:               c.cfg.Model,
		SystemInstruction:   Instruction(conn.source, conn.target),
		Voice:               c.cfg.Voice,
		InputTranscription:  c.cfg.Transcription,
		OutputTranscription: c.cfg.Transcription,
	}, conn.callbacks())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSessionOpen, err)
	}
	conn.session = session

	if err := conn.ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrSessionOpen, err)
	}
	return nil
}

func (c *Client) emitVolume(s volume.Snapshot) {
	c.metrics.SetLevels(s.Input, s.Output)
	c.cb.volumeUpdate(s.Input, s.Output)
}

// loop drains the event queue in order until the queue is closed or the
// session ends.
func (c *Client) loop(conn *connection) {
	defer close(conn.loopDone)

	for {
		e, ok := conn.events.next()
		if !ok || !conn.alive() {
			return
		}
		if e.kind != eventMessage {
			conn.logger.Debug("session event", "kind", e.kind.String())
		}

		switch e.kind {
		case eventOpen:
			c.handleOpen(conn)
		case eventMessage:
			c.handleMessage(conn, e.msg)
		case eventClose:
			var cause error
			if e.err != nil {
				cause = fmt.Errorf("%w: %v", ErrSessionRuntime, e.err)
			} else {
				conn.logger.Info("session closed by server")
			}
			c.shutdown(conn, cause, true)
			return
		case eventError:
			c.shutdown(conn, fmt.Errorf("%w: %v", ErrSessionRuntime, e.err), true)
			return
		default:
			conn.logger.Warn("ignoring session event", "kind", e.kind.String())
		}
	}
}

func (c *Client) handleOpen(conn *connection) {
	if conn.capturing {
		return
	}
	conn.capturing = true
	conn.capture.Bind(conn.session)
	conn.capture.Start(conn.ctx)
	conn.logger.Debug("capture started")
}

func (c *Client) handleMessage(conn *connection, msg live.Message) {
	for _, blob := range msg.Audio {
		if err := c.play(conn, blob); err != nil {
			c.metrics.RecordDecodeError()
			conn.logger.Warn("failed to decode audio", "error", err)
		}
	}

	if msg.Interrupted {
		n := conn.scheduler.Flush()
		c.metrics.RecordInterruption(n)
		conn.logger.Debug("interrupted", "stopped", n)
	}

	if !c.cfg.Transcription {
		return
	}
	if msg.InputTranscript != "" {
		c.transcript.add(msg.InputTranscript, true, time.Now())
		c.cb.transcription(msg.InputTranscript, true)
	}
	if msg.OutputTranscript != "" {
		c.transcript.add(msg.OutputTranscript, false, time.Now())
		c.cb.transcription(msg.OutputTranscript, false)
	}
}

func (c *Client) play(conn *connection, blob pcm.Blob) error {
	raw, err := pcm.Decode(blob.Data)
	if err != nil {
		return err
	}
	rate := pcm.ParseRate(blob.MIMEType)
	if rate == 0 {
		rate = DefaultOutputSampleRate
	}
	buf, err := pcm.DecodeAudioData(raw, conn.sink.Context(), rate, 1)
	if err != nil {
		return err
	}
	_, err = conn.scheduler.Enqueue(buf)
	return err
}

// Disconnect ends the current session. It is idempotent and never fails;
// once it returns no further callback fires for that session.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}

	conn.abort()
	if conn.claimed.Load() {
		if !conn.reporting.Load() {
			<-conn.finished
		}
		return
	}

	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	c.shutdown(conn, nil, false)
}

// shutdown tears conn down exactly once. cause, when set, is reported first.
// fromLoop is set when called by the event loop itself.
func (c *Client) shutdown(conn *connection, cause error, fromLoop bool) {
	if !conn.claimed.CompareAndSwap(false, true) {
		if !fromLoop && !conn.reporting.Load() {
			<-conn.finished
		}
		return
	}
	defer close(conn.finished)

	conn.abort()
	if cause != nil {
		c.report(conn, cause)
	}

	if conn.capture != nil {
		conn.capture.Stop()
		conn.capture.Unbind()
		stats := conn.capture.Stats()
		conn.logger.Debug("capture stopped",
			"captured", stats.Captured,
			"sent", stats.Sent,
			"dropped", stats.Dropped,
		)
	}
	if conn.session != nil {
		if err := conn.session.Close(); err != nil {
			conn.logger.Debug("session close failed", "error", err)
		}
	}
	conn.events.close()
	if conn.loopStarted && !fromLoop {
		<-conn.loopDone
	}
	if conn.mic != nil {
		if err := conn.mic.Stop(); err != nil {
			conn.logger.Debug("failed to stop microphone", "error", err)
		}
		if err := conn.mic.Close(); err != nil {
			conn.logger.Warn("failed to release microphone", "error", err)
		}
	}
	if conn.sink != nil {
		if err := conn.sink.Close(); err != nil {
			conn.logger.Warn("failed to close audio output", "error", err)
		}
	}
	if conn.monitor != nil {
		conn.monitor.Stop()
	}
	if conn.scheduler != nil {
		conn.scheduler.Reset()
	}

	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.state = StateDisconnected
	}
	c.mu.Unlock()

	if !conn.opened.IsZero() {
		c.metrics.RecordSessionClosed(time.Since(conn.opened).Seconds())
	}
	conn.logger.Info("disconnected")

	conn.reporting.Store(true)
	c.cb.connectionUpdate(false)
	c.cb.volumeUpdate(0, 0)
	c.metrics.SetLevels(0, 0)
	conn.reporting.Store(false)
}

// report records err as the last error and surfaces it through OnError.
func (c *Client) report(conn *connection, err error) {
	c.mu.Lock()
	if c.conn == conn {
		c.state = StateError
	}
	c.lastErr = err.Error()
	c.mu.Unlock()

	c.metrics.RecordSessionError(errorKind(err))
	conn.logger.Error("session failed", "error", err)

	conn.reporting.Store(true)
	c.cb.reportError(err.Error())
	conn.reporting.Store(false)
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError returns the most recent failure message, kept until the next Connect.
func (c *Client) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Status returns the current state together with the session details.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{State: c.state, LastError: c.lastErr}
	if c.conn != nil {
		st.SessionID = c.conn.id.String()
		st.Source = c.conn.source
		st.Target = c.conn.target
	}
	return st
}

// Transcript returns the retained transcription items, oldest first.
func (c *Client) Transcript() []TranscriptionItem {
	return c.transcript.list()
}

// ClearTranscript drops all retained transcription items.
func (c *Client) ClearTranscript() {
	c.transcript.clear()
}

// TranscriptionEnabled reports whether sessions request transcripts.
func (c *Client) TranscriptionEnabled() bool {
	return c.cfg.Transcription
}
