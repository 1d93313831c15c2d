//go:build cgo

package audioio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

const deviceAvailable = true

// deviceSession owns a miniaudio context and one device.
type deviceSession struct {
	mctx   *malgo.AllocatedContext
	device *malgo.Device
}

func openDevice(kind malgo.DeviceType, cfg Config, logger *slog.Logger, data malgo.DataProc) (*deviceSession, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		logger.Debug("miniaudio", "msg", msg)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init audio context: %w", err)
	}

	dc := malgo.DefaultDeviceConfig(kind)
	dc.SampleRate = uint32(cfg.SampleRate)
	dc.Alsa.NoMMap = 1
	sub := &dc.Capture
	if kind == malgo.Playback {
		sub = &dc.Playback
	}
	sub.Format = malgo.FormatS16
	sub.Channels = uint32(cfg.Channels)

	if cfg.Device != "" {
		infos, err := mctx.Devices(kind)
		if err != nil {
			freeContext(mctx)
			return nil, fmt.Errorf("failed to enumerate devices: %w", err)
		}
		found := false
		for _, info := range infos {
			if info.Name() == cfg.Device {
				sub.DeviceID = info.ID.Pointer()
				found = true
				break
			}
		}
		if !found {
			freeContext(mctx)
			return nil, fmt.Errorf("audio device %q not found", cfg.Device)
		}
	}

	device, err := malgo.InitDevice(mctx.Context, dc, malgo.DeviceCallbacks{Data: data})
	if err != nil {
		freeContext(mctx)
		return nil, fmt.Errorf("failed to open audio device: %w", err)
	}
	return &deviceSession{mctx: mctx, device: device}, nil
}

func (s *deviceSession) close() {
	s.device.Uninit()
	freeContext(s.mctx)
}

func freeContext(mctx *malgo.AllocatedContext) {
	_ = mctx.Uninit()
	mctx.Free()
}

// DeviceSource captures from a local microphone through miniaudio.
type DeviceSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	session  *deviceSession
	streamCh chan Frame
	pending  []float32

	framesRead  atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64
}

func newDeviceSource(cfg Config, logger *slog.Logger) (Source, error) {
	return &DeviceSource{cfg: cfg, logger: logger}, nil
}

// Start opens the capture device. Permission or hardware failures surface here.
func (d *DeviceSource) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return io.ErrClosedPipe
	}
	if d.running {
		return nil
	}

	d.streamCh = make(chan Frame, 8)
	d.pending = make([]float32, 0, d.cfg.FrameSize)
	stream := d.streamCh

	session, err := openDevice(malgo.Capture, d.cfg, d.logger, func(_, in []byte, _ uint32) {
		d.onCapture(stream, in)
	})
	if err != nil {
		return err
	}
	if err := session.device.Start(); err != nil {
		session.close()
		return fmt.Errorf("failed to start capture device: %w", err)
	}
	d.session = session
	d.running = true

	d.logger.Info("device audio source started",
		"sample_rate", d.cfg.SampleRate,
		"channels", d.cfg.Channels,
		"device", d.cfg.Device,
	)
	return nil
}

func (d *DeviceSource) onCapture(stream chan Frame, in []byte) {
	samples := Downmix(PCM16ToFloat(in), d.cfg.Channels)

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return
	}
	for len(samples) > 0 {
		n := min(d.cfg.FrameSize-len(d.pending), len(samples))
		d.pending = append(d.pending, samples[:n]...)
		samples = samples[n:]
		if len(d.pending) < d.cfg.FrameSize {
			break
		}
		frame := Frame{Samples: d.pending, SampleRate: d.cfg.SampleRate}
		d.pending = make([]float32, 0, d.cfg.FrameSize)
		select {
		case stream <- frame:
			d.framesRead.Add(1)
			d.samplesRead.Add(int64(len(frame.Samples)))
		default:
			d.overruns.Add(1)
		}
	}
}

// Stop releases the capture device and closes the stream.
func (d *DeviceSource) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	session := d.session
	d.session = nil
	d.mu.Unlock()

	// Uninit waits for the callback to return.
	session.close()

	d.mu.Lock()
	close(d.streamCh)
	d.mu.Unlock()

	d.logger.Info("device audio source stopped")
	return nil
}

// Read reads the next frame.
func (d *DeviceSource) Read(ctx context.Context) (Frame, error) {
	stream := d.Stream()
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
func (d *DeviceSource) Stream() <-chan Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streamCh
}

// Config returns the audio configuration.
func (d *DeviceSource) Config() Config { return d.cfg }

// Name returns "device".
func (d *DeviceSource) Name() string { return string(BackendDevice) }

// Close releases all resources.
func (d *DeviceSource) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()
	return d.Stop()
}

// Stats returns source statistics.
func (d *DeviceSource) Stats() SourceStats {
	d.mu.Lock()
	running := d.running
	d.mu.Unlock()
	return SourceStats{
		FramesRead:  d.framesRead.Load(),
		SamplesRead: d.samplesRead.Load(),
		Overruns:    d.overruns.Load(),
		Running:     running,
		Backend:     string(BackendDevice),
	}
}

// DeviceSink plays a Context through the local speakers.
type DeviceSink struct {
	cfg    Config
	logger *slog.Logger
	ctx    *Context

	mu      sync.Mutex
	running bool
	closed  bool
	session *deviceSession
	scratch []float32

	framesRendered atomic.Int64
}

func newDeviceSink(cfg Config, logger *slog.Logger) (Sink, error) {
	return &DeviceSink{cfg: cfg, logger: logger, ctx: NewContext(cfg.SampleRate)}, nil
}

// Start opens the playback device.
func (d *DeviceSink) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return io.ErrClosedPipe
	}
	if d.running {
		return nil
	}

	session, err := openDevice(malgo.Playback, d.cfg, d.logger, func(out, _ []byte, frames uint32) {
		d.onPlayback(out, int(frames))
	})
	if err != nil {
		return err
	}
	if err := session.device.Start(); err != nil {
		session.close()
		return fmt.Errorf("failed to start playback device: %w", err)
	}
	d.session = session
	d.running = true

	d.logger.Info("device audio sink started",
		"sample_rate", d.cfg.SampleRate,
		"channels", d.cfg.Channels,
		"device", d.cfg.Device,
	)
	return nil
}

// onPlayback runs on the audio thread only.
func (d *DeviceSink) onPlayback(out []byte, frames int) {
	if cap(d.scratch) < frames {
		d.scratch = make([]float32, frames)
	}
	buf := d.scratch[:frames]
	d.framesRendered.Add(int64(d.ctx.Render(buf)))
	copy(out, FloatToPCM16(Upmix(buf, d.cfg.Channels)))
}

// Stop releases the playback device. The Context clock stops.
func (d *DeviceSink) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	session := d.session
	d.session = nil
	d.mu.Unlock()

	session.close()
	d.logger.Info("device audio sink stopped")
	return nil
}

// Context returns the playback Context.
func (d *DeviceSink) Context() *Context { return d.ctx }

// Config returns the audio configuration.
func (d *DeviceSink) Config() Config { return d.cfg }

// Name returns "device".
func (d *DeviceSink) Name() string { return string(BackendDevice) }

// Close stops playback and closes the Context.
func (d *DeviceSink) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	err := d.Stop()
	d.ctx.Close()
	return err
}

// Stats returns sink statistics.
func (d *DeviceSink) Stats() SinkStats {
	d.mu.Lock()
	running := d.running
	d.mu.Unlock()
	return SinkStats{
		FramesRendered: d.framesRendered.Load(),
		Running:        running,
		Backend:        string(BackendDevice),
		ActiveVoices:   d.ctx.ActiveVoices(),
	}
}

var (
	_ SourceWithStats = (*DeviceSource)(nil)
	_ SinkWithStats   = (*DeviceSink)(nil)
)
