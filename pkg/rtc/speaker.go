package rtc

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v3/pkg/media"

	"github.com/teslashibe/go-livetranslate/pkg/audioio"
)

const (
	opusRate          = 48000
	opusFrameSize     = 960 // 20ms at 48kHz
	opusFrameDuration = 20 * time.Millisecond
	maxOpusPacket     = 4000
)

type sampleWriter interface {
	WriteSample(s media.Sample) error
}

// Speaker is an audioio.Sink that renders its Context in 20ms periods,
// encodes them to Opus and writes them to the browser's track.
type Speaker struct {
	cfg        audioio.Config
	logger     *slog.Logger
	ctx        *audioio.Context
	track      sampleWriter
	newEncoder func(sampleRate, channels int) (encoder, error)

	mu      sync.Mutex
	running bool
	closed  bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	framesRendered atomic.Int64
	writeErrors    atomic.Int64
}

func newSpeaker(cfg audioio.Config, track sampleWriter, logger *slog.Logger) *Speaker {
	cfg.SampleRate = opusRate
	cfg.Channels = 1
	cfg.FrameSize = opusFrameSize
	return &Speaker{
		cfg:        cfg,
		logger:     logger,
		ctx:        audioio.NewContext(opusRate),
		track:      track,
		newEncoder: newEncoder,
	}
}

// Start begins rendering. It fails if no Opus encoder is available.
func (s *Speaker) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	enc, err := s.newEncoder(opusRate, 1)
	if err != nil {
		return err
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.renderLoop(ctx, enc, s.stopCh, s.doneCh)

	s.logger.Info("webrtc speaker started")
	return nil
}

func (s *Speaker) renderLoop(ctx context.Context, enc encoder, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(opusFrameDuration)
	defer ticker.Stop()

	buf := make([]float32, opusFrameSize)
	pcm := make([]int16, opusFrameSize)
	packet := make([]byte, maxOpusPacket)

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			s.framesRendered.Add(int64(s.ctx.Render(buf)))
			for i, v := range buf {
				pcm[i] = audioio.FloatToInt16(v)
			}
			n, err := enc.Encode(pcm, packet)
			if err != nil {
				s.logger.Debug("opus encode failed", "error", err)
				continue
			}
			data := make([]byte, n)
			copy(data, packet[:n])
			if err := s.track.WriteSample(media.Sample{Data: data, Duration: opusFrameDuration}); err != nil {
				if s.writeErrors.Add(1) == 1 {
					s.logger.Warn("failed to write audio to peer", "error", err)
				}
			}
		}
	}
}

// Stop halts rendering.
func (s *Speaker) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	<-done
	s.logger.Info("webrtc speaker stopped")
	return nil
}

// Context returns the playback Context.
func (s *Speaker) Context() *audioio.Context { return s.ctx }

// Config returns the audio configuration.
func (s *Speaker) Config() audioio.Config { return s.cfg }

// Name returns "webrtc".
func (s *Speaker) Name() string { return string(audioio.BackendWebRTC) }

// Close stops rendering and closes the Context.
func (s *Speaker) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.Stop()
	s.ctx.Close()
	return err
}

// Stats returns sink statistics.
func (s *Speaker) Stats() audioio.SinkStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	return audioio.SinkStats{
		FramesRendered: s.framesRendered.Load(),
		Running:        running,
		Backend:        s.Name(),
		ActiveVoices:   s.ctx.ActiveVoices(),
	}
}

var _ audioio.SinkWithStats = (*Speaker)(nil)
