package audioio

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

// Errors returned by Context.
var (
	// ErrContextClosed is returned when scheduling on or allocating from a closed Context.
	ErrContextClosed = errors.New("audioio: context closed")

	// ErrInvalidBuffer is returned for buffers with no channels, no samples,
	// mismatched channel lengths or a non-positive sample rate.
	ErrInvalidBuffer = errors.New("audioio: invalid buffer")
)

// Context is a playback timeline. Its clock starts at zero and advances only
// as a Sink renders frames, so CurrentTime is the position of the speaker.
// Voices are scheduled at absolute times on that clock and mixed into the
// rendered output.
type Context struct {
	sampleRate int

	mu     sync.Mutex
	frame  int64 // frames rendered so far
	voices []*Voice
	closed bool
}

// NewContext creates a Context rendering mono audio at sampleRate.
func NewContext(sampleRate int) *Context {
	if sampleRate <= 0 {
		sampleRate = 24000
	}
	return &Context{sampleRate: sampleRate}
}

// SampleRate returns the rendering sample rate.
func (c *Context) SampleRate() int {
	return c.sampleRate
}

// CurrentTime returns the playback clock in seconds.
func (c *Context) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return float64(c.frame) / float64(c.sampleRate)
}

// Closed reports whether Close has been called.
func (c *Context) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// NewBuffer allocates a playable buffer bound to this Context.
// Each element of channels holds one channel's samples; all must be the same length.
func (c *Context) NewBuffer(channels [][]float32, sampleRate int) (*Buffer, error) {
	if c.Closed() {
		return nil, ErrContextClosed
	}
	if len(channels) == 0 || sampleRate <= 0 {
		return nil, ErrInvalidBuffer
	}
	length := len(channels[0])
	if length == 0 {
		return nil, ErrInvalidBuffer
	}
	for _, ch := range channels[1:] {
		if len(ch) != length {
			return nil, fmt.Errorf("%w: channel lengths differ", ErrInvalidBuffer)
		}
	}
	return &Buffer{ctx: c, channels: channels, sampleRate: sampleRate}, nil
}

// Schedule starts buf at time when (seconds on this Context's clock). A time
// in the past starts immediately. tap, if non-nil, receives the voice's
// samples as they are rendered. onEnded is called once, from the rendering
// goroutine, when the voice plays to completion; it is not called for voices
// that are stopped or discarded by Close.
func (c *Context) Schedule(buf *Buffer, when float64, tap *Analyzer, onEnded func()) (*Voice, error) {
	if buf == nil {
		return nil, ErrInvalidBuffer
	}
	samples := buf.mono()
	if buf.sampleRate != c.sampleRate {
		samples = Resample(samples, buf.sampleRate, c.sampleRate)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrContextClosed
	}

	now := float64(c.frame) / float64(c.sampleRate)
	if when < now {
		when = now
	}
	startFrame := int64(math.Round(when * float64(c.sampleRate)))
	if startFrame < c.frame {
		startFrame = c.frame
	}

	v := &Voice{
		ctx:        c,
		samples:    samples,
		start:      when,
		duration:   buf.Duration(),
		startFrame: startFrame,
		tap:        tap,
		onEnded:    onEnded,
	}
	c.voices = append(c.voices, v)
	return v, nil
}

// Render mixes all voices into dst and advances the clock by len(dst) frames.
// Samples are clamped to [-1, 1]. On a closed Context dst is silenced and the
// clock does not move. It returns the number of frames rendered.
func (c *Context) Render(dst []float32) int {
	for i := range dst {
		dst[i] = 0
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0
	}

	n := int64(len(dst))
	begin := c.frame
	var ended []*Voice
	kept := c.voices[:0]
	for _, v := range c.voices {
		if v.state == voiceStopped {
			continue
		}
		next := v.startFrame + int64(v.pos)
		if next >= begin+n {
			kept = append(kept, v)
			continue
		}
		offset := int(next - begin)
		if offset < 0 {
			v.pos -= offset
			offset = 0
		}
		count := min(len(dst)-offset, len(v.samples)-v.pos)
		if count > 0 {
			seg := v.samples[v.pos : v.pos+count]
			for i, s := range seg {
				dst[offset+i] += s
			}
			if v.tap != nil {
				v.tap.Write(seg)
			}
			v.pos += count
			v.state = voicePlaying
		}
		if v.pos >= len(v.samples) {
			v.state = voiceEnded
			ended = append(ended, v)
			continue
		}
		kept = append(kept, v)
	}
	for i := len(kept); i < len(c.voices); i++ {
		c.voices[i] = nil
	}
	c.voices = kept
	c.frame += n
	c.mu.Unlock()

	for i, s := range dst {
		if s > 1 {
			dst[i] = 1
		} else if s < -1 {
			dst[i] = -1
		}
	}

	for _, v := range ended {
		if v.onEnded != nil {
			v.onEnded()
		}
	}
	return int(n)
}

// ActiveVoices returns the number of voices that are scheduled or playing.
func (c *Context) ActiveVoices() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.voices)
}

// Close stops every voice and rejects further scheduling.
// It is safe to call Close multiple times.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for _, v := range c.voices {
		v.state = voiceStopped
	}
	c.voices = nil
	return nil
}

func (c *Context) stop(v *Voice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v.state == voiceEnded || v.state == voiceStopped {
		return
	}
	v.state = voiceStopped
	for i, other := range c.voices {
		if other == v {
			c.voices = append(c.voices[:i], c.voices[i+1:]...)
			break
		}
	}
}

// Buffer is decoded PCM bound to a Context, the equivalent of a WebAudio AudioBuffer.
type Buffer struct {
	ctx        *Context
	channels   [][]float32
	sampleRate int
}

// SampleRate returns the buffer's sample rate.
func (b *Buffer) SampleRate() int { return b.sampleRate }

// NumberOfChannels returns the channel count.
func (b *Buffer) NumberOfChannels() int { return len(b.channels) }

// Length returns the number of sample frames.
func (b *Buffer) Length() int { return len(b.channels[0]) }

// Duration returns the playback length in seconds.
func (b *Buffer) Duration() float64 {
	return float64(b.Length()) / float64(b.sampleRate)
}

// ChannelData returns the samples of channel ch.
func (b *Buffer) ChannelData(ch int) []float32 { return b.channels[ch] }

// Context returns the Context the buffer was allocated from.
func (b *Buffer) Context() *Context { return b.ctx }

func (b *Buffer) mono() []float32 {
	if len(b.channels) == 1 {
		return b.channels[0]
	}
	out := make([]float32, b.Length())
	scale := 1 / float32(len(b.channels))
	for _, ch := range b.channels {
		for i, s := range ch {
			out[i] += s * scale
		}
	}
	return out
}

type voiceState int

const (
	voiceScheduled voiceState = iota
	voicePlaying
	voiceEnded
	voiceStopped
)

// Voice is the handle of one scheduled buffer.
type Voice struct {
	ctx        *Context
	samples    []float32
	start      float64
	duration   float64
	startFrame int64
	pos        int
	tap        *Analyzer
	onEnded    func()
	state      voiceState // guarded by ctx.mu
}

// Start returns the scheduled start time in seconds.
func (v *Voice) Start() float64 { return v.start }

// End returns the scheduled end time in seconds.
func (v *Voice) End() float64 { return v.start + v.duration }

// Duration returns the voice length in seconds.
func (v *Voice) Duration() float64 { return v.duration }

// Stop silences the voice immediately. Stopping a voice that already ended
// or was already stopped is a no-op.
func (v *Voice) Stop() {
	v.ctx.stop(v)
}

// Done reports whether the voice ended or was stopped.
func (v *Voice) Done() bool {
	v.ctx.mu.Lock()
	defer v.ctx.mu.Unlock()
	return v.state == voiceEnded || v.state == voiceStopped
}
