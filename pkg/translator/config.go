package translator

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/teslashibe/go-livetranslate/pkg/audioio"
	"github.com/teslashibe/go-livetranslate/pkg/capture"
	"github.com/teslashibe/go-livetranslate/pkg/live"
	"github.com/teslashibe/go-livetranslate/pkg/volume"
)

// Default audio parameters of a Gemini Live session.
const (
	DefaultInputSampleRate  = 16000
	DefaultOutputSampleRate = 24000
	DefaultFrameSize        = 4096
	DefaultTranscriptLimit  = 200
)

// Config holds everything a Client needs to open sessions.
type Config struct {
	// Credentials. Either is enough; TokenSource wins when both are set.
	APIKey      string
	TokenSource oauth2.TokenSource

	// Endpoint overrides the Gemini Live websocket URL.
	Endpoint string

	Model string
	Voice string

	// Input configures the microphone. Output configures the speaker and
	// the playback context.
	Input  audioio.Config
	Output audioio.Config

	// Transcription enables input and output transcripts.
	Transcription bool

	SendQueue       int           // encoded frames waiting for the session
	VolumeInterval  time.Duration // minimum time between volume updates
	FFTSize         int           // analyzer window
	TranscriptLimit int           // items kept in memory
}

// DefaultConfig returns a Config for a mono 16 kHz microphone and a 24 kHz
// speaker on the best available backend.
func DefaultConfig() Config {
	in := audioio.DefaultConfig()
	in.SampleRate = DefaultInputSampleRate
	in.FrameSize = DefaultFrameSize

	out := audioio.DefaultConfig()
	out.SampleRate = DefaultOutputSampleRate
	out.FrameSize = 480

	return Config{
		Model:           live.DefaultModel,
		Voice:           live.DefaultVoice,
		Input:           in,
		Output:          out,
		SendQueue:       capture.DefaultQueueSize,
		VolumeInterval:  volume.DefaultMinInterval,
		FFTSize:         audioio.DefaultFFTSize,
		TranscriptLimit: DefaultTranscriptLimit,
	}
}

// Validate checks the audio parameters. Credentials are checked by New.
func (c *Config) Validate() error {
	if c.Input.SampleRate <= 0 {
		return fmt.Errorf("input sample rate must be positive, got %d", c.Input.SampleRate)
	}
	if c.Output.SampleRate <= 0 {
		return fmt.Errorf("output sample rate must be positive, got %d", c.Output.SampleRate)
	}
	if c.Input.FrameSize <= 0 {
		return fmt.Errorf("input frame size must be positive, got %d", c.Input.FrameSize)
	}
	if c.Model == "" {
		return errors.New("model is required")
	}
	return nil
}

// Instruction is the system instruction for translating from source to target.
func Instruction(source, target string) string {
	return fmt.Sprintf("You are a translator. Translate spoken language from %s to %s. Translate immediately. Do not answer questions. Maintain tone.", source, target)
}
