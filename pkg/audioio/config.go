// Package audioio provides the audio capabilities the translator is built on:
// microphone sources, speaker sinks, the playback Context with its monotonic
// audio clock, and analyzer taps for volume metering.
//
// This package supports multiple backends:
//   - Device (miniaudio via malgo) - local microphone and speakers
//   - WAV - a file played back as if it were a microphone
//   - Mock - CI/Testing without hardware
//   - WebRTC - a browser peer (see package rtc)
//
// The backend is selected automatically based on build tags and platform,
// or can be explicitly specified via configuration.
package audioio

import (
	"fmt"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendAuto selects the device backend when available, mock otherwise.
	BackendAuto Backend = "auto"
	// BackendDevice uses the local sound card through miniaudio.
	BackendDevice Backend = "device"
	// BackendWAV reads capture audio from a WAV file.
	BackendWAV Backend = "wav"
	// BackendMock uses a mock implementation for testing.
	BackendMock Backend = "mock"
	// BackendWebRTC uses a browser's microphone and speaker. It is provided
	// by the rtc package; NewSource and NewSink reject it.
	BackendWebRTC Backend = "webrtc"
)

// Config holds audio configuration.
type Config struct {
	// Backend specifies which audio backend to use.
	// Default: "auto"
	Backend Backend `yaml:"backend" json:"backend"`

	// SampleRate is the audio sample rate in Hz.
	// Default: 16000 (Gemini Live input rate)
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// Channels is the number of device channels. Frames are always mono.
	// Default: 1 (mono)
	Channels int `yaml:"channels" json:"channels"`

	// FrameSize is the number of samples delivered per capture frame,
	// or rendered per sink period.
	// Default: 4096 (256ms at 16kHz)
	FrameSize int `yaml:"frame_size" json:"frame_size"`

	// Device is the platform-specific device identifier.
	// Empty selects the system default. Ignored by mock and wav.
	Device string `yaml:"device" json:"device"`

	// Path is the input file for the wav backend.
	Path string `yaml:"path" json:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:    BackendAuto,
		SampleRate: 16000,
		Channels:   1,
		FrameSize:  4096,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.FrameSize <= 0 {
		return fmt.Errorf("frame_size must be positive, got %d", c.FrameSize)
	}
	if c.Backend == BackendWAV && c.Path == "" {
		return fmt.Errorf("wav backend requires a path")
	}
	return nil
}

// FrameDuration returns the wall-clock length of one frame.
func (c *Config) FrameDuration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.FrameSize) * time.Second / time.Duration(c.SampleRate)
}

// FrameBytes returns the size of a device frame in bytes (int16 samples).
func (c *Config) FrameBytes() int {
	return c.FrameSize * c.Channels * 2
}
