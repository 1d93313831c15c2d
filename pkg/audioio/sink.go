package audioio

import (
	"context"
	"io"
)

// Sink plays a Context to a speaker or other output device. The sink pulls
// rendered frames from the Context, which is what advances its clock.
type Sink interface {
	// Start begins rendering the Context to the device.
	Start(ctx context.Context) error

	// Stop halts rendering. The Context clock stops advancing.
	// It is safe to call Stop multiple times.
	Stop() error

	// Context returns the playback Context rendered by this sink.
	Context() *Context

	// Config returns the current audio configuration.
	Config() Config

	// Name returns the backend name (e.g., "device", "mock", "webrtc").
	Name() string

	// Close stops rendering and closes the Context.
	// After Close, the sink cannot be restarted.
	io.Closer
}

// SinkStats contains statistics about the audio sink.
type SinkStats struct {
	// FramesRendered is the total number of sample frames pulled from the Context.
	FramesRendered int64 `json:"frames_rendered"`

	// Running indicates if the sink is currently playing.
	Running bool `json:"running"`

	// Backend is the name of the audio backend.
	Backend string `json:"backend"`

	// ActiveVoices is the number of voices scheduled on the Context.
	ActiveVoices int `json:"active_voices"`
}

// SinkWithStats extends Sink with statistics.
type SinkWithStats interface {
	Sink
	Stats() SinkStats
}
