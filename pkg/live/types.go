// Package live implements the bidirectional remote translation session.
//
// A Dialer opens a Session; the session delivers server events through
// Callbacks and accepts encoded microphone audio through Send. Gemini talks
// to the Gemini Live websocket API; Mock is a scriptable in-memory session
// for tests.
package live

import (
	"context"

	"github.com/teslashibe/go-livetranslate/pkg/pcm"
)

// SessionConfig configures a new session.
type SessionConfig struct {
	// Model is the model resource name, e.g. "models/gemini-2.0-flash-exp".
	Model string

	// SystemInstruction is sent as the session's system prompt.
	SystemInstruction string

	// Voice is the prebuilt output voice name.
	Voice string

	// InputTranscription asks the server to transcribe the microphone audio.
	InputTranscription bool

	// OutputTranscription asks the server to transcribe its own audio.
	OutputTranscription bool
}

// Message is one server event. Any combination of fields may be set.
type Message struct {
	// Audio holds the inline audio parts of a model turn, base64 encoded.
	Audio []pcm.Blob

	// Interrupted is set when the server cut off its own output.
	Interrupted bool

	// TurnComplete is set when the model finished its turn.
	TurnComplete bool

	// InputTranscript is a transcription fragment of the user's speech.
	InputTranscript string

	// OutputTranscript is a transcription fragment of the model's speech.
	OutputTranscript string
}

// Callbacks receive session events. They run on the session's reader
// goroutine and must not block or call Session.Close.
type Callbacks struct {
	// OnOpen fires once when the session is ready for audio.
	OnOpen func()

	// OnMessage fires for every server event.
	OnMessage func(Message)

	// OnClose fires when the server closes the session. err is nil for a
	// normal closure and a *CloseError otherwise.
	OnClose func(err error)

	// OnError fires when the connection fails.
	OnError func(err error)
}

// Session is an open remote session.
type Session interface {
	// Send transmits one encoded audio frame.
	Send(blob pcm.Blob) error

	// Close ends the session. No callbacks fire after Close returns.
	// It is safe to call Close multiple times.
	Close() error
}

// Dialer opens sessions.
type Dialer interface {
	Dial(ctx context.Context, cfg SessionConfig, cb Callbacks) (Session, error)
}
