package translator

import (
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a Client.
type State string

const (
	StateDisconnected State = "DISCONNECTED"
	StateConnecting   State = "CONNECTING"
	StateConnected    State = "CONNECTED"
	StateError        State = "ERROR"
)

// Status is a point-in-time view of a Client.
type Status struct {
	State     State  `json:"state"`
	LastError string `json:"last_error,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Source    string `json:"source,omitempty"`
	Target    string `json:"target,omitempty"`
}

// Connected reports whether the session is open.
func (s Status) Connected() bool {
	return s.State == StateConnected
}

// TranscriptionItem is one transcribed fragment of either side of the
// conversation.
type TranscriptionItem struct {
	ID        uuid.UUID `json:"id"`
	Text      string    `json:"text"`
	IsUser    bool      `json:"is_user"`
	Timestamp time.Time `json:"timestamp"`
}

// Callbacks receive Client events. None of them may call Connect
// synchronously. Disconnect is allowed only from OnError and
// OnConnectionUpdate(false) while a teardown is reporting.
type Callbacks struct {
	// OnConnectionUpdate fires with true once connected and false after teardown.
	OnConnectionUpdate func(connected bool)

	// OnVolumeUpdate fires with normalized input and output levels.
	OnVolumeUpdate func(input, output float64)

	// OnTranscription fires for each transcript fragment when transcription
	// is enabled.
	OnTranscription func(text string, isUser bool)

	// OnError fires with a human readable message for every failure.
	OnError func(message string)
}

func (c Callbacks) connectionUpdate(connected bool) {
	if c.OnConnectionUpdate != nil {
		c.OnConnectionUpdate(connected)
	}
}

func (c Callbacks) volumeUpdate(input, output float64) {
	if c.OnVolumeUpdate != nil {
		c.OnVolumeUpdate(input, output)
	}
}

func (c Callbacks) transcription(text string, isUser bool) {
	if c.OnTranscription != nil {
		c.OnTranscription(text, isUser)
	}
}

func (c Callbacks) reportError(message string) {
	if c.OnError != nil {
		c.OnError(message)
	}
}
