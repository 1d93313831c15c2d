package web

import (
	"time"

	"github.com/teslashibe/go-livetranslate/pkg/hub"
	"github.com/teslashibe/go-livetranslate/pkg/translator"
)

// Event types on /ws/status.
const (
	EventStatus     = "status"
	EventVolume     = "volume"
	EventConnection = "connection"
	EventError      = "error"
	EventTranscript = "transcript"
)

// StatusEvent is the first message on every status socket.
type StatusEvent struct {
	Type   string         `json:"type"`
	Status StatusResponse `json:"status"`
}

// VolumeEvent carries normalized levels in [0, 1].
type VolumeEvent struct {
	Type   string  `json:"type"`
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
}

// ConnectionEvent reports the session opening or closing.
type ConnectionEvent struct {
	Type      string `json:"type"`
	Connected bool   `json:"connected"`
}

// ErrorEvent carries a failure message.
type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// TranscriptEvent carries one transcript fragment.
type TranscriptEvent struct {
	Type      string    `json:"type"`
	Text      string    `json:"text"`
	IsUser    bool      `json:"is_user"`
	Timestamp time.Time `json:"timestamp"`
}

// Callbacks returns translator callbacks that broadcast every event on h.
func Callbacks(h *hub.Hub) translator.Callbacks {
	return translator.Callbacks{
		OnConnectionUpdate: func(connected bool) {
			h.BroadcastJSON(ConnectionEvent{Type: EventConnection, Connected: connected})
		},
		OnVolumeUpdate: func(input, output float64) {
			h.BroadcastJSON(VolumeEvent{Type: EventVolume, Input: input, Output: output})
		},
		OnTranscription: func(text string, isUser bool) {
			h.BroadcastJSON(TranscriptEvent{Type: EventTranscript, Text: text, IsUser: isUser, Timestamp: time.Now()})
		},
		OnError: func(message string) {
			h.BroadcastJSON(ErrorEvent{Type: EventError, Message: message})
		},
	}
}
