package live

import (
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
)

// Sentinel errors for the live package.
var (
	// ErrMissingCredential indicates neither an API key nor a token source was provided.
	ErrMissingCredential = errors.New("live: API key or token source is required")

	// ErrNotConnected indicates the session is closed.
	ErrNotConnected = errors.New("live: not connected")

	// ErrConnectionFailed indicates the websocket could not be established.
	ErrConnectionFailed = errors.New("live: connection failed")

	// ErrSetupFailed indicates the server did not acknowledge the session setup.
	ErrSetupFailed = errors.New("live: session setup failed")
)

// CloseError is reported through OnClose when the server closes the session
// with anything other than a normal closure.
type CloseError struct {
	// Code is the websocket close code.
	Code int

	// Reason is the close reason sent by the server.
	Reason string
}

// Error implements the error interface.
func (e *CloseError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("live: session closed (%d): %s", e.Code, e.Reason)
	}
	return fmt.Sprintf("live: session closed (%d)", e.Code)
}

// IsCloseError reports whether err is an abnormal closure.
func IsCloseError(err error) bool {
	var ce *CloseError
	return errors.As(err, &ce)
}

// closeErrorFrom maps a read error to the OnClose argument. A normal closure
// maps to nil; ok is false for errors that are not close frames.
func closeErrorFrom(err error) (closeErr error, ok bool) {
	var wsErr *websocket.CloseError
	if !errors.As(err, &wsErr) {
		return nil, false
	}
	if wsErr.Code == websocket.CloseNormalClosure {
		return nil, true
	}
	return &CloseError{Code: wsErr.Code, Reason: wsErr.Text}, true
}
