package translator

import "errors"

// Sentinel errors reported through Callbacks.OnError and returned by Connect.
var (
	// ErrCredentialMissing indicates no API key or token source is configured.
	ErrCredentialMissing = errors.New("translator: API key is missing")

	// ErrMicrophoneDenied indicates the microphone could not be acquired.
	ErrMicrophoneDenied = errors.New("translator: microphone unavailable")

	// ErrSessionOpen indicates the session or its audio output could not be set up.
	ErrSessionOpen = errors.New("translator: failed to open session")

	// ErrSessionRuntime indicates the session failed after it was open.
	ErrSessionRuntime = errors.New("translator: session error")
)

// errorKind labels err for the session error metric.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrCredentialMissing):
		return "credential"
	case errors.Is(err, ErrMicrophoneDenied):
		return "microphone"
	case errors.Is(err, ErrSessionOpen):
		return "open"
	case errors.Is(err, ErrSessionRuntime):
		return "runtime"
	default:
		return "unknown"
	}
}
