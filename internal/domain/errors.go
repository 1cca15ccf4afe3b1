package domain

import "errors"

// Error taxonomy shared by client and server packages. Call sites wrap these
// with context and callers branch with errors.Is.
var (
	ErrPermissionDenied  = errors.New("microphone permission denied")
	ErrDeviceUnavailable = errors.New("capture device unavailable")
	ErrTransport         = errors.New("streaming transport failure")
	ErrModelUnavailable  = errors.New("speech model unavailable")
	ErrPersistence       = errors.New("recording persistence failure")
	ErrNotFound          = errors.New("recording not found")
)
