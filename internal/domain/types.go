package domain

import "time"

// RecorderState models the capture lifecycle.
type RecorderState string

const (
	RecorderStateIdle      RecorderState = "idle"
	RecorderStateRecording RecorderState = "recording"
	RecorderStatePaused    RecorderState = "paused"
	RecorderStateStopped   RecorderState = "stopped"
)

// StateReason provides a structured reason for recorder state transitions.
type StateReason string

const (
	ReasonRecordingStarted   StateReason = "recording_started"
	ReasonRecordingContinued StateReason = "recording_continued"
	ReasonRecordingPaused    StateReason = "recording_paused"
	ReasonRecordingResumed   StateReason = "recording_resumed"
	ReasonRecordingStopped   StateReason = "recording_stopped"
	ReasonRecordingCleared   StateReason = "recording_cleared"
	ReasonSessionRestored    StateReason = "session_restored"
)

// StreamState models the live transcription connection.
type StreamState string

const (
	StreamStateDisconnected StreamState = "disconnected"
	StreamStateConnecting   StreamState = "connecting"
	StreamStateConnected    StreamState = "connected"
)

// ErrorCode identifies non-fatal and fatal recorder errors.
type ErrorCode string

const (
	ErrorCodeStartup     ErrorCode = "startup"
	ErrorCodeCapture     ErrorCode = "capture"
	ErrorCodeStream      ErrorCode = "stream"
	ErrorCodeDecode      ErrorCode = "decode"
	ErrorCodePersistence ErrorCode = "persistence"
)

// Stream status notices sent alongside transcript updates.
const (
	StatusReady              = "ready"
	StatusDecoderUnavailable = "decoder_unavailable"
)

// StreamMessage is the single server-to-client message shape on the
// streaming channel. Transcript updates carry Text; notices carry Status.
type StreamMessage struct {
	Text   string `json:"text,omitempty"`
	Status string `json:"status,omitempty"`
}

// RecordingMeta describes a persisted recording without its payload.
type RecordingMeta struct {
	ID              string    `json:"id"`
	CreatedAt       time.Time `json:"created_at"`
	DurationSeconds int       `json:"duration_seconds"`
	SizeBytes       int64     `json:"size_bytes"`
}

// Status summarizes the current recorder state for callers.
type Status struct {
	State          RecorderState `json:"state"`
	Live           bool          `json:"live"`
	ElapsedSeconds int           `json:"elapsedSeconds"`
	Chunks         int           `json:"chunks"`
	PersistedID    string        `json:"persistedId,omitempty"`
}
