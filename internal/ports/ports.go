package ports

import (
	"context"
	"io"
	"time"

	"talestrom/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// TranscriptStream is an active streaming-channel connection to the server.
// Send is fire-and-forget: frames are dropped, not queued, when the
// connection is down.
type TranscriptStream interface {
	Send(frame []byte) error
	Updates() <-chan domain.StreamMessage
	State() domain.StreamState
	Close() error
}

// StreamDialer opens streaming-channel connections.
type StreamDialer interface {
	Connect(ctx context.Context) (TranscriptStream, error)
}

// SpeechDecoder is the opaque decode(bytes) -> text collaborator.
// Decode returns domain.ErrModelUnavailable (wrapped) when the model
// cannot be reached.
type SpeechDecoder interface {
	Decode(ctx context.Context, audio []byte) (string, error)
	Available(ctx context.Context) bool
}

// Summarizer is the opaque summarize(text, instructions) -> text collaborator.
type Summarizer interface {
	Summarize(ctx context.Context, text string, instructions string) (string, error)
}

// RecordingStore persists finished recordings keyed by generated id.
// Implemented by the server's disk store and by the client's HTTP adapter.
type RecordingStore interface {
	Save(ctx context.Context, audio []byte, duration time.Duration) (string, error)
	Get(ctx context.Context, id string) ([]byte, error)
	Meta(ctx context.Context, id string) (domain.RecordingMeta, error)
	Delete(ctx context.Context, id string) error
}

// SessionCache is the client's durable side-channel for the last persisted id.
type SessionCache interface {
	Put(id string) error
	Get() (string, error)
	Clear() error
}

// EventSink emits recorder state/events to the consumer.
type EventSink interface {
	StateChanged(state domain.RecorderState, reason domain.StateReason)
	StreamStateChanged(state domain.StreamState)
	TranscriptUpdated(text string)
	RecordingSaved(id string)
	SessionError(code domain.ErrorCode, detail string)
}
