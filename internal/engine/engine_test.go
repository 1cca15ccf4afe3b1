package engine

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"talestrom/internal/domain"
)

type fakeSink struct {
	mu       sync.Mutex
	messages []domain.StreamMessage
}

func (s *fakeSink) Write(msg domain.StreamMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return nil
}

func (s *fakeSink) snapshot() []domain.StreamMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.StreamMessage(nil), s.messages...)
}

func (s *fakeSink) texts() []string {
	var out []string
	for _, msg := range s.snapshot() {
		if msg.Text != "" {
			out = append(out, msg.Text)
		}
	}
	return out
}

// fakeDecoder answers each decode through a hook and records inputs.
type fakeDecoder struct {
	mu        sync.Mutex
	inputs    [][]byte
	available bool
	decode    func(audio []byte) (string, error)
}

func (d *fakeDecoder) Decode(ctx context.Context, audio []byte) (string, error) {
	d.mu.Lock()
	d.inputs = append(d.inputs, append([]byte(nil), audio...))
	hook := d.decode
	d.mu.Unlock()
	return hook(audio)
}

func (d *fakeDecoder) Available(ctx context.Context) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.available
}

func (d *fakeDecoder) setDecode(hook func(audio []byte) (string, error)) {
	d.mu.Lock()
	d.decode = hook
	d.mu.Unlock()
}

func (d *fakeDecoder) setAvailable(v bool) {
	d.mu.Lock()
	d.available = v
	d.mu.Unlock()
}

func (d *fakeDecoder) inputCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.inputs)
}

func (d *fakeDecoder) lastInput() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.inputs) == 0 {
		return nil
	}
	return d.inputs[len(d.inputs)-1]
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestSingleIntervalDecodesFullBuffer(t *testing.T) {
	t.Parallel()

	decoder := &fakeDecoder{available: true, decode: func(audio []byte) (string, error) {
		return "three chunks", nil
	}}
	sink := &fakeSink{}
	e := New(decoder, Config{DecodeInterval: 30 * time.Millisecond, MinDecodeBytes: 1}, nil)

	session := e.NewSession(context.Background(), sink)
	session.Append([]byte("one-"))
	session.Append([]byte("two-"))
	session.Append([]byte("three"))

	waitFor(t, time.Second, func() bool { return len(sink.texts()) >= 1 })
	// No new frames arrive, so later ticks must not re-dispatch.
	time.Sleep(100 * time.Millisecond)

	if got := sink.texts(); len(got) != 1 || got[0] != "three chunks" {
		t.Fatalf("expected exactly one transcript update, got %v", got)
	}
	if !bytes.Equal(decoder.lastInput(), []byte("one-two-three")) {
		t.Fatalf("decode did not cover all chunks: %q", decoder.lastInput())
	}
	session.Close(context.Background())
}

func TestStaleGenerationIsDiscarded(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	decoder := &fakeDecoder{available: true}
	decoder.decode = func(audio []byte) (string, error) {
		if bytes.Equal(audio, []byte("old")) {
			<-release
			return "stale text", nil
		}
		return "fresh text", nil
	}
	sink := &fakeSink{}
	e := New(decoder, Config{DecodeInterval: 20 * time.Millisecond, MinDecodeBytes: 1}, nil)

	session := e.NewSession(context.Background(), sink)
	session.Append([]byte("old"))
	waitFor(t, time.Second, func() bool { return decoder.inputCount() >= 1 })

	session.Append([]byte("-new"))
	waitFor(t, time.Second, func() bool {
		for _, text := range sink.texts() {
			if text == "fresh text" {
				return true
			}
		}
		return false
	})

	// Let the slow first decode finish; its generation is older than the
	// applied one and must be dropped.
	close(release)
	time.Sleep(80 * time.Millisecond)

	for _, text := range sink.texts() {
		if text == "stale text" {
			t.Fatalf("stale generation overwrote newer transcript: %v", sink.texts())
		}
	}
	session.Close(context.Background())
}

func TestDegradedModeBuffersWithoutDecoding(t *testing.T) {
	t.Parallel()

	decoder := &fakeDecoder{available: false, decode: func(audio []byte) (string, error) {
		return "", domain.ErrModelUnavailable
	}}
	sink := &fakeSink{}
	e := New(decoder, Config{DecodeInterval: 20 * time.Millisecond, MinDecodeBytes: 1}, nil)

	session := e.NewSession(context.Background(), sink)
	session.Append([]byte("aaaa"))

	waitFor(t, time.Second, func() bool {
		for _, msg := range sink.snapshot() {
			if msg.Status == domain.StatusDecoderUnavailable {
				return true
			}
		}
		return false
	})
	attemptsWhenDegraded := decoder.inputCount()

	// Frames keep accumulating while no decode runs.
	session.Append([]byte("bbbb"))
	session.Append([]byte("cccc"))
	time.Sleep(100 * time.Millisecond)

	if got := session.BufferLen(); got != 12 {
		t.Fatalf("expected buffer to keep growing, got %d bytes", got)
	}
	if decoder.inputCount() != attemptsWhenDegraded {
		t.Fatalf("expected no decode attempts while degraded")
	}
	if len(sink.texts()) != 0 {
		t.Fatalf("expected no transcript updates while degraded, got %v", sink.texts())
	}

	// Availability returns: a ready notice and a decode over the full buffer.
	decoder.setDecode(func(audio []byte) (string, error) { return "recovered", nil })
	decoder.setAvailable(true)

	waitFor(t, time.Second, func() bool { return len(sink.texts()) >= 1 })
	if got := sink.texts()[0]; got != "recovered" {
		t.Fatalf("unexpected transcript after recovery: %q", got)
	}
	if !bytes.Equal(decoder.lastInput(), []byte("aaaabbbbcccc")) {
		t.Fatalf("recovery decode did not cover full buffer: %q", decoder.lastInput())
	}

	var sawReady bool
	for _, msg := range sink.snapshot() {
		if msg.Status == domain.StatusReady {
			sawReady = true
		}
	}
	if !sawReady {
		t.Fatalf("expected ready notice after recovery")
	}
	session.Close(context.Background())
}

func TestCloseFlushesChangedBuffer(t *testing.T) {
	t.Parallel()

	decoder := &fakeDecoder{available: true, decode: func(audio []byte) (string, error) {
		return "final words", nil
	}}
	sink := &fakeSink{}
	// Interval far longer than the test: only the close-flush can decode.
	e := New(decoder, Config{DecodeInterval: time.Hour, MinDecodeBytes: 1}, nil)

	session := e.NewSession(context.Background(), sink)
	session.Append([]byte("tail audio"))
	session.Close(context.Background())

	if got := sink.texts(); len(got) != 1 || got[0] != "final words" {
		t.Fatalf("expected close to flush final transcript, got %v", got)
	}
	if session.BufferLen() != 0 {
		t.Fatalf("expected buffer discarded on close")
	}

	// Appends after close are ignored.
	session.Append([]byte("late"))
	if session.BufferLen() != 0 {
		t.Fatalf("expected appends after close to be dropped")
	}
}

func TestCloseWithoutChangeSkipsDecode(t *testing.T) {
	t.Parallel()

	decoder := &fakeDecoder{available: true, decode: func(audio []byte) (string, error) {
		return "text", nil
	}}
	sink := &fakeSink{}
	e := New(decoder, Config{DecodeInterval: 25 * time.Millisecond, MinDecodeBytes: 1}, nil)

	session := e.NewSession(context.Background(), sink)
	session.Append([]byte("audio"))
	waitFor(t, time.Second, func() bool { return len(sink.texts()) >= 1 })

	before := decoder.inputCount()
	session.Close(context.Background())
	if decoder.inputCount() != before {
		t.Fatalf("expected no extra decode when buffer unchanged")
	}
}

func TestMinDecodeBytesThreshold(t *testing.T) {
	t.Parallel()

	decoder := &fakeDecoder{available: true, decode: func(audio []byte) (string, error) {
		return "ok", nil
	}}
	sink := &fakeSink{}
	e := New(decoder, Config{DecodeInterval: 15 * time.Millisecond, MinDecodeBytes: 64}, nil)

	session := e.NewSession(context.Background(), sink)
	session.Append(bytes.Repeat([]byte("x"), 32))
	time.Sleep(80 * time.Millisecond)
	if decoder.inputCount() != 0 {
		t.Fatalf("expected no decode below threshold")
	}

	session.Append(bytes.Repeat([]byte("y"), 40))
	waitFor(t, time.Second, func() bool { return decoder.inputCount() >= 1 })
	session.Close(context.Background())
}
