package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"talestrom/internal/domain"
	"talestrom/internal/ports"
)

var ErrInvalidTransition = errors.New("invalid recorder state transition")

// Config controls capture and save behavior.
type Config struct {
	Audio       ports.AudioConfig
	ChunkSize   int
	SaveTimeout time.Duration
}

// Recorder owns the single recording session per client: the microphone
// resource, the chunk sequence, the elapsed clock and the streaming channel.
//
// State machine: Idle -> Recording -> {Paused <-> Recording} -> Stopped ->
// {Idle (clear) | Recording (continue, appending)}.
type Recorder struct {
	capture ports.AudioCapture
	dialer  ports.StreamDialer
	store   ports.RecordingStore
	cache   ports.SessionCache
	events  ports.EventSink
	cfg     Config

	mu          sync.Mutex
	state       domain.RecorderState
	live        bool
	chunks      [][]byte
	accumulated time.Duration
	resumedAt   time.Time
	persistedID string
	run         *captureRun

	saveWG sync.WaitGroup

	// clock is injectable for testing; defaults to time.Now.
	clock func() time.Time
}

type captureRun struct {
	cancel     context.CancelFunc
	audio      ports.AudioSession
	stream     ports.TranscriptStream
	pumpDone   chan struct{}
	eventsDone chan struct{}
}

func NewRecorder(
	capture ports.AudioCapture,
	dialer ports.StreamDialer,
	store ports.RecordingStore,
	cache ports.SessionCache,
	events ports.EventSink,
	cfg Config,
) *Recorder {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = 15 * time.Second
	}
	return &Recorder{
		capture: capture,
		dialer:  dialer,
		store:   store,
		cache:   cache,
		events:  events,
		cfg:     cfg,
		state:   domain.RecorderStateIdle,
		clock:   time.Now,
	}
}

// Start acquires the capture device and begins (or continues) recording.
// Device acquisition failures are terminal for the call: no state change
// occurs and the error carries the capture taxonomy.
func (r *Recorder) Start(ctx context.Context, live bool, continuing bool) error {
	r.mu.Lock()
	switch {
	case continuing && r.state == domain.RecorderStateStopped:
		// liveMode is fixed once a session starts recording; a continued
		// session keeps its original setting.
		live = r.live
	case !continuing && r.state == domain.RecorderStateIdle:
	default:
		state := r.state
		r.mu.Unlock()
		return fmt.Errorf("%w: start(continuing=%t) from %s", ErrInvalidTransition, continuing, state)
	}
	r.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	audioSession, err := r.capture.Start(runCtx, r.cfg.Audio)
	if err != nil {
		cancel()
		return err
	}

	var transcriptStream ports.TranscriptStream
	if live {
		transcriptStream, err = r.dialer.Connect(runCtx)
		if err != nil {
			// Live transcription is advisory. The recording proceeds; the
			// transcript simply stays silent.
			r.events.SessionError(domain.ErrorCodeStream, err.Error())
			r.events.StreamStateChanged(domain.StreamStateDisconnected)
			transcriptStream = nil
		} else {
			r.events.StreamStateChanged(domain.StreamStateConnected)
		}
	}

	run := &captureRun{
		cancel:     cancel,
		audio:      audioSession,
		stream:     transcriptStream,
		pumpDone:   make(chan struct{}),
		eventsDone: make(chan struct{}),
	}

	r.mu.Lock()
	r.state = domain.RecorderStateRecording
	r.live = live
	r.resumedAt = r.clock()
	r.run = run
	r.mu.Unlock()

	go r.pump(run)
	go r.consumeUpdates(run)

	reason := domain.ReasonRecordingStarted
	if continuing {
		reason = domain.ReasonRecordingContinued
	}
	r.events.StateChanged(domain.RecorderStateRecording, reason)
	return nil
}

// pump moves captured audio into the chunk sequence and, in live mode,
// forwards each chunk to the streaming channel. Chunk production and
// forwarding happen on this one goroutine, which is what keeps chunk order
// and frame order identical.
func (r *Recorder) pump(run *captureRun) {
	defer close(run.pumpDone)

	buf := make([]byte, r.cfg.ChunkSize)
	for {
		n, err := run.audio.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)

			forward := false
			r.mu.Lock()
			if r.run == run && r.state == domain.RecorderStateRecording {
				r.chunks = append(r.chunks, chunk)
				forward = r.live
			}
			r.mu.Unlock()

			if forward && run.stream != nil {
				// Fire-and-forget; the channel drops frames when down.
				_ = run.stream.Send(chunk)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				r.events.SessionError(domain.ErrorCodeCapture, fmt.Sprintf("audio capture error: %v", err))
			}
			return
		}
	}
}

func (r *Recorder) consumeUpdates(run *captureRun) {
	defer close(run.eventsDone)

	if run.stream == nil {
		return
	}
	for msg := range run.stream.Updates() {
		switch {
		case msg.Text != "":
			r.events.TranscriptUpdated(msg.Text)
		case msg.Status == domain.StatusDecoderUnavailable:
			r.events.SessionError(domain.ErrorCodeDecode, "transcription degraded: speech model unavailable")
		}
	}
}

// Pause stops the elapsed clock and chunk accumulation. The device stays
// acquired so Resume is immediate.
func (r *Recorder) Pause() error {
	r.mu.Lock()
	if r.state != domain.RecorderStateRecording {
		state := r.state
		r.mu.Unlock()
		return fmt.Errorf("%w: pause from %s", ErrInvalidTransition, state)
	}
	r.accumulated += r.clock().Sub(r.resumedAt)
	r.state = domain.RecorderStatePaused
	r.mu.Unlock()

	r.events.StateChanged(domain.RecorderStatePaused, domain.ReasonRecordingPaused)
	return nil
}

// Resume restarts the elapsed clock where Pause left it.
func (r *Recorder) Resume() error {
	r.mu.Lock()
	if r.state != domain.RecorderStatePaused {
		state := r.state
		r.mu.Unlock()
		return fmt.Errorf("%w: resume from %s", ErrInvalidTransition, state)
	}
	r.state = domain.RecorderStateRecording
	r.resumedAt = r.clock()
	r.mu.Unlock()

	r.events.StateChanged(domain.RecorderStateRecording, domain.ReasonRecordingResumed)
	return nil
}

// Stop releases the capture device, assembles the final blob and triggers an
// asynchronous save. The device is released on this path no matter what else
// fails.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	if r.state != domain.RecorderStateRecording && r.state != domain.RecorderStatePaused {
		state := r.state
		r.mu.Unlock()
		return fmt.Errorf("%w: stop from %s", ErrInvalidTransition, state)
	}
	if r.state == domain.RecorderStateRecording {
		r.accumulated += r.clock().Sub(r.resumedAt)
	}
	r.state = domain.RecorderStateStopped
	run := r.run
	r.run = nil
	duration := r.accumulated
	blob := concatChunks(r.chunks)
	r.mu.Unlock()

	if run != nil {
		if err := run.audio.Stop(); err != nil {
			r.events.SessionError(domain.ErrorCodeCapture, fmt.Sprintf("failed to stop audio capture cleanly: %v", err))
		}
		<-run.pumpDone
		if run.stream != nil {
			// Close applies the streaming grace delay so the server can run
			// its final decode before the channel goes away.
			_ = run.stream.Close()
			r.events.StreamStateChanged(domain.StreamStateDisconnected)
		}
		<-run.eventsDone
		run.cancel()
	}

	r.events.StateChanged(domain.RecorderStateStopped, domain.ReasonRecordingStopped)

	r.saveWG.Add(1)
	go r.save(blob, duration)
	return nil
}

// save persists the assembled blob. Persistence failures are non-fatal: the
// in-memory recording stays available for a manual retry.
func (r *Recorder) save(blob []byte, duration time.Duration) {
	defer r.saveWG.Done()

	if len(blob) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.SaveTimeout)
	defer cancel()

	id, err := r.store.Save(ctx, blob, duration)
	if err != nil {
		r.events.SessionError(domain.ErrorCodePersistence, fmt.Sprintf("recording not saved, still held in memory: %v", err))
		return
	}

	r.mu.Lock()
	previous := r.persistedID
	r.persistedID = id
	r.mu.Unlock()

	if err := r.cache.Put(id); err != nil {
		r.events.SessionError(domain.ErrorCodePersistence, fmt.Sprintf("saved as %s but could not cache id: %v", id, err))
	}
	r.events.RecordingSaved(id)

	// A new save supersedes the previous artifact; delete it instead of
	// letting storage accumulate orphans. Absence is fine.
	if previous != "" && previous != id {
		if err := r.store.Delete(ctx, previous); err != nil && !errors.Is(err, domain.ErrNotFound) {
			r.events.SessionError(domain.ErrorCodePersistence, fmt.Sprintf("could not delete superseded recording %s: %v", previous, err))
		}
	}
}

// Clear discards the in-memory session and the cached persisted reference.
func (r *Recorder) Clear() error {
	r.mu.Lock()
	if r.state != domain.RecorderStateStopped && r.state != domain.RecorderStateIdle {
		state := r.state
		r.mu.Unlock()
		return fmt.Errorf("%w: clear from %s", ErrInvalidTransition, state)
	}
	r.state = domain.RecorderStateIdle
	r.chunks = nil
	r.accumulated = 0
	r.persistedID = ""
	r.live = false
	r.mu.Unlock()

	if err := r.cache.Clear(); err != nil {
		r.events.SessionError(domain.ErrorCodePersistence, fmt.Sprintf("could not clear cached id: %v", err))
	}
	r.events.StateChanged(domain.RecorderStateIdle, domain.ReasonRecordingCleared)
	return nil
}

// Restore reconstructs a Stopped session from the cached persisted id, if
// any. A stale cache entry (artifact gone) is cleared silently; recovery is
// best effort by design.
func (r *Recorder) Restore(ctx context.Context) error {
	r.mu.Lock()
	if r.state != domain.RecorderStateIdle {
		state := r.state
		r.mu.Unlock()
		return fmt.Errorf("%w: restore from %s", ErrInvalidTransition, state)
	}
	r.mu.Unlock()

	id, err := r.cache.Get()
	if err != nil || id == "" {
		return err
	}

	blob, err := r.store.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		_ = r.cache.Clear()
		return nil
	}
	if err != nil {
		return err
	}

	var duration time.Duration
	if meta, metaErr := r.store.Meta(ctx, id); metaErr == nil {
		duration = time.Duration(meta.DurationSeconds) * time.Second
	}

	r.mu.Lock()
	r.state = domain.RecorderStateStopped
	r.chunks = [][]byte{blob}
	r.accumulated = duration
	r.persistedID = id
	r.mu.Unlock()

	r.events.StateChanged(domain.RecorderStateStopped, domain.ReasonSessionRestored)
	return nil
}

// Blob returns the byte-wise concatenation of chunks in capture order.
func (r *Recorder) Blob() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return concatChunks(r.chunks)
}

// ElapsedSeconds advances only while recording; paused time never counts.
func (r *Recorder) ElapsedSeconds() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int(r.elapsedLocked() / time.Second)
}

func (r *Recorder) elapsedLocked() time.Duration {
	elapsed := r.accumulated
	if r.state == domain.RecorderStateRecording {
		elapsed += r.clock().Sub(r.resumedAt)
	}
	return elapsed
}

// Status reports the current session snapshot.
func (r *Recorder) Status() domain.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.Status{
		State:          r.state,
		Live:           r.live,
		ElapsedSeconds: int(r.elapsedLocked() / time.Second),
		Chunks:         len(r.chunks),
		PersistedID:    r.persistedID,
	}
}

// WaitForSave blocks until any in-flight asynchronous save settles.
func (r *Recorder) WaitForSave() {
	r.saveWG.Wait()
}

func concatChunks(chunks [][]byte) []byte {
	total := 0
	for _, chunk := range chunks {
		total += len(chunk)
	}
	blob := make([]byte, 0, total)
	for _, chunk := range chunks {
		blob = append(blob, chunk...)
	}
	return blob
}
