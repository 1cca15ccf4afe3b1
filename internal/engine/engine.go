package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"talestrom/internal/domain"
	"talestrom/internal/ports"
)

// Config controls the per-connection decode scheduler.
type Config struct {
	// DecodeInterval is the cadence of full-buffer re-decodes. Smaller values
	// trade compute cost for perceived latency.
	DecodeInterval time.Duration
	// MinDecodeBytes suppresses decoding until the buffer is large enough to
	// carry a complete container header.
	MinDecodeBytes int
	// DecodeTimeout bounds a single decode dispatch.
	DecodeTimeout time.Duration
}

// Sink receives transcript updates and status notices for one connection.
type Sink interface {
	Write(msg domain.StreamMessage) error
}

// Engine owns the decode collaborator and creates per-connection sessions.
// The collaborator may be shared across sessions and must be safe for
// concurrent invocation.
type Engine struct {
	decoder ports.SpeechDecoder
	cfg     Config
	log     *zap.Logger
}

func New(decoder ports.SpeechDecoder, cfg Config, log *zap.Logger) *Engine {
	if cfg.DecodeInterval <= 0 {
		cfg.DecodeInterval = 2 * time.Second
	}
	if cfg.DecodeTimeout <= 0 {
		cfg.DecodeTimeout = 30 * time.Second
	}
	if cfg.MinDecodeBytes < 0 {
		cfg.MinDecodeBytes = 0
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{decoder: decoder, cfg: cfg, log: log}
}

// Session accumulates one connection's audio and schedules decodes over it.
//
// Decodes run concurrently with buffer growth, so every dispatch carries a
// generation number and a result is applied only if its generation exceeds
// the latest applied one. A slow early decode can never overwrite newer text.
type Session struct {
	engine *Engine
	sink   Sink
	ctx    context.Context

	mu            sync.Mutex
	buf           []byte
	dispatchGen   uint64
	appliedGen    uint64
	dispatchedLen int
	appliedLen    int
	degraded      bool
	closed        bool

	stopc    chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSession starts the decode scheduler for one streaming connection.
func (e *Engine) NewSession(ctx context.Context, sink Sink) *Session {
	s := &Session{
		engine: e,
		sink:   sink,
		ctx:    ctx,
		stopc:  make(chan struct{}),
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(e.cfg.DecodeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.maybeDispatch()
			case <-s.stopc:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return s
}

// Append adds an inbound frame to the buffer. The buffer always represents
// the full session-so-far audio; there is no windowing or trimming.
func (s *Session) Append(frame []byte) {
	if len(frame) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.buf = append(s.buf, frame...)
}

// BufferLen reports the accumulated audio size.
func (s *Session) BufferLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

func (s *Session) maybeDispatch() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	if s.degraded {
		s.mu.Unlock()
		if !s.engine.decoder.Available(s.ctx) {
			return
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		s.degraded = false
		s.writeLocked(domain.StreamMessage{Status: domain.StatusReady})
	}

	if len(s.buf) < s.engine.cfg.MinDecodeBytes || len(s.buf) == s.dispatchedLen {
		s.mu.Unlock()
		return
	}

	s.dispatchGen++
	gen := s.dispatchGen
	s.dispatchedLen = len(s.buf)
	snapshot := append([]byte(nil), s.buf...)
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.decode(snapshot, gen)
	}()
}

func (s *Session) decode(snapshot []byte, gen uint64) {
	ctx, cancel := context.WithTimeout(s.ctx, s.engine.cfg.DecodeTimeout)
	defer cancel()

	text, err := s.engine.decoder.Decode(ctx, snapshot)
	if err != nil {
		s.handleDecodeFailure(err)
		return
	}
	s.apply(text, gen, len(snapshot))
}

func (s *Session) handleDecodeFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Allow a retry over the grown buffer on a later tick.
	s.dispatchedLen = s.appliedLen

	if !errors.Is(err, domain.ErrModelUnavailable) {
		// Short or header-incomplete audio routinely fails to decode; keep
		// buffering and try again next tick.
		s.engine.log.Debug("decode failed", zap.Error(err))
		return
	}
	if s.degraded || s.closed {
		return
	}
	s.degraded = true
	s.engine.log.Warn("decoder unavailable, entering degraded mode", zap.Error(err))
	s.writeLocked(domain.StreamMessage{Status: domain.StatusDecoderUnavailable})
}

// apply delivers a decode result unless it is stale or the session closed.
func (s *Session) apply(text string, gen uint64, coveredLen int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || gen <= s.appliedGen {
		return
	}
	s.appliedGen = gen
	s.appliedLen = coveredLen

	if strings.TrimSpace(text) == "" {
		return
	}
	s.writeLocked(domain.StreamMessage{Text: text})
}

func (s *Session) writeLocked(msg domain.StreamMessage) {
	if err := s.sink.Write(msg); err != nil {
		s.engine.log.Debug("sink write failed", zap.Error(err))
	}
}

// Close stops the scheduler, performs one final decode-and-flush if the
// buffer changed since the last applied result, and discards the buffer.
// In-flight decode results arriving after Close are ignored.
func (s *Session) Close(ctx context.Context) {
	s.stopOnce.Do(func() { close(s.stopc) })

	s.mu.Lock()
	needFinal := !s.closed && !s.degraded && len(s.buf) > s.appliedLen
	var snapshot []byte
	var gen uint64
	if needFinal {
		s.dispatchGen++
		gen = s.dispatchGen
		snapshot = append([]byte(nil), s.buf...)
	}
	s.mu.Unlock()

	if needFinal {
		decodeCtx, cancel := context.WithTimeout(ctx, s.engine.cfg.DecodeTimeout)
		text, err := s.engine.decoder.Decode(decodeCtx, snapshot)
		cancel()
		if err == nil {
			s.apply(text, gen, len(snapshot))
		} else {
			s.engine.log.Debug("final decode failed", zap.Error(err))
		}
	}

	s.mu.Lock()
	s.closed = true
	s.buf = nil
	s.mu.Unlock()

	s.wg.Wait()
}
