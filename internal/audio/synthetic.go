package audio

import (
	"context"
	"encoding/binary"
	"io"
	"math"
	"sync"
	"time"

	"talestrom/internal/ports"
)

// SyntheticSource produces a paced sine tone instead of microphone input.
// It exists to keep the capture pipeline exercisable in environments with no
// audio device; it is never the default when a real device is present.
type SyntheticSource struct {
	frequency float64
}

func NewSyntheticSource(frequency float64) *SyntheticSource {
	if frequency <= 0 {
		frequency = 440
	}
	return &SyntheticSource{frequency: frequency}
}

func (s *SyntheticSource) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}

	session := &syntheticSession{
		sampleRate:     cfg.SampleRate,
		channels:       cfg.Channels,
		bytesPerSecond: cfg.SampleRate * cfg.Channels * 2,
		step:           2 * math.Pi * s.frequency / float64(cfg.SampleRate),
		started:        time.Now(),
		done:           make(chan struct{}),
	}

	go func() {
		select {
		case <-ctx.Done():
			_ = session.Stop()
		case <-session.done:
		}
	}()

	return session, nil
}

type syntheticSession struct {
	sampleRate     int
	channels       int
	bytesPerSecond int
	step           float64
	started        time.Time

	mu       sync.Mutex
	phase    float64
	produced int64

	stopOnce sync.Once
	done     chan struct{}
}

// Read fills p with little-endian 16-bit samples, paced so the session
// produces audio at real-time rate like a microphone would.
func (s *syntheticSession) Read(p []byte) (int, error) {
	frameSize := 2 * s.channels
	if len(p) < frameSize {
		return 0, io.ErrShortBuffer
	}

	for {
		select {
		case <-s.done:
			return 0, io.EOF
		default:
		}

		allowed := int64(time.Since(s.started).Seconds() * float64(s.bytesPerSecond))
		s.mu.Lock()
		pending := allowed - s.produced
		s.mu.Unlock()
		if pending >= int64(frameSize) {
			break
		}

		select {
		case <-s.done:
			return 0, io.EOF
		case <-time.After(10 * time.Millisecond):
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	allowed := int64(time.Since(s.started).Seconds() * float64(s.bytesPerSecond))
	n := int(allowed - s.produced)
	if n > len(p) {
		n = len(p)
	}
	n = (n / frameSize) * frameSize
	if n <= 0 {
		return 0, nil
	}

	for i := 0; i < n; i += frameSize {
		sample := int16(math.Sin(s.phase) * 0.2 * math.MaxInt16)
		s.phase += s.step
		for ch := 0; ch < s.channels; ch++ {
			binary.LittleEndian.PutUint16(p[i+2*ch:], uint16(sample))
		}
	}
	s.produced += int64(n)
	return n, nil
}

func (s *syntheticSession) Close() error {
	return s.Stop()
}

func (s *syntheticSession) Stop() error {
	s.stopOnce.Do(func() {
		close(s.done)
	})
	return nil
}
