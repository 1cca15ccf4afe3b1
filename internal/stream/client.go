package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"talestrom/internal/domain"
	"talestrom/internal/ports"
)

// Dialer opens streaming-channel connections to the transcription server.
type Dialer struct {
	endpoint string
	grace    time.Duration
}

// NewDialer wires a dialer for the given server base URL. grace is the fixed
// delay between the last frame and disconnect, giving the server time to run
// its final decode.
func NewDialer(endpoint string, grace time.Duration) *Dialer {
	return &Dialer{endpoint: endpoint, grace: grace}
}

// Connect moves Disconnected -> Connecting -> Connected. On failure the
// stream stays Disconnected and the error wraps domain.ErrTransport.
func (d *Dialer) Connect(ctx context.Context) (ports.TranscriptStream, error) {
	wsURL, err := buildStreamURL(d.endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to %s: %v", domain.ErrTransport, wsURL, err)
	}

	client := &clientStream{
		conn:    conn,
		grace:   d.grace,
		state:   domain.StreamStateConnected,
		updates: make(chan domain.StreamMessage, 64),
		frames:  make(chan []byte, 32),
		done:    make(chan struct{}),
	}

	client.wg.Add(2)
	go client.readLoop()
	go client.writeLoop()
	go func() {
		client.wg.Wait()
		close(client.updates)
		close(client.done)
		_ = conn.Close()
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = client.Close()
		case <-client.done:
		}
	}()

	return client, nil
}

type clientStream struct {
	conn  *websocket.Conn
	grace time.Duration

	updates chan domain.StreamMessage
	frames  chan []byte
	done    chan struct{}

	wg sync.WaitGroup

	stateMu sync.Mutex
	state   domain.StreamState

	errMu sync.Mutex
	err   error

	closeSendOnce sync.Once
	closeOnce     sync.Once
	sendMu        sync.RWMutex
	sendClosed    bool
}

// Send forwards one binary audio frame. Fire-and-forget: frames are silently
// dropped when the stream is not connected or the outbound queue is full.
// Live transcription is advisory; the recorded blob remains the source of
// truth.
func (s *clientStream) Send(frame []byte) error {
	if len(frame) == 0 {
		return nil
	}
	if s.State() != domain.StreamStateConnected {
		return nil
	}

	s.sendMu.RLock()
	closed := s.sendClosed
	s.sendMu.RUnlock()
	if closed {
		return nil
	}

	copied := append([]byte(nil), frame...)
	select {
	case s.frames <- copied:
	case <-s.done:
	default:
	}
	return nil
}

func (s *clientStream) Updates() <-chan domain.StreamMessage {
	return s.updates
}

func (s *clientStream) State() domain.StreamState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

func (s *clientStream) setState(state domain.StreamState) {
	s.stateMu.Lock()
	s.state = state
	s.stateMu.Unlock()
}

// Close waits out the grace period so the server can flush its final decode,
// then tears the connection down.
func (s *clientStream) Close() error {
	s.closeOnce.Do(func() {
		if s.grace > 0 && s.State() == domain.StreamStateConnected {
			select {
			case <-time.After(s.grace):
			case <-s.done:
			}
		}
		s.closeSend()
		s.setState(domain.StreamStateDisconnected)
		_ = s.conn.Close()
	})
	<-s.done
	return s.lastErr()
}

func (s *clientStream) closeSend() {
	s.closeSendOnce.Do(func() {
		s.sendMu.Lock()
		s.sendClosed = true
		close(s.frames)
		s.sendMu.Unlock()
	})
}

func (s *clientStream) lastErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *clientStream) setErr(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
}

func (s *clientStream) writeLoop() {
	defer s.wg.Done()

	for frame := range s.frames {
		if err := s.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			s.setErr(err)
			s.setState(domain.StreamStateDisconnected)
			return
		}
	}

	deadline := time.Now().Add(time.Second)
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
}

func (s *clientStream) readLoop() {
	defer s.wg.Done()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			// A read error after Close is the shutdown we asked for.
			if s.State() != domain.StreamStateDisconnected {
				s.setErr(err)
				s.setState(domain.StreamStateDisconnected)
			}
			s.closeSend()
			return
		}

		var msg domain.StreamMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			continue
		}
		if msg.Text == "" && msg.Status == "" {
			continue
		}

		// Blocking send keeps inbound updates in arrival order.
		select {
		case s.updates <- msg:
		case <-s.done:
			return
		}
	}
}

// buildStreamURL turns the server base URL into the websocket endpoint.
func buildStreamURL(base string) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return "", fmt.Errorf("empty server endpoint")
	}

	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	streamURL, err := url.Parse(base + "/ws/transcribe")
	if err != nil {
		return "", fmt.Errorf("invalid server endpoint: %w", err)
	}
	if streamURL.Scheme != "ws" && streamURL.Scheme != "wss" {
		return "", fmt.Errorf("unsupported scheme %q", streamURL.Scheme)
	}
	return streamURL.String(), nil
}
