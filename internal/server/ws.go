package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"talestrom/internal/domain"
)

// wsSink serializes engine writes onto a single websocket connection.
// The scheduler goroutine and decode goroutines both write through it.
type wsSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSink) Write(msg domain.StreamMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(msg)
}

// handleTranscribe runs one buffered transcription session per connection.
// Binary frames append to the session buffer; the session pushes transcript
// updates and status notices back as JSON.
func (s *Server) handleTranscribe(c *gin.Context) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.originAllowed,
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sink := &wsSink{conn: conn}
	session := s.engine.NewSession(c.Request.Context(), sink)
	s.log.Info("transcription session opened", zap.String("remote", conn.RemoteAddr().String()))

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if messageType == websocket.BinaryMessage {
			session.Append(data)
		}
	}

	buffered := session.BufferLen()
	// The client holds the connection open for a grace period after its last
	// frame, which is the window this final decode-and-flush writes into.
	session.Close(context.Background())
	s.log.Info("transcription session closed",
		zap.String("remote", conn.RemoteAddr().String()),
		zap.Int("buffered_bytes", buffered),
	)
}

func (s *Server) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
