package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"talestrom/internal/engine"
	"talestrom/internal/ports"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Config controls the HTTP surface.
type Config struct {
	Host              string
	Port              int
	AllowedOrigins    []string
	MaxUploadBytes    int64
	AllowedExtensions []string
}

// Server exposes the persistence endpoints and the streaming transcription
// channel.
type Server struct {
	cfg        Config
	store      ports.RecordingStore
	decoder    ports.SpeechDecoder
	summarizer ports.Summarizer
	engine     *engine.Engine
	log        *zap.Logger
}

func New(
	cfg Config,
	store ports.RecordingStore,
	decoder ports.SpeechDecoder,
	summarizer ports.Summarizer,
	eng *engine.Engine,
	log *zap.Logger,
) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 500 * 1024 * 1024
	}
	return &Server{
		cfg:        cfg,
		store:      store,
		decoder:    decoder,
		summarizer: summarizer,
		engine:     eng,
		log:        log,
	}
}

// Router assembles the gin engine with middleware and routes.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	if len(s.cfg.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: s.cfg.AllowedOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{"Origin", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}

	api := r.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.POST("/recordings", s.handleSaveRecording)
		api.GET("/recordings/:id", s.handleGetRecording)
		api.GET("/recordings/:id/meta", s.handleRecordingMeta)
		api.DELETE("/recordings/:id", s.handleDeleteRecording)
		api.POST("/summarize", s.handleSummarize)
	}

	r.GET("/ws/transcribe", s.handleTranscribe)
	return r
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler: s.Router(),
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("server listening", zap.String("addr", srv.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.log.Info("server stopped")
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
