package server

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"talestrom/internal/domain"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":            "ok",
		"version":           Version,
		"decoder_available": s.decoder.Available(c.Request.Context()),
	})
}

// handleSaveRecording accepts the assembled audio blob as the request body.
// The duration is client-reported; the payload is opaque to the server.
func (s *Server) handleSaveRecording(c *gin.Context) {
	duration := 0
	if raw := c.Query("duration_seconds"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "duration_seconds must be a non-negative integer"})
			return
		}
		duration = parsed
	}

	if filename := c.Query("filename"); filename != "" && !s.extensionAllowed(filename) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file extension not allowed"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload exceeds size limit"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty audio payload"})
		return
	}

	id, err := s.store.Save(c.Request.Context(), body, time.Duration(duration)*time.Second)
	if err != nil {
		s.log.Error("save failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist recording"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"recording_id": id})
}

func (s *Server) handleGetRecording(c *gin.Context) {
	id := c.Param("id")
	blob, err := s.store.Get(c.Request.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "recording not found"})
		return
	}
	if err != nil {
		s.log.Error("get failed", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read recording"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+id+`"`)
	c.Data(http.StatusOK, "application/octet-stream", blob)
}

func (s *Server) handleRecordingMeta(c *gin.Context) {
	id := c.Param("id")
	meta, err := s.store.Meta(c.Request.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "recording not found"})
		return
	}
	if err != nil {
		s.log.Error("meta failed", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read recording metadata"})
		return
	}
	c.JSON(http.StatusOK, meta)
}

func (s *Server) handleDeleteRecording(c *gin.Context) {
	id := c.Param("id")
	err := s.store.Delete(c.Request.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "recording not found"})
		return
	}
	if err != nil {
		s.log.Error("delete failed", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete recording"})
		return
	}
	c.Status(http.StatusNoContent)
}

type summarizeRequest struct {
	Text         string `json:"text"`
	Instructions string `json:"instructions"`
}

func (s *Server) handleSummarize(c *gin.Context) {
	var req summarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}
	if len(strings.TrimSpace(req.Text)) < 10 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text too short to summarize"})
		return
	}
	if s.summarizer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "summarization not configured"})
		return
	}

	summary, err := s.summarizer.Summarize(c.Request.Context(), req.Text, req.Instructions)
	if errors.Is(err, domain.ErrModelUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "summarization model unavailable"})
		return
	}
	if err != nil {
		s.log.Error("summarize failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "summarization failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

func (s *Server) extensionAllowed(filename string) bool {
	if len(s.cfg.AllowedExtensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range s.cfg.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
