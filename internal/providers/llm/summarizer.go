package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"talestrom/internal/domain"
)

// Config controls the summarization service HTTP client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Summarizer consumes a language-model service as the opaque
// summarize(text, instructions) -> text collaborator.
type Summarizer struct {
	http *resty.Client
}

func NewSummarizer(cfg Config) *Summarizer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout)
	return &Summarizer{http: httpClient}
}

type summarizeRequest struct {
	Text         string `json:"text"`
	Instructions string `json:"instructions,omitempty"`
}

type summarizeResponse struct {
	Summary string `json:"summary"`
}

func (s *Summarizer) Summarize(ctx context.Context, text string, instructions string) (string, error) {
	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(summarizeRequest{Text: text, Instructions: instructions}).
		Post("/summarize")
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return "", fmt.Errorf("%w: summarizer returned %s", domain.ErrModelUnavailable, resp.Status())
	default:
		return "", fmt.Errorf("summarize failed: %s: %s", resp.Status(), resp.String())
	}

	var body summarizeResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return "", fmt.Errorf("malformed summarize response: %w", err)
	}
	return body.Summary, nil
}
