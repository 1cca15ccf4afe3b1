package whisperd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"talestrom/internal/domain"
)

// Config controls the whisper daemon HTTP client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Decoder consumes a whisper daemon as the opaque decode(bytes) -> text
// collaborator. The daemon is a black box with unspecified latency and an
// explicit unavailable failure mode.
type Decoder struct {
	http *resty.Client
}

func NewDecoder(cfg Config) *Decoder {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout)
	return &Decoder{http: httpClient}
}

type decodeResponse struct {
	Text string `json:"text"`
}

// Decode transcribes the entire audio buffer. Unreachable or overloaded
// daemons surface as domain.ErrModelUnavailable so the engine can enter
// degraded mode instead of crashing the pipeline.
func (d *Decoder) Decode(ctx context.Context, audio []byte) (string, error) {
	resp, err := d.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(audio).
		Post("/decode")
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return "", fmt.Errorf("%w: decoder returned %s", domain.ErrModelUnavailable, resp.Status())
	default:
		return "", fmt.Errorf("decode failed: %s: %s", resp.Status(), resp.String())
	}

	var body decodeResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return "", fmt.Errorf("malformed decode response: %w", err)
	}
	return body.Text, nil
}

// Available probes the daemon health endpoint.
func (d *Decoder) Available(ctx context.Context) bool {
	resp, err := d.http.R().
		SetContext(ctx).
		Get("/health")
	return err == nil && resp.StatusCode() == http.StatusOK
}
