package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"talestrom/internal/domain"
)

// API is the client-side adapter for the server's persistence endpoints.
// It implements ports.RecordingStore over HTTP.
type API struct {
	http *resty.Client
}

func New(baseURL string, timeout time.Duration) *API {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout)
	return &API{http: httpClient}
}

type saveResponse struct {
	RecordingID string `json:"recording_id"`
}

// Save uploads the assembled blob. Failures wrap domain.ErrPersistence and
// are non-fatal for the caller: the in-memory recording stays usable.
func (a *API) Save(ctx context.Context, audio []byte, duration time.Duration) (string, error) {
	resp, err := a.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetQueryParam("duration_seconds", strconv.Itoa(int(duration.Round(time.Second).Seconds()))).
		SetBody(audio).
		Post("/api/recordings")
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	if resp.StatusCode() != http.StatusCreated && resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("%w: save returned %s: %s", domain.ErrPersistence, resp.Status(), resp.String())
	}

	var body saveResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil || body.RecordingID == "" {
		return "", fmt.Errorf("%w: malformed save response", domain.ErrPersistence)
	}
	return body.RecordingID, nil
}

func (a *API) Get(ctx context.Context, id string) ([]byte, error) {
	resp, err := a.http.R().
		SetContext(ctx).
		Get("/api/recordings/" + id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: get returned %s", domain.ErrPersistence, resp.Status())
	}
	return resp.Body(), nil
}

func (a *API) Meta(ctx context.Context, id string) (domain.RecordingMeta, error) {
	resp, err := a.http.R().
		SetContext(ctx).
		Get("/api/recordings/" + id + "/meta")
	if err != nil {
		return domain.RecordingMeta{}, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return domain.RecordingMeta{}, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	if resp.StatusCode() != http.StatusOK {
		return domain.RecordingMeta{}, fmt.Errorf("%w: meta returned %s", domain.ErrPersistence, resp.Status())
	}

	var meta domain.RecordingMeta
	if err := json.Unmarshal(resp.Body(), &meta); err != nil {
		return domain.RecordingMeta{}, fmt.Errorf("%w: malformed meta response", domain.ErrPersistence)
	}
	return meta, nil
}

func (a *API) Delete(ctx context.Context, id string) error {
	resp, err := a.http.R().
		SetContext(ctx).
		Delete("/api/recordings/" + id)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusNoContent {
		return fmt.Errorf("%w: delete returned %s", domain.ErrPersistence, resp.Status())
	}
	return nil
}
