package whisperd

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talestrom/internal/domain"
)

func TestDecodeReturnsText(t *testing.T) {
	t.Parallel()

	var received []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/decode", r.URL.Path)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		received = body
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"hei verden"}`))
	}))
	t.Cleanup(srv.Close)

	d := NewDecoder(Config{BaseURL: srv.URL})
	text, err := d.Decode(context.Background(), []byte("audio-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "hei verden", text)
	assert.Equal(t, []byte("audio-bytes"), received)
}

func TestDecodeServiceUnavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	d := NewDecoder(Config{BaseURL: srv.URL})
	_, err := d.Decode(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, domain.ErrModelUnavailable)
}

func TestDecodeUnreachableDaemon(t *testing.T) {
	t.Parallel()

	d := NewDecoder(Config{BaseURL: "http://127.0.0.1:1"})
	_, err := d.Decode(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, domain.ErrModelUnavailable)
}

func TestDecodeBadRequestIsNotUnavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid audio", http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	d := NewDecoder(Config{BaseURL: srv.URL})
	_, err := d.Decode(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrModelUnavailable)
}

func TestAvailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	d := NewDecoder(Config{BaseURL: srv.URL})
	assert.True(t, d.Available(context.Background()))

	down := NewDecoder(Config{BaseURL: "http://127.0.0.1:1"})
	assert.False(t, down.Available(context.Background()))
}
