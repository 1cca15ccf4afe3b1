package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talestrom/internal/domain"
)

func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()

	var gotBody []byte
	var gotDuration string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/recordings", r.URL.Path)
		gotDuration = r.URL.Query().Get("duration_seconds")
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		gotBody = body
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"recording_id":"2026-08-23_120000_12s_abcdef.webm"}`))
	}))
	t.Cleanup(srv.Close)

	api := New(srv.URL, time.Second)
	id, err := api.Save(context.Background(), []byte("blob"), 12*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "2026-08-23_120000_12s_abcdef.webm", id)
	assert.Equal(t, []byte("blob"), gotBody)
	assert.Equal(t, "12", gotDuration)
}

func TestSaveServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "disk full", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	api := New(srv.URL, time.Second)
	_, err := api.Save(context.Background(), []byte("blob"), time.Second)
	assert.ErrorIs(t, err, domain.ErrPersistence)
}

func TestSaveUnreachableServer(t *testing.T) {
	t.Parallel()

	api := New("http://127.0.0.1:1", 200*time.Millisecond)
	_, err := api.Save(context.Background(), []byte("blob"), time.Second)
	assert.ErrorIs(t, err, domain.ErrPersistence)
}

func TestGetNotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.NotFound(w, nil)
	}))
	t.Cleanup(srv.Close)

	api := New(srv.URL, time.Second)
	_, err := api.Get(context.Background(), "missing.webm")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = api.Meta(context.Background(), "missing.webm")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = api.Delete(context.Background(), "missing.webm")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetAndMeta(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/recordings/rec.webm":
			_, _ = w.Write([]byte("payload"))
		case "/api/recordings/rec.webm/meta":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"rec.webm","duration_seconds":9,"size_bytes":7}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	api := New(srv.URL, time.Second)

	blob, err := api.Get(context.Background(), "rec.webm")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), blob)

	meta, err := api.Meta(context.Background(), "rec.webm")
	require.NoError(t, err)
	assert.Equal(t, "rec.webm", meta.ID)
	assert.Equal(t, 9, meta.DurationSeconds)
	assert.Equal(t, int64(7), meta.SizeBytes)
}

func TestDelete(t *testing.T) {
	t.Parallel()

	var deleted string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		deleted = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	api := New(srv.URL, time.Second)
	require.NoError(t, api.Delete(context.Background(), "rec.webm"))
	assert.Equal(t, "/api/recordings/rec.webm", deleted)
}
