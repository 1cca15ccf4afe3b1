package bootstrap

import (
	"path/filepath"
	"testing"

	"talestrom/internal/domain"
)

func TestBuildClient(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("TALESTROM_CLIENT__CACHE_DIR", filepath.Join(home, "cache"))

	services, err := BuildClient(noopEventSink{})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if services.Recorder == nil {
		t.Fatalf("expected recorder")
	}
	if services.Config.Client.ServerURL == "" {
		t.Fatalf("expected default server url")
	}
}

func TestBuildServer(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TALESTROM_STORE__RECORDINGS_DIR", filepath.Join(dir, "recordings"))

	services, err := BuildServer()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if services.Server == nil {
		t.Fatalf("expected server")
	}
	if services.Config.Engine.DecodeIntervalMS != 2000 {
		t.Fatalf("unexpected decode interval: %d", services.Config.Engine.DecodeIntervalMS)
	}
}

type noopEventSink struct{}

func (noopEventSink) StateChanged(_ domain.RecorderState, _ domain.StateReason) {}
func (noopEventSink) StreamStateChanged(_ domain.StreamState)                   {}
func (noopEventSink) TranscriptUpdated(_ string)                                {}
func (noopEventSink) RecordingSaved(_ string)                                   {}
func (noopEventSink) SessionError(_ domain.ErrorCode, _ string)                 {}
