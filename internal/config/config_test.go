package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("TALESTROM_ENV_PATH", filepath.Join(home, "missing.env"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != 8000 || cfg.Server.Host != "0.0.0.0" {
		t.Fatalf("unexpected server defaults: %+v", cfg.Server)
	}
	if cfg.Server.MaxUploadMB != 500 {
		t.Fatalf("unexpected upload limit: %d", cfg.Server.MaxUploadMB)
	}
	if cfg.Engine.DecodeInterval() != 2*time.Second {
		t.Fatalf("unexpected decode interval: %v", cfg.Engine.DecodeInterval())
	}
	if cfg.Engine.MinDecodeBytes != 10*1024 {
		t.Fatalf("unexpected min decode bytes: %d", cfg.Engine.MinDecodeBytes)
	}
	if cfg.Session.StreamingGrace() != time.Second {
		t.Fatalf("unexpected streaming grace: %v", cfg.Session.StreamingGrace())
	}
	if cfg.Audio.SampleRate != 16000 || cfg.Audio.Channels != 1 {
		t.Fatalf("unexpected audio defaults: %+v", cfg.Audio)
	}
	if cfg.Client.ServerURL != "http://localhost:8000" {
		t.Fatalf("unexpected client url: %q", cfg.Client.ServerURL)
	}
	if cfg.Client.CacheDir != filepath.Join(home, ".config", "talestrom") {
		t.Fatalf("unexpected cache dir: %q", cfg.Client.CacheDir)
	}

	exts := cfg.Server.AllowedExtensionList()
	if len(exts) != 7 || exts[0] != ".m4a" || exts[6] != ".webm" {
		t.Fatalf("unexpected extension list: %v", exts)
	}
}

func TestLoadRespectsEnvOverrides(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("TALESTROM_ENV_PATH", filepath.Join(home, "missing.env"))
	t.Setenv("TALESTROM_SERVER__PORT", "9100")
	t.Setenv("TALESTROM_SERVER__ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("TALESTROM_STORE__RECORDINGS_DIR", "/var/lib/talestrom")
	t.Setenv("TALESTROM_ENGINE__DECODE_INTERVAL_MS", "500")
	t.Setenv("TALESTROM_DECODER__BASE_URL", "http://decoder:9000")
	t.Setenv("TALESTROM_AUDIO__INPUT_FORMAT", "alsa")
	t.Setenv("TALESTROM_SESSION__CHUNK_SIZE", "512")
	t.Setenv("TALESTROM_CLIENT__CACHE_DIR", filepath.Join(home, "cache"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Fatalf("port override ignored: %d", cfg.Server.Port)
	}
	origins := cfg.Server.AllowedOriginList()
	if len(origins) != 2 || origins[0] != "https://a.example" || origins[1] != "https://b.example" {
		t.Fatalf("unexpected origins: %v", origins)
	}
	if cfg.Store.RecordingsDir != "/var/lib/talestrom" {
		t.Fatalf("recordings dir override ignored: %q", cfg.Store.RecordingsDir)
	}
	if cfg.Engine.DecodeInterval() != 500*time.Millisecond {
		t.Fatalf("decode interval override ignored: %v", cfg.Engine.DecodeInterval())
	}
	if cfg.Decoder.BaseURL != "http://decoder:9000" {
		t.Fatalf("decoder url override ignored: %q", cfg.Decoder.BaseURL)
	}
	if cfg.Audio.InputFormat != "alsa" {
		t.Fatalf("input format override ignored: %q", cfg.Audio.InputFormat)
	}
	if cfg.Session.ChunkSize != 512 {
		t.Fatalf("chunk size override ignored: %d", cfg.Session.ChunkSize)
	}
	if cfg.Client.CacheDir != filepath.Join(home, "cache") {
		t.Fatalf("cache dir override ignored: %q", cfg.Client.CacheDir)
	}
}

func TestApplyFallbacksSanitizesValues(t *testing.T) {
	cfg := Config{}
	cfg.Session.ChunkSize = 10
	cfg.Engine.DecodeIntervalMS = -1
	cfg.Server.MaxUploadMB = 0

	applyFallbacks(&cfg)

	if cfg.Session.ChunkSize != 4096 {
		t.Fatalf("chunk size not sanitized: %d", cfg.Session.ChunkSize)
	}
	if cfg.Engine.DecodeIntervalMS != 2000 {
		t.Fatalf("decode interval not sanitized: %d", cfg.Engine.DecodeIntervalMS)
	}
	if cfg.Server.MaxUploadMB != 500 {
		t.Fatalf("upload limit not sanitized: %d", cfg.Server.MaxUploadMB)
	}
}
