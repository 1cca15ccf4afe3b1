package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config stores runtime configuration for both binaries.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Store      StoreConfig      `mapstructure:"store"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Decoder    DecoderConfig    `mapstructure:"decoder"`
	Summarizer SummarizerConfig `mapstructure:"summarizer"`
	Audio      AudioConfig      `mapstructure:"audio"`
	Session    SessionConfig    `mapstructure:"session"`
	Client     ClientConfig     `mapstructure:"client"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Host              string `mapstructure:"host"`
	Port              int    `mapstructure:"port"`
	AllowedOrigins    string `mapstructure:"allowed_origins"`
	MaxUploadMB       int    `mapstructure:"max_upload_mb"`
	AllowedExtensions string `mapstructure:"allowed_extensions"`
}

type StoreConfig struct {
	RecordingsDir    string `mapstructure:"recordings_dir"`
	DefaultExtension string `mapstructure:"default_extension"`
}

type EngineConfig struct {
	DecodeIntervalMS int `mapstructure:"decode_interval_ms"`
	MinDecodeBytes   int `mapstructure:"min_decode_bytes"`
}

type DecoderConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type SummarizerConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type AudioConfig struct {
	RecorderCommand string `mapstructure:"recorder_command"`
	InputFormat     string `mapstructure:"input_format"`
	InputDevice     string `mapstructure:"input_device"`
	SampleRate      int    `mapstructure:"sample_rate"`
	Channels        int    `mapstructure:"channels"`
	AllowSynthetic  bool   `mapstructure:"allow_synthetic"`
}

type SessionConfig struct {
	ChunkSize        int `mapstructure:"chunk_size"`
	StreamingGraceMS int `mapstructure:"streaming_grace_ms"`
	SaveTimeoutMS    int `mapstructure:"save_timeout_ms"`
}

type ClientConfig struct {
	ServerURL string `mapstructure:"server_url"`
	CacheDir  string `mapstructure:"cache_dir"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// Load resolves configuration from defaults, an optional .env file, and
// TALESTROM_* environment variables.
func Load() (Config, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter("__"))
	v.SetEnvPrefix("TALESTROM")
	v.AutomaticEnv()

	setDefaults(v)

	v.AddConfigPath(".")
	v.SetConfigName(".env")
	v.SetConfigType("env")
	if path := strings.TrimSpace(os.Getenv("TALESTROM_ENV_PATH")); path != "" {
		v.SetConfigFile(path)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}

	applyFallbacks(&cfg)
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server__host", "0.0.0.0")
	v.SetDefault("server__port", 8000)
	v.SetDefault("server__allowed_origins", "http://localhost:5173")
	v.SetDefault("server__max_upload_mb", 500)
	v.SetDefault("server__allowed_extensions", ".m4a,.wav,.mp3,.aac,.flac,.ogg,.webm")

	v.SetDefault("store__recordings_dir", "./recordings")
	v.SetDefault("store__default_extension", ".webm")

	v.SetDefault("engine__decode_interval_ms", 2000)
	v.SetDefault("engine__min_decode_bytes", 10*1024)

	v.SetDefault("decoder__base_url", "http://localhost:9000")
	v.SetDefault("decoder__timeout_seconds", 120)

	v.SetDefault("summarizer__base_url", "")
	v.SetDefault("summarizer__timeout_seconds", 60)

	v.SetDefault("audio__recorder_command", "ffmpeg")
	v.SetDefault("audio__input_format", "pulse")
	v.SetDefault("audio__input_device", "default")
	v.SetDefault("audio__sample_rate", 16000)
	v.SetDefault("audio__channels", 1)
	v.SetDefault("audio__allow_synthetic", false)

	v.SetDefault("session__chunk_size", 4096)
	v.SetDefault("session__streaming_grace_ms", 1000)
	v.SetDefault("session__save_timeout_ms", 15000)

	v.SetDefault("client__server_url", "http://localhost:8000")
	v.SetDefault("client__cache_dir", "")

	v.SetDefault("log__level", "info")
	v.SetDefault("log__file", "")
}

func applyFallbacks(cfg *Config) {
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Session.ChunkSize < 256 {
		cfg.Session.ChunkSize = 4096
	}
	if cfg.Engine.DecodeIntervalMS <= 0 {
		cfg.Engine.DecodeIntervalMS = 2000
	}
	if cfg.Engine.MinDecodeBytes < 0 {
		cfg.Engine.MinDecodeBytes = 0
	}
	if cfg.Server.MaxUploadMB <= 0 {
		cfg.Server.MaxUploadMB = 500
	}
	if cfg.Client.CacheDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Client.CacheDir = filepath.Join(home, ".config", "talestrom")
		}
	}
}

// AllowedOriginList splits the configured origins string.
func (c ServerConfig) AllowedOriginList() []string {
	var out []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// AllowedExtensionList splits the configured extension string.
func (c ServerConfig) AllowedExtensionList() []string {
	var out []string
	for _, ext := range strings.Split(c.AllowedExtensions, ",") {
		if trimmed := strings.TrimSpace(strings.ToLower(ext)); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// MaxUploadBytes returns the upload limit in bytes.
func (c ServerConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) * 1024 * 1024
}

// DecodeInterval returns the engine decode cadence.
func (c EngineConfig) DecodeInterval() time.Duration {
	return time.Duration(c.DecodeIntervalMS) * time.Millisecond
}

// StreamingGrace returns the delay between the last frame and disconnect.
func (c SessionConfig) StreamingGrace() time.Duration {
	return time.Duration(c.StreamingGraceMS) * time.Millisecond
}

// SaveTimeout bounds the asynchronous save after stop.
func (c SessionConfig) SaveTimeout() time.Duration {
	return time.Duration(c.SaveTimeoutMS) * time.Millisecond
}
