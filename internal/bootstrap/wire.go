package bootstrap

import (
	"time"

	"go.uber.org/zap"

	"talestrom/internal/audio"
	"talestrom/internal/client"
	"talestrom/internal/config"
	"talestrom/internal/engine"
	"talestrom/internal/logging"
	"talestrom/internal/ports"
	"talestrom/internal/providers/llm"
	"talestrom/internal/providers/whisperd"
	"talestrom/internal/server"
	"talestrom/internal/session"
	"talestrom/internal/store"
	"talestrom/internal/stream"
)

// ClientServices is the assembled recorder-side runtime graph.
type ClientServices struct {
	Recorder *session.Recorder
	Config   config.Config
	Log      *zap.Logger
}

// ServerServices is the assembled server-side runtime graph.
type ServerServices struct {
	Server *server.Server
	Config config.Config
	Log    *zap.Logger
}

// BuildClient wires the capture pipeline against the remote server.
func BuildClient(events ports.EventSink) (ClientServices, error) {
	cfg, err := config.Load()
	if err != nil {
		return ClientServices{}, err
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return ClientServices{}, err
	}

	var capture ports.AudioCapture = audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand)
	if cfg.Audio.AllowSynthetic {
		capture = audio.NewFallbackCapture(capture, audio.NewSyntheticSource(440))
	}

	cache, err := session.NewFileCache(cfg.Client.CacheDir)
	if err != nil {
		return ClientServices{}, err
	}

	recorder := session.NewRecorder(
		capture,
		stream.NewDialer(cfg.Client.ServerURL, cfg.Session.StreamingGrace()),
		client.New(cfg.Client.ServerURL, cfg.Session.SaveTimeout()),
		cache,
		events,
		session.Config{
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			ChunkSize:   cfg.Session.ChunkSize,
			SaveTimeout: cfg.Session.SaveTimeout(),
		},
	)

	return ClientServices{Recorder: recorder, Config: cfg, Log: log}, nil
}

// BuildServer wires the transcription server graph.
func BuildServer() (ServerServices, error) {
	cfg, err := config.Load()
	if err != nil {
		return ServerServices{}, err
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return ServerServices{}, err
	}

	diskStore, err := store.NewDiskStore(cfg.Store.RecordingsDir, cfg.Store.DefaultExtension, log)
	if err != nil {
		return ServerServices{}, err
	}

	decoder := whisperd.NewDecoder(whisperd.Config{
		BaseURL: cfg.Decoder.BaseURL,
		Timeout: time.Duration(cfg.Decoder.TimeoutSeconds) * time.Second,
	})

	var summarizer ports.Summarizer
	if cfg.Summarizer.BaseURL != "" {
		summarizer = llm.NewSummarizer(llm.Config{
			BaseURL: cfg.Summarizer.BaseURL,
			Timeout: time.Duration(cfg.Summarizer.TimeoutSeconds) * time.Second,
		})
	}

	eng := engine.New(decoder, engine.Config{
		DecodeInterval: cfg.Engine.DecodeInterval(),
		MinDecodeBytes: cfg.Engine.MinDecodeBytes,
	}, log)

	srv := server.New(
		server.Config{
			Host:              cfg.Server.Host,
			Port:              cfg.Server.Port,
			AllowedOrigins:    cfg.Server.AllowedOriginList(),
			MaxUploadBytes:    cfg.Server.MaxUploadBytes(),
			AllowedExtensions: cfg.Server.AllowedExtensionList(),
		},
		diskStore,
		decoder,
		summarizer,
		eng,
		log,
	)

	return ServerServices{Server: srv, Config: cfg, Log: log}, nil
}
