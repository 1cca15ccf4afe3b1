package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"talestrom/internal/bootstrap"
	"talestrom/internal/domain"
)

// consoleSink prints session events for interactive use and mirrors them to
// the structured log.
type consoleSink struct {
	log *zap.Logger
}

func (s *consoleSink) StateChanged(state domain.RecorderState, reason domain.StateReason) {
	fmt.Printf("state: %s (%s)\n", state, reason)
	s.log.Info("state changed", zap.String("state", string(state)), zap.String("reason", string(reason)))
}

func (s *consoleSink) StreamStateChanged(state domain.StreamState) {
	s.log.Info("stream state changed", zap.String("state", string(state)))
}

func (s *consoleSink) TranscriptUpdated(text string) {
	fmt.Printf("transcript: %s\n", text)
}

func (s *consoleSink) RecordingSaved(id string) {
	fmt.Printf("saved: %s\n", id)
}

func (s *consoleSink) SessionError(code domain.ErrorCode, detail string) {
	fmt.Fprintf(os.Stderr, "error [%s]: %s\n", code, detail)
	s.log.Warn("session error", zap.String("code", string(code)), zap.String("detail", detail))
}

func main() {
	live := flag.Bool("live", false, "stream audio to the server for live transcription")
	resume := flag.Bool("resume", false, "restore the last saved recording and continue it")
	flag.Parse()

	sink := &consoleSink{log: zap.NewNop()}
	services, err := bootstrap.BuildClient(sink)
	if err != nil {
		fmt.Fprintln(os.Stderr, "startup failed:", err)
		os.Exit(1)
	}
	sink.log = services.Log
	defer func() { _ = services.Log.Sync() }()

	recorder := services.Recorder

	switch flag.Arg(0) {
	case "", "record":
	case "clear":
		if err := recorder.Restore(context.Background()); err != nil {
			fmt.Fprintln(os.Stderr, "restore failed:", err)
			os.Exit(1)
		}
		if err := recorder.Clear(); err != nil {
			fmt.Fprintln(os.Stderr, "clear failed:", err)
			os.Exit(1)
		}
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (expected record or clear)\n", flag.Arg(0))
		os.Exit(2)
	}

	continuing := false
	if *resume {
		if err := recorder.Restore(context.Background()); err != nil {
			fmt.Fprintln(os.Stderr, "restore failed:", err)
			os.Exit(1)
		}
		continuing = recorder.Status().State == domain.RecorderStateStopped
		if !continuing {
			fmt.Println("no previous recording to continue, starting fresh")
		}
	}

	if err := recorder.Start(context.Background(), *live, continuing); err != nil {
		switch {
		case errors.Is(err, domain.ErrPermissionDenied):
			fmt.Fprintln(os.Stderr, "microphone access denied; check your audio permissions")
		case errors.Is(err, domain.ErrDeviceUnavailable):
			fmt.Fprintln(os.Stderr, "no usable capture device; check your audio input configuration")
		default:
			fmt.Fprintln(os.Stderr, "start failed:", err)
		}
		os.Exit(1)
	}
	fmt.Println("recording, press Ctrl-C to stop")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	stop()

	if err := recorder.Stop(); err != nil {
		fmt.Fprintln(os.Stderr, "stop failed:", err)
		os.Exit(1)
	}
	recorder.WaitForSave()

	status := recorder.Status()
	fmt.Printf("recorded %ds across %d chunks\n", status.ElapsedSeconds, status.Chunks)
}
