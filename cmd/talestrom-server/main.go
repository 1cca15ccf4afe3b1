package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"talestrom/internal/bootstrap"
)

func main() {
	services, err := bootstrap.BuildServer()
	if err != nil {
		fmt.Fprintln(os.Stderr, "startup failed:", err)
		os.Exit(1)
	}
	defer func() { _ = services.Log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := services.Server.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		services.Log.Error("server failed", zap.Error(err))
		os.Exit(1)
	}
}
