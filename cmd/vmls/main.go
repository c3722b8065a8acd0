package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/walteh/vmls/cmd/vmls/commands"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().
		Timestamp().
		Logger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ctx = logger.WithContext(ctx)

	if err := commands.RootCmd().ExecuteContext(ctx); err != nil {
		logger.Error().Err(err).Msg("vmls failed")
		cancel()
		os.Exit(1)
	}
}
