// Command consumer drains the booking event queue into the audit log.
package main

import (
	"context"
	"errors"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"

	"github.com/iliyamo/seat-reservation-admin/internal/config"
	"github.com/iliyamo/seat-reservation-admin/internal/logger"
	"github.com/iliyamo/seat-reservation-admin/internal/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatalf("config: %v", err)
	}
	log := logger.New(logger.Options{
		ServiceName: "seat-events",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &queue.Consumer{
		URL:     cfg.Events.URL,
		Queue:   cfg.Events.Queue,
		LogPath: cfg.Events.LogPath,
		Log:     log,
	}
	log.Info(log.WithFields(ctx, map[string]any{"queue": c.Queue, "log_path": c.LogPath}), "consumer.starting")
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error(ctx, "consumer.stopped", err)
		os.Exit(1)
	}
	log.Info(ctx, "consumer.stopped")
}
