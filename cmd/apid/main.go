package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"snipsum/internal/config"
	"snipsum/internal/server"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	_ = godotenv.Load()

	start := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.LoadServer()

	engine := server.NewOpenAIEngine(cfg.OpenAIAPIKey, cfg.Model, cfg.UpstreamTimeout, log)
	srv := server.New(cfg, engine, log)

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-c:
		log.InfoContext(ctx, "Shutdown signal is received",
			"signal", sig.String())
		cancel()

		if err := <-done; err != nil {
			log.ErrorContext(ctx, "Server stopped with error",
				"error", err)
		}
	case err := <-done:
		if err != nil {
			log.ErrorContext(ctx, "Server stopped with error",
				"error", err)
		}
	}

	log.InfoContext(ctx, "Exiting...",
		"uptimeSeconds", time.Since(start).Seconds())
}
