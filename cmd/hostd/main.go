package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"snipsum/internal/bubble"
	"snipsum/internal/config"
	"snipsum/internal/deliver"
	"snipsum/internal/host/bridge"
	"snipsum/internal/prefs"
	"snipsum/internal/summary"
	"snipsum/internal/trigger"
)

func main() {
	// stdout carries native-messaging frames, so logs go to stderr.
	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(log)

	_ = godotenv.Load()

	start := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.LoadHost()

	store, err := prefs.Open(ctx, cfg.DBPath, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to open preference store",
			"error", err,
			"dbPath", cfg.DBPath)

		return
	}
	defer func() {
		if err = store.Close(); err != nil {
			log.ErrorContext(ctx, "Failed to close preference store",
				"error", err,
				"dbPath", cfg.DBPath)
		}
	}()
	log.InfoContext(ctx, "Preference store is initialized",
		"dbPath", cfg.DBPath)

	client := summary.NewClient(cfg.APIBaseURL, summary.ClientOptions{
		MaxRetries:     cfg.MaxRetries,
		BaseDelay:      cfg.RetryBaseDelay,
		RequestTimeout: cfg.RequestTimeout,
	}, log)
	summarizer := summary.NewSummarizer(client)

	br := bridge.New(os.Stdin, os.Stdout, log)
	renderer := bubble.NewRenderer(br, cfg.BubbleDwell, log)
	deliverer := deliver.New(renderer, br, log)
	router := trigger.NewRouter(br, store, summarizer, deliverer, log)
	br.Attach(router, renderer, store)

	log.InfoContext(ctx, "Host is initialized",
		"apiBaseURL", cfg.APIBaseURL,
		"bubbleDwell", cfg.BubbleDwell)

	done := make(chan error, 1)
	go func() {
		done <- br.Run(ctx)
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-c:
		log.InfoContext(ctx, "Shutdown signal is received",
			"signal", sig.String())
		cancel()
		<-done
	case err = <-done:
		// The browser closing stdin is the normal way this daemon exits.
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
			log.ErrorContext(ctx, "Bridge stopped with error",
				"error", err)
		}
	}

	log.InfoContext(ctx, "Exiting...",
		"uptimeSeconds", time.Since(start).Seconds())
}
