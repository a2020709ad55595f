package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"snipsum/internal/config"
)

const (
	// pruneSpec drops per-client rate-limit buckets idle longer than
	// pruneMaxIdle, keeping the limiter map bounded.
	pruneSpec    = "@every 10m"
	pruneMaxIdle = 30 * time.Minute

	shutdownTimeout = 10 * time.Second
)

// Server is the summarization service: validation, chunking, the OpenAI
// engine and the middleware stack around them.
type Server struct {
	cfg     config.Server
	engine  Engine
	limiter *clientLimiter
	log     *slog.Logger
}

func New(cfg config.Server, engine Engine, log *slog.Logger) *Server {
	return &Server{
		cfg:     cfg,
		engine:  engine,
		limiter: newClientLimiter(cfg.RateRPS, cfg.RateBurst),
		log:     log,
	}
}

// Handler assembles the route table with the middleware stack applied
// outside-in: logging, CORS, then rate limiting on the summarize route.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /summarize", s.rateLimit(http.HandlerFunc(s.handleSummarize)))
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s.logRequests(s.cors(mux))
}

// Run serves until ctx is canceled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	janitor := cron.New()
	if _, err := janitor.AddFunc(pruneSpec, func() {
		if removed := s.limiter.prune(pruneMaxIdle); removed > 0 {
			s.log.InfoContext(ctx, "Pruned idle rate-limit buckets",
				"removed", removed)
		}
	}); err != nil {
		return fmt.Errorf("schedule limiter prune: %w", err)
	}
	janitor.Start()
	defer janitor.Stop()

	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.ErrorContext(shutdownCtx, "Failed to shut down cleanly",
				"error", err)
		}
	}()

	s.log.InfoContext(ctx, "Server is listening",
		"addr", s.cfg.ListenAddr,
		"model", s.cfg.Model)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}
