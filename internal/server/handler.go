package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sony/gobreaker"

	"snipsum/internal/summary"
)

// maxRequestBody bounds the selection size a client can submit.
const maxRequestBody = 1 << 20

type summarizeRequest struct {
	Text         string `json:"text"`
	Tone         string `json:"tone"`
	MaxSentences int    `json:"maxSentences"`
	Model        string `json:"model,omitempty"`
}

type summarizeResponse struct {
	Summary string `json:"summary"`
}

type healthResponse struct {
	OK    bool   `json:"ok"`
	Model string `json:"model"`
}

func respondJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			slog.Default().Error("Failed to encode JSON response",
				"statusCode", code,
				"error", err)
		}
	}
}

func respondError(w http.ResponseWriter, code int, msg string) {
	respondJSON(w, code, map[string]string{"error": msg})
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var req summarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")

		return
	}

	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		respondError(w, http.StatusBadRequest, "text cannot be empty")

		return
	}

	tone := summary.NormalizeTone(req.Tone)
	if !allowedTones[tone] {
		respondError(w, http.StatusBadRequest,
			"tone must be one of: precise, casual, bullet, academic")

		return
	}

	maxSentences := req.MaxSentences
	if maxSentences == 0 {
		maxSentences = summary.DefaultSentences
	}
	maxSentences = summary.ClampSentences(maxSentences)

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = s.cfg.Model
	}

	out, err := s.summarize(r.Context(), req.Text, tone, maxSentences, model)
	if err != nil {
		status, msg := statusForUpstream(err)
		s.log.ErrorContext(r.Context(), "Summarization failed",
			"error", err,
			"status", status,
			"textLength", len(req.Text))
		respondError(w, status, msg)

		return
	}

	respondJSON(w, http.StatusOK, summarizeResponse{Summary: out})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, healthResponse{OK: true, Model: s.cfg.Model})
}

// statusForUpstream maps engine failures onto the statuses the
// extension-side client understands: 429 retries with backoff, 401/504
// surface as-is, everything else reads as a flaky upstream.
func statusForUpstream(err error) (int, string) {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, "upstream model timed out"
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return http.StatusBadGateway, "upstream temporarily unavailable"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient_quota") || strings.Contains(msg, "rate limit"):
		return http.StatusTooManyRequests, "upstream quota or rate limit"
	case strings.Contains(msg, "invalid_api_key"):
		return http.StatusUnauthorized, "upstream authentication failed"
	default:
		return http.StatusBadGateway, "upstream error"
	}
}
