package server

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/sony/gobreaker"
)

const (
	baseMaxOutputTokens  int64 = 512
	limitMaxOutputTokens int64 = 2048

	systemPrompt = "You are a careful summarizer. Avoid adding facts not present."
)

// OpenAIEngine calls OpenAI's Responses API behind a circuit breaker so a
// failing upstream degrades to fast model-busy errors instead of a pile
// of hung requests.
type OpenAIEngine struct {
	client  openai.Client
	model   string
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
	log     *slog.Logger
}

func NewOpenAIEngine(apiKey, model string, timeout time.Duration, log *slog.Logger) *OpenAIEngine {
	settings := gobreaker.Settings{
		Name:        "openai",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("Circuit breaker state changed",
				"circuit", name,
				"from", from.String(),
				"to", to.String())
		},
	}

	return &OpenAIEngine{
		client:  openai.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		timeout: timeout,
		breaker: gobreaker.NewCircuitBreaker(settings),
		log:     log,
	}
}

func (e *OpenAIEngine) Complete(ctx context.Context, prompt, model string) (string, error) {
	if model == "" {
		model = e.model
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	out, err := e.breaker.Execute(func() (interface{}, error) {
		return e.complete(ctx, prompt, model)
	})
	if err != nil {
		return "", err
	}

	return out.(string), nil
}

func (e *OpenAIEngine) complete(ctx context.Context, prompt, model string) (string, error) {
	maxOutputTokens := baseMaxOutputTokens
	for {
		resp, err := e.client.Responses.New(ctx, responses.ResponseNewParams{
			Model:           openai.ChatModel(model),
			MaxOutputTokens: openai.Int(maxOutputTokens),
			Instructions:    openai.String(systemPrompt),
			Input: responses.ResponseNewParamsInputUnion{
				OfString: openai.String(prompt),
			},
		})
		if err != nil {
			return "", fmt.Errorf("do request: %w", err)
		}

		if resp.Status == "incomplete" {
			if resp.IncompleteDetails.Reason == "max_output_tokens" && maxOutputTokens < limitMaxOutputTokens {
				maxOutputTokens = min(maxOutputTokens*2, limitMaxOutputTokens)
				continue
			}
			return "", fmt.Errorf(
				"response is incomplete (reason = %s, maxOutputTokens = %d)",
				resp.IncompleteDetails.Reason,
				maxOutputTokens,
			)
		}

		summary := strings.TrimSpace(resp.OutputText())
		if summary == "" {
			return "", fmt.Errorf("output text is missing (status = %s)", resp.Status)
		}
		return summary, nil
	}
}
