package summary

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

const (
	// DefaultTone is used whenever a caller or the preference store
	// supplies no tone.
	DefaultTone = "precise"

	// DefaultSentences is used when a sentence count cannot be parsed
	// at all (for example a garbage preference value).
	DefaultSentences = 3

	MinSentences = 1
	MaxSentences = 10

	summarizePath = "/summarize"
)

// Request is the wire shape of one summarization call. Built fresh per
// invocation, never persisted.
type Request struct {
	Text         string `json:"text"`
	Tone         string `json:"tone"`
	MaxSentences int    `json:"maxSentences"`
}

// Result is the only success payload the service is expected to return.
type Result struct {
	Summary string `json:"summary"`
}

// Summarizer validates and normalizes summarization input, then drives
// the backoff client against the service.
type Summarizer struct {
	client *Client
}

func NewSummarizer(client *Client) *Summarizer {
	return &Summarizer{client: client}
}

// Summarize rejects empty text before any I/O, clamps maxSentences into
// [MinSentences, MaxSentences] and defaults an absent tone. Callers that
// read raw preference or user input clamp too; the duplication is
// deliberate so neither side has to trust the other.
func (s *Summarizer) Summarize(
	ctx context.Context,
	text string,
	tone string,
	maxSentences int,
) (*Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	req := Request{
		Text:         text,
		Tone:         NormalizeTone(tone),
		MaxSentences: ClampSentences(maxSentences),
	}

	raw, err := s.client.PostJSON(ctx, summarizePath, req)
	if err != nil {
		return nil, err
	}

	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &ParseError{Raw: string(raw), Err: err}
	}

	if result.Summary == "" {
		return nil, &ParseError{
			Raw: string(raw),
			Err: errors.New("summary field missing or empty"),
		}
	}

	return &result, nil
}

// NormalizeTone trims a tone value and falls back to DefaultTone.
func NormalizeTone(tone string) string {
	tone = strings.TrimSpace(tone)
	if tone == "" {
		return DefaultTone
	}

	return tone
}

// ClampSentences forces a sentence count into [MinSentences, MaxSentences].
func ClampSentences(n int) int {
	if n < MinSentences {
		return MinSentences
	}
	if n > MaxSentences {
		return MaxSentences
	}

	return n
}

// ParseSentences parses a raw sentence-count value as stored or typed by
// a user. Unparseable input yields DefaultSentences; out-of-range input
// is clamped.
func ParseSentences(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return DefaultSentences
	}

	return ClampSentences(n)
}
