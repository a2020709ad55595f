package summary

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestSummarizer(t *testing.T, handler http.HandlerFunc) (*Summarizer, *int) {
	t.Helper()

	var calls int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	client := NewClient(server.URL, ClientOptions{BaseDelay: time.Millisecond}, slog.Default())

	return NewSummarizer(client), &calls
}

func TestSummarizeRejectsEmptyTextBeforeNetwork(t *testing.T) {
	s, calls := newTestSummarizer(t, func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte(`{"summary":"never"}`)); err != nil {
			t.Errorf("write response: %v", err)
		}
	})

	for _, text := range []string{"", "   ", "\n\t "} {
		if _, err := s.Summarize(context.Background(), text, "precise", 3); !errors.Is(err, ErrEmptyText) {
			t.Fatalf("text %q: expected ErrEmptyText, got %v", text, err)
		}
	}

	if *calls != 0 {
		t.Fatalf("expected zero network calls, got %d", *calls)
	}
}

func TestSummarizeClampsAndDefaults(t *testing.T) {
	tests := []struct {
		name         string
		tone         string
		maxSentences int
		wantTone     string
		wantCount    int
	}{
		{name: "zero clamps up", tone: "casual", maxSentences: 0, wantTone: "casual", wantCount: 1},
		{name: "negative clamps up", tone: "casual", maxSentences: -5, wantTone: "casual", wantCount: 1},
		{name: "huge clamps down", tone: "bullet", maxSentences: 99, wantTone: "bullet", wantCount: 10},
		{name: "in range untouched", tone: "academic", maxSentences: 7, wantTone: "academic", wantCount: 7},
		{name: "empty tone defaults", tone: "", maxSentences: 3, wantTone: DefaultTone, wantCount: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Request

			s, _ := newTestSummarizer(t, func(w http.ResponseWriter, r *http.Request) {
				if err := decodeJSONBody(r, &got); err != nil {
					t.Errorf("decode request: %v", err)
				}
				if _, err := w.Write([]byte(`{"summary":"fine"}`)); err != nil {
					t.Errorf("write response: %v", err)
				}
			})

			result, err := s.Summarize(context.Background(), "some text", tt.tone, tt.maxSentences)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if result.Summary != "fine" {
				t.Fatalf("unexpected summary: %q", result.Summary)
			}

			if got.Tone != tt.wantTone {
				t.Fatalf("expected tone %q, got %q", tt.wantTone, got.Tone)
			}

			if got.MaxSentences != tt.wantCount {
				t.Fatalf("expected maxSentences %d, got %d", tt.wantCount, got.MaxSentences)
			}

			if got.Text != "some text" {
				t.Fatalf("unexpected text: %q", got.Text)
			}
		})
	}
}

func TestSummarizeTrimsText(t *testing.T) {
	var got Request

	s, _ := newTestSummarizer(t, func(w http.ResponseWriter, r *http.Request) {
		if err := decodeJSONBody(r, &got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if _, err := w.Write([]byte(`{"summary":"fine"}`)); err != nil {
			t.Errorf("write response: %v", err)
		}
	})

	if _, err := s.Summarize(context.Background(), "  padded  ", "", 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Text != "padded" {
		t.Fatalf("expected trimmed text, got %q", got.Text)
	}
}

func TestSummarizeMissingSummaryFieldIsParseError(t *testing.T) {
	s, _ := newTestSummarizer(t, func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte(`{"unexpected":"shape"}`)); err != nil {
			t.Errorf("write response: %v", err)
		}
	})

	_, err := s.Summarize(context.Background(), "text", "", 3)

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}

	if parseErr.Raw != `{"unexpected":"shape"}` {
		t.Fatalf("expected raw body to be preserved, got %q", parseErr.Raw)
	}
}

func TestParseSentences(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{raw: "0", want: 1},
		{raw: "99", want: 10},
		{raw: "abc", want: 3},
		{raw: "", want: 3},
		{raw: " 5 ", want: 5},
		{raw: "-1", want: 1},
	}

	for _, tt := range tests {
		if got := ParseSentences(tt.raw); got != tt.want {
			t.Fatalf("ParseSentences(%q): expected %d, got %d", tt.raw, tt.want, got)
		}
	}
}
