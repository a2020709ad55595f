// Package trigger normalizes every entry point (context menu, keyboard
// shortcut, control-surface request) into one summarization chain and is
// the only place that turns failures into user-visible text.
package trigger

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"snipsum/internal/bubble"
	"snipsum/internal/deliver"
	"snipsum/internal/host"
	"snipsum/internal/prefs"
	"snipsum/internal/summary"
)

const (
	msgLoading     = "Summarizing…"
	msgNoSelection = "No text selected."
	msgRateLimited = "Rate limited. Please try again shortly."
	msgBilling     = "Billing or quota issue. Check your summarization plan."
	msgModelBusy   = "The model is busy. Please try again."
	msgGeneric     = "Summarization failed. Please try again."
)

// Summarizer is the request builder the router drives.
type Summarizer interface {
	Summarize(ctx context.Context, text, tone string, maxSentences int) (*summary.Result, error)
}

// PreferenceStore yields the persisted tone and sentence count.
type PreferenceStore interface {
	Get(ctx context.Context) (prefs.Preferences, error)
}

// Router runs one independent chain per trigger event. Chains share
// nothing but the preference store and, when two target the same page,
// the bubble slot (last write wins).
type Router struct {
	host       host.Host
	prefs      PreferenceStore
	summarizer Summarizer
	deliverer  *deliver.Deliverer
	log        *slog.Logger
}

func NewRouter(
	h host.Host,
	store PreferenceStore,
	summarizer Summarizer,
	deliverer *deliver.Deliverer,
	log *slog.Logger,
) *Router {
	return &Router{
		host:       h,
		prefs:      store,
		summarizer: summarizer,
		deliverer:  deliverer,
		log:        log,
	}
}

// MenuEvent is a context-menu activation; the host supplies the selected
// text in the event payload.
type MenuEvent struct {
	Target host.Target
	Text   string
}

// HandleMenu runs the context-menu path.
func (r *Router) HandleMenu(ctx context.Context, ev MenuEvent) {
	r.runChain(ctx, ev.Target, strings.TrimSpace(ev.Text), nil)
}

// HandleShortcut runs the keyboard-shortcut path: resolve the active
// page, probe it for the live selection, then continue like the menu path.
func (r *Router) HandleShortcut(ctx context.Context) {
	target, err := r.host.ActiveTarget(ctx)
	if err != nil {
		r.log.WarnContext(ctx, "No target for shortcut trigger",
			"error", err)
		return
	}

	sel, err := r.host.ReadSelection(ctx, target)
	if err != nil {
		if !errors.Is(err, host.ErrInjectionRefused) {
			r.log.ErrorContext(ctx, "Selection probe failed",
				"error", err,
				"targetID", target.ID,
				"url", target.URL)
			return
		}

		// A page that denies the probe has nothing to summarize.
		sel = host.Selection{}
	}

	r.runChain(ctx, target, strings.TrimSpace(sel.Text), sel.Anchor)
}

func (r *Router) runChain(ctx context.Context, target host.Target, text string, anchor *host.Rect) {
	if text == "" {
		r.showNotice(ctx, target, msgNoSelection)
		return
	}

	// Immediate feedback before network latency.
	if err := r.deliverer.Show(ctx, target, msgLoading, bubble.Options{Loading: true, Anchor: anchor}); err != nil {
		r.log.WarnContext(ctx, "Failed to show loading bubble",
			"error", err,
			"targetID", target.ID)
	}

	p := r.readPreferences(ctx)

	result, err := r.summarizer.Summarize(ctx, text, p.Tone, p.MaxSentences)

	var display string
	if err != nil {
		r.log.ErrorContext(ctx, "Summarization failed",
			"error", err,
			"targetID", target.ID,
			"textLen", len(text))
		display = userMessage(err)
	} else {
		display = result.Summary
	}

	if err := r.deliverer.Show(ctx, target, display, bubble.Options{Anchor: anchor}); err != nil {
		r.log.ErrorContext(ctx, "Failed to deliver result",
			"error", err,
			"targetID", target.ID)
	}
}

// showNotice renders an informational bubble. Notices never use the
// fallback document; a restricted page that cannot show "no text
// selected" just logs it.
func (r *Router) showNotice(ctx context.Context, target host.Target, text string) {
	err := r.deliverer.ShowNotice(ctx, target, text)
	if err != nil {
		r.log.InfoContext(ctx, "Notice not shown",
			"error", err,
			"targetID", target.ID,
			"notice", text)
	}
}

// readPreferences is the single read-and-clamp helper every chain goes
// through, so the trigger paths cannot drift in clamping behavior. Store
// failures degrade to defaults; a broken preference store must not block
// summarization.
func (r *Router) readPreferences(ctx context.Context) prefs.Preferences {
	p, err := r.prefs.Get(ctx)
	if err != nil {
		r.log.WarnContext(ctx, "Preference read failed, using defaults",
			"error", err)
		return prefs.Preferences{
			Tone:         summary.DefaultTone,
			MaxSentences: summary.DefaultSentences,
		}
	}

	p.Tone = summary.NormalizeTone(p.Tone)
	p.MaxSentences = summary.ClampSentences(p.MaxSentences)

	return p
}

// SummarizeRequest is the cross-context request shape. Tone and
// MaxSentences are optional; absent fields fall back to preferences.
type SummarizeRequest struct {
	Text         string `json:"text"`
	Tone         string `json:"tone,omitempty"`
	MaxSentences *int   `json:"maxSentences,omitempty"`
}

// SummarizeResponse is the reply sent back over the same channel.
type SummarizeResponse struct {
	OK    bool            `json:"ok"`
	Data  *summary.Result `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// HandleSummarizeRequest runs the cross-context path: it calls the
// request builder directly and replies instead of rendering; showing the
// result is the caller's responsibility.
func (r *Router) HandleSummarizeRequest(ctx context.Context, req SummarizeRequest) SummarizeResponse {
	p := r.readPreferences(ctx)

	tone := req.Tone
	if strings.TrimSpace(tone) == "" {
		tone = p.Tone
	}

	maxSentences := p.MaxSentences
	if req.MaxSentences != nil {
		maxSentences = summary.ClampSentences(*req.MaxSentences)
	}

	result, err := r.summarizer.Summarize(ctx, req.Text, tone, maxSentences)
	if err != nil {
		r.log.ErrorContext(ctx, "Cross-context summarization failed",
			"error", err,
			"textLen", len(req.Text))

		return SummarizeResponse{OK: false, Error: userMessage(err)}
	}

	return SummarizeResponse{OK: true, Data: result}
}

// HandleShowSummary runs the fire-and-forget render path: a caller that
// already has a summary wants it on the page.
func (r *Router) HandleShowSummary(ctx context.Context, target host.Target, text string) {
	if err := r.deliverer.Show(ctx, target, text, bubble.Options{}); err != nil {
		r.log.ErrorContext(ctx, "Failed to show summary",
			"error", err,
			"targetID", target.ID)
	}
}

// userMessage maps a chain failure to the text a user sees. Raw details
// stay in the logs only.
func userMessage(err error) string {
	if errors.Is(err, summary.ErrEmptyText) {
		return msgNoSelection
	}

	var httpErr *summary.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.Status == 429:
			return msgRateLimited
		case httpErr.Status == 402 || hasQuotaSignal(httpErr.Body):
			return msgBilling
		case httpErr.Status == 502:
			return msgModelBusy
		}
	}

	return msgGeneric
}

func hasQuotaSignal(body string) bool {
	body = strings.ToLower(body)

	return strings.Contains(body, "quota") || strings.Contains(body, "billing")
}
