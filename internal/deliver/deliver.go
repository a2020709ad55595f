// Package deliver routes result text to the user: in-page bubble when the
// host allows injection, a fresh escaped document when it refuses.
package deliver

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"

	"snipsum/internal/bubble"
	"snipsum/internal/host"
)

// Deliverer renders through the bubble renderer and falls back to an
// isolated document on restricted pages.
type Deliverer struct {
	renderer *bubble.Renderer
	host     host.Host
	log      *slog.Logger
}

func New(renderer *bubble.Renderer, h host.Host, log *slog.Logger) *Deliverer {
	return &Deliverer{renderer: renderer, host: h, log: log}
}

// Show displays text on the target page. When in-page injection is
// refused the same text is opened in a new document instead; loading
// states are only meaningful in the bubble and are skipped there.
func (d *Deliverer) Show(ctx context.Context, target host.Target, text string, opts bubble.Options) error {
	err := d.renderer.Render(ctx, target, text, opts)
	if err == nil {
		return nil
	}

	if !errors.Is(err, host.ErrInjectionRefused) {
		return fmt.Errorf("render bubble: %w", err)
	}

	if opts.Loading {
		// No surface to show a spinner on; the final result will open
		// the fallback document.
		return nil
	}

	d.log.InfoContext(ctx, "Injection refused, using fallback document",
		"targetID", target.ID,
		"url", target.URL)

	if err := d.host.OpenDocument(ctx, FallbackDocument(text)); err != nil {
		return fmt.Errorf("open fallback document: %w", err)
	}

	return nil
}

// ShowNotice renders an informational bubble without the document
// fallback; a notice like "no text selected" is not worth opening a new
// page for. The caller decides what to do with a refused injection.
func (d *Deliverer) ShowNotice(ctx context.Context, target host.Target, text string) error {
	return d.renderer.Render(ctx, target, text, bubble.Options{})
}

// FallbackDocument wraps text in a minimal standalone page. The text is
// HTML-escaped so selections containing markup render as literal text.
func FallbackDocument(text string) string {
	return fmt.Sprintf(
		`<!doctype html><html><head><meta charset="utf-8"><title>Summary</title></head>`+
			`<body><pre>%s</pre></body></html>`,
		html.EscapeString(text),
	)
}
