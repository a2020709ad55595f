// Package host defines the boundary to the browsing host. The production
// implementation is the stdio bridge to the extension shim; memhost is an
// in-memory DOM host for tests and headless runs. Nothing behind this
// interface keeps state: the daemon owns every decision, the host only
// applies them to a page.
package host

import (
	"context"
	"errors"
)

// ErrInjectionRefused means the host rejected running anything inside the
// target page (browser-internal pages, store pages and the like). It is
// the signal for the delivery fallback, not a user-visible failure.
var ErrInjectionRefused = errors.New("in-page injection refused by host")

// ErrNoActiveTarget means no page is currently focused.
var ErrNoActiveTarget = errors.New("no active target")

// Target identifies one page the host can act on.
type Target struct {
	ID    int64  `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`

	// ColorScheme is the page's ambient preference, "dark" or "light".
	ColorScheme string `json:"colorScheme,omitempty"`

	// Viewport is the page's visible size in CSS pixels. Zero means
	// unknown; position clamping then only enforces the minimum inset.
	Viewport Size `json:"viewport,omitempty"`
}

type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect is a bounding box in page coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Selection is the result of the in-page probe. Empty text is a valid
// outcome ("nothing to summarize"), never an error.
type Selection struct {
	Text string `json:"text"`

	// Anchor is the selection's bounding box when the page reported
	// one; nil otherwise.
	Anchor *Rect `json:"anchor,omitempty"`
}

// BubbleView is the full visual state of the overlay as decided by the
// renderer. The host applies it verbatim; an existing overlay with the
// same element identity is updated in place.
type BubbleView struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Theme   string  `json:"theme"`
	Text    string  `json:"text"`
	Loading bool    `json:"loading"`
}

// Host is the set of page-level operations the daemon needs. Every call
// is asynchronous from the host's point of view and must honor ctx.
type Host interface {
	// ActiveTarget resolves the currently focused page.
	ActiveTarget(ctx context.Context) (Target, error)

	// ReadSelection runs the zero-argument probe inside the target and
	// returns the live selection, trimmed. Returns ErrInjectionRefused
	// when the page is restricted.
	ReadSelection(ctx context.Context, target Target) (Selection, error)

	// ApplyBubble creates or updates the overlay inside the target.
	ApplyBubble(ctx context.Context, target Target, view BubbleView) error

	// RemoveBubble removes the overlay if present.
	RemoveBubble(ctx context.Context, target Target) error

	// OpenDocument opens a new, isolated document with the given HTML.
	OpenDocument(ctx context.Context, html string) error

	// CopyText puts text on the system clipboard.
	CopyText(ctx context.Context, target Target, text string) error
}
