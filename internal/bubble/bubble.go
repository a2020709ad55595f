// Package bubble owns the transient in-page overlay. One logical bubble
// exists per page; its state lives in an explicit registry keyed by target
// identity so idempotency and the last-write-wins race between concurrent
// chains are visible here instead of being implied by DOM lookups.
package bubble

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"snipsum/internal/host"
)

const (
	// DefaultDwell is how long a freshly created bubble stays on screen
	// before removing itself, unless the user interacts with it first.
	DefaultDwell = 20 * time.Second

	minInset  = 16.0
	anchorGap = 8.0

	defaultX = 24.0
	defaultY = 24.0

	// Nominal overlay size used for viewport clamping. The shim renders
	// the real element; these only keep the anchor position on screen.
	nominalWidth  = 340.0
	nominalHeight = 180.0

	removeTimeout = 5 * time.Second
)

type slot struct {
	target host.Target
	view   host.BubbleView
	timer  *time.Timer

	dragging bool
	pinned   bool
	lastX    float64
	lastY    float64
}

// Renderer creates, updates and tears down bubbles through a host.
type Renderer struct {
	host  host.Host
	dwell time.Duration
	log   *slog.Logger

	mu    sync.Mutex
	slots map[int64]*slot
}

// Options control one render call.
type Options struct {
	// Loading marks the bubble as waiting for a result.
	Loading bool

	// Anchor is the selection bounding box the bubble should sit near.
	// Only honored on creation; updates never move the bubble.
	Anchor *host.Rect
}

func NewRenderer(h host.Host, dwell time.Duration, log *slog.Logger) *Renderer {
	if dwell <= 0 {
		dwell = DefaultDwell
	}

	return &Renderer{
		host:  h,
		dwell: dwell,
		log:   log,
		slots: make(map[int64]*slot),
	}
}

// Render creates the bubble on first call for a target and updates its
// content in place on every later call. The dwell timer is armed once at
// creation and deliberately not reset by content updates; a re-rendered
// bubble keeps its original deadline.
func (r *Renderer) Render(ctx context.Context, target host.Target, text string, opts Options) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[target.ID]
	if !ok {
		s = r.newSlot(target, opts)
		r.slots[target.ID] = s
	}

	s.view.Text = text
	s.view.Loading = opts.Loading

	if err := r.host.ApplyBubble(ctx, s.target, s.view); err != nil {
		if !ok {
			s.stopTimer()
			delete(r.slots, target.ID)
		}

		return err
	}

	return nil
}

func (r *Renderer) newSlot(target host.Target, opts Options) *slot {
	x, y := defaultX, defaultY
	if opts.Anchor != nil {
		x = opts.Anchor.X
		y = opts.Anchor.Y + opts.Anchor.Height + anchorGap
	}

	x, y = clampPosition(x, y, target.Viewport)

	theme := target.ColorScheme
	if theme != "dark" {
		theme = "light"
	}

	s := &slot{
		target: target,
		view: host.BubbleView{
			X:     x,
			Y:     y,
			Theme: theme,
		},
	}

	targetID := target.ID
	s.timer = time.AfterFunc(r.dwell, func() {
		r.expire(targetID)
	})

	return s
}

func (r *Renderer) expire(targetID int64) {
	r.mu.Lock()

	s, ok := r.slots[targetID]
	if !ok || s.pinned {
		r.mu.Unlock()
		return
	}

	delete(r.slots, targetID)
	target := s.target
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), removeTimeout)
	defer cancel()

	if err := r.host.RemoveBubble(ctx, target); err != nil {
		r.log.WarnContext(ctx, "Failed to remove expired bubble",
			"error", err,
			"targetID", targetID)
	}
}

// PointerDown starts a drag on the bubble header. Interaction pins the
// bubble: the auto-dismiss timer is cancelled and never re-armed.
func (r *Renderer) PointerDown(targetID int64, x, y float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[targetID]
	if !ok {
		return
	}

	s.pinned = true
	s.stopTimer()
	s.dragging = true
	s.lastX = x
	s.lastY = y
}

// PointerMove repositions the bubble during a drag. Only position state
// changes; content is untouched.
func (r *Renderer) PointerMove(ctx context.Context, targetID int64, x, y float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[targetID]
	if !ok || !s.dragging {
		return
	}

	s.view.X += x - s.lastX
	s.view.Y += y - s.lastY
	s.lastX = x
	s.lastY = y

	s.view.X, s.view.Y = clampPosition(s.view.X, s.view.Y, s.target.Viewport)

	if err := r.host.ApplyBubble(ctx, s.target, s.view); err != nil {
		r.log.WarnContext(ctx, "Failed to reposition bubble",
			"error", err,
			"targetID", targetID)
	}
}

// PointerUp ends a drag.
func (r *Renderer) PointerUp(targetID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.slots[targetID]; ok {
		s.dragging = false
	}
}

// Copy puts the bubble's current text on the clipboard. Clipboard
// failures are logged and swallowed; copying is not critical.
func (r *Renderer) Copy(ctx context.Context, targetID int64) {
	r.mu.Lock()

	s, ok := r.slots[targetID]
	if !ok {
		r.mu.Unlock()
		return
	}

	s.pinned = true
	s.stopTimer()
	target, text := s.target, s.view.Text
	r.mu.Unlock()

	if err := r.host.CopyText(ctx, target, text); err != nil {
		r.log.WarnContext(ctx, "Failed to copy bubble text",
			"error", err,
			"targetID", targetID)
	}
}

// Close removes the bubble immediately.
func (r *Renderer) Close(ctx context.Context, targetID int64) {
	r.mu.Lock()

	s, ok := r.slots[targetID]
	if !ok {
		r.mu.Unlock()
		return
	}

	s.stopTimer()
	delete(r.slots, targetID)
	target := s.target
	r.mu.Unlock()

	if err := r.host.RemoveBubble(ctx, target); err != nil {
		r.log.WarnContext(ctx, "Failed to remove bubble",
			"error", err,
			"targetID", targetID)
	}
}

func (s *slot) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
	}
}

func clampPosition(x, y float64, viewport host.Size) (float64, float64) {
	if viewport.Width > 0 {
		if limit := viewport.Width - nominalWidth - minInset; x > limit {
			x = limit
		}
	}
	if viewport.Height > 0 {
		if limit := viewport.Height - nominalHeight - minInset; y > limit {
			y = limit
		}
	}

	if x < minInset {
		x = minInset
	}
	if y < minInset {
		y = minInset
	}

	return x, y
}
