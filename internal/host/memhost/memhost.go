// Package memhost is an in-memory implementation of host.Host backed by a
// real HTML tree. It exists for tests and headless runs: bubble renders
// become DOM mutations that can be inspected with selectors, so overlay
// idempotency is checked against an actual document instead of a mock.
package memhost

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"snipsum/internal/host"
)

// BubbleElementID is the fixed element identity of the overlay. One
// logical bubble per page hangs off this id.
const BubbleElementID = "snipsum-bubble"

const emptyPage = "<html><head></head><body></body></html>"

type page struct {
	target     host.Target
	doc        *goquery.Document
	selection  host.Selection
	restricted bool
}

// Host holds a set of fake pages. The zero value is not usable; call New.
type Host struct {
	mu       sync.Mutex
	pages    map[int64]*page
	activeID int64

	// OpenedDocs collects HTML passed to OpenDocument.
	OpenedDocs []string

	// Clipboard collects text passed to CopyText.
	Clipboard []string

	// FailClipboard makes CopyText fail, for exercising the swallow path.
	FailClipboard bool
}

func New() *Host {
	return &Host{pages: make(map[int64]*page)}
}

// AddPage registers a page and makes it the active target.
func (h *Host) AddPage(target host.Target) {
	h.mu.Lock()
	defer h.mu.Unlock()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(emptyPage))
	if err != nil {
		panic(fmt.Sprintf("memhost: parse empty page: %v", err))
	}

	h.pages[target.ID] = &page{target: target, doc: doc}
	h.activeID = target.ID
}

// SetSelection sets what the probe will report for a page.
func (h *Host) SetSelection(targetID int64, sel host.Selection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if p, ok := h.pages[targetID]; ok {
		p.selection = sel
	}
}

// Restrict marks a page as refusing injection.
func (h *Host) Restrict(targetID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if p, ok := h.pages[targetID]; ok {
		p.restricted = true
	}
}

func (h *Host) ActiveTarget(_ context.Context) (host.Target, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, ok := h.pages[h.activeID]
	if !ok {
		return host.Target{}, host.ErrNoActiveTarget
	}

	return p.target, nil
}

func (h *Host) ReadSelection(_ context.Context, target host.Target) (host.Selection, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, ok := h.pages[target.ID]
	if !ok {
		return host.Selection{}, host.ErrNoActiveTarget
	}

	if p.restricted {
		return host.Selection{}, host.ErrInjectionRefused
	}

	sel := p.selection
	sel.Text = strings.TrimSpace(sel.Text)

	return sel, nil
}

func (h *Host) ApplyBubble(_ context.Context, target host.Target, view host.BubbleView) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, ok := h.pages[target.ID]
	if !ok {
		return host.ErrNoActiveTarget
	}

	if p.restricted {
		return host.ErrInjectionRefused
	}

	bubble := p.doc.Find("#" + BubbleElementID)
	if bubble.Length() == 0 {
		p.doc.Find("body").AppendHtml(fmt.Sprintf(
			`<div id=%q><div class="header"></div><div class="content"></div></div>`,
			BubbleElementID,
		))
		bubble = p.doc.Find("#" + BubbleElementID)
	}

	bubble.SetAttr("data-theme", view.Theme)
	bubble.SetAttr("data-loading", strconv.FormatBool(view.Loading))
	bubble.SetAttr("style", fmt.Sprintf("left:%.0fpx;top:%.0fpx", view.X, view.Y))
	bubble.Find(".content").SetText(view.Text)

	return nil
}

func (h *Host) RemoveBubble(_ context.Context, target host.Target) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, ok := h.pages[target.ID]
	if !ok {
		return host.ErrNoActiveTarget
	}

	p.doc.Find("#" + BubbleElementID).Remove()

	return nil
}

func (h *Host) OpenDocument(_ context.Context, html string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.OpenedDocs = append(h.OpenedDocs, html)

	return nil
}

func (h *Host) CopyText(_ context.Context, _ host.Target, text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.FailClipboard {
		return fmt.Errorf("clipboard unavailable")
	}

	h.Clipboard = append(h.Clipboard, text)

	return nil
}

// BubbleCount reports how many overlay elements exist in a page.
func (h *Host) BubbleCount(targetID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, ok := h.pages[targetID]
	if !ok {
		return 0
	}

	return p.doc.Find("#" + BubbleElementID).Length()
}

// BubbleText reports the overlay's content text.
func (h *Host) BubbleText(targetID int64) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, ok := h.pages[targetID]
	if !ok {
		return ""
	}

	return p.doc.Find("#" + BubbleElementID + " .content").Text()
}

// BubbleAttr reports an attribute of the overlay element.
func (h *Host) BubbleAttr(targetID int64, name string) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, ok := h.pages[targetID]
	if !ok {
		return ""
	}

	return p.doc.Find("#" + BubbleElementID).AttrOr(name, "")
}
