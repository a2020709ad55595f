// Package bridge speaks the native-messaging protocol with the extension
// shim: length-prefixed JSON frames over stdin/stdout. The shim is
// deliberately dumb; it forwards trigger events and applies page commands.
// The bridge is both the daemon's event source and its host.Host
// implementation, correlating command replies by message ID.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"snipsum/internal/host"
	"snipsum/internal/prefs"
	"snipsum/internal/trigger"
)

const (
	cmdTimeout = 10 * time.Second

	interactionQueueSize = 256
)

// Handler receives normalized trigger events. Implemented by
// trigger.Router.
type Handler interface {
	HandleMenu(ctx context.Context, ev trigger.MenuEvent)
	HandleShortcut(ctx context.Context)
	HandleSummarizeRequest(ctx context.Context, req trigger.SummarizeRequest) trigger.SummarizeResponse
	HandleShowSummary(ctx context.Context, target host.Target, text string)
}

// Bubbles receives bubble interaction events. Implemented by
// bubble.Renderer.
type Bubbles interface {
	PointerDown(targetID int64, x, y float64)
	PointerMove(ctx context.Context, targetID int64, x, y float64)
	PointerUp(targetID int64)
	Copy(ctx context.Context, targetID int64)
	Close(ctx context.Context, targetID int64)
}

// PreferenceStore backs the control surface's preference messages.
type PreferenceStore interface {
	Get(ctx context.Context) (prefs.Preferences, error)
	Set(ctx context.Context, tone string, maxSentences int) error
}

// Bridge connects the daemon to the shim. Construct with New, wire the
// consumers with Attach, then Run.
type Bridge struct {
	in  io.Reader
	out io.Writer
	log *slog.Logger

	handler Handler
	bubbles Bubbles
	prefs   PreferenceStore

	writeMu sync.Mutex

	nextID    atomic.Int64
	pendingMu sync.Mutex
	pending   map[int64]chan Reply

	// interactions serializes bubble events: a pointer-move must never
	// overtake its pointer-down, and none of them may block the read
	// loop (their page commands are answered on it).
	interactions chan Message
}

func New(in io.Reader, out io.Writer, log *slog.Logger) *Bridge {
	return &Bridge{
		in:           in,
		out:          out,
		log:          log,
		pending:      make(map[int64]chan Reply),
		interactions: make(chan Message, interactionQueueSize),
	}
}

// Attach wires the event consumers. Separate from New because the router
// and renderer need the bridge as their host.Host first.
func (b *Bridge) Attach(handler Handler, bubbles Bubbles, store PreferenceStore) {
	b.handler = handler
	b.bubbles = bubbles
	b.prefs = store
}

// Run reads frames until the shim closes the channel or ctx is done.
// Every trigger event starts its own goroutine: chains are independent
// and must not block the read loop (command replies arrive on it).
func (b *Bridge) Run(ctx context.Context) error {
	go b.interactionLoop(ctx)

	type readResult struct {
		frame []byte
		err   error
	}

	// The read runs in its own goroutine so cancellation is not stuck
	// behind a blocked stdin read.
	reads := make(chan readResult)
	go func() {
		for {
			frame, err := readFrame(b.in)
			select {
			case reads <- readResult{frame: frame, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		var res readResult
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res = <-reads:
		}

		if errors.Is(res.err, io.EOF) || errors.Is(res.err, io.ErrUnexpectedEOF) {
			b.log.InfoContext(ctx, "Message channel closed")
			return nil
		}
		if res.err != nil {
			return fmt.Errorf("read frame: %w", res.err)
		}

		var env Envelope
		if err := json.Unmarshal(res.frame, &env); err != nil {
			b.log.WarnContext(ctx, "Dropping malformed frame",
				"error", err,
				"frameLen", len(res.frame))
			continue
		}

		msg, err := decodeMessage(env)
		if err != nil {
			b.log.WarnContext(ctx, "Dropping undecodable message",
				"error", err,
				"type", env.Type)
			continue
		}

		b.dispatch(ctx, env, msg)
	}
}

func (b *Bridge) dispatch(ctx context.Context, env Envelope, msg Message) {
	switch m := msg.(type) {
	case Reply:
		b.resolve(env.ID, m)

	case MenuSelection:
		go b.handler.HandleMenu(ctx, trigger.MenuEvent{Target: m.Target, Text: m.Text})

	case Shortcut:
		go b.handler.HandleShortcut(ctx)

	case SummarizeSelection:
		// The reply channel stays open until the asynchronous result
		// settles; RESULT is sent under the request's ID.
		go func() {
			resp := b.handler.HandleSummarizeRequest(ctx, m.SummarizeRequest)
			b.sendResult(ctx, env.ID, resp)
		}()

	case ShowSummary:
		go b.handler.HandleShowSummary(ctx, m.Target, m.Summary)

	case GetPreferences:
		go b.handleGetPreferences(ctx, env.ID)

	case SetPreferences:
		go b.handleSetPreferences(ctx, env.ID, m)

	case Pointer, CopyClicked, CloseClicked:
		select {
		case b.interactions <- m:
		default:
			b.log.WarnContext(ctx, "Interaction queue full, dropping event",
				"type", env.Type)
		}
	}
}

func (b *Bridge) interactionLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-b.interactions:
			switch m := msg.(type) {
			case Pointer:
				b.handlePointer(ctx, m)
			case CopyClicked:
				b.bubbles.Copy(ctx, m.TargetID)
			case CloseClicked:
				b.bubbles.Close(ctx, m.TargetID)
			}
		}
	}
}

func (b *Bridge) handlePointer(ctx context.Context, m Pointer) {
	switch m.Phase {
	case "down":
		b.bubbles.PointerDown(m.TargetID, m.X, m.Y)
	case "move":
		b.bubbles.PointerMove(ctx, m.TargetID, m.X, m.Y)
	case "up":
		b.bubbles.PointerUp(m.TargetID)
	default:
		b.log.WarnContext(ctx, "Unknown pointer phase",
			"phase", m.Phase,
			"targetID", m.TargetID)
	}
}

type preferencesPayload struct {
	Tone         string `json:"tone"`
	MaxSentences int    `json:"maxSentences"`
}

type preferencesResult struct {
	OK    bool                `json:"ok"`
	Data  *preferencesPayload `json:"data,omitempty"`
	Error string              `json:"error,omitempty"`
}

func (b *Bridge) handleGetPreferences(ctx context.Context, id int64) {
	p, err := b.prefs.Get(ctx)
	if err != nil {
		b.log.ErrorContext(ctx, "Preference read failed", "error", err)
		b.sendResult(ctx, id, preferencesResult{OK: false, Error: "could not read preferences"})
		return
	}

	b.sendResult(ctx, id, preferencesResult{
		OK:   true,
		Data: &preferencesPayload{Tone: p.Tone, MaxSentences: p.MaxSentences},
	})
}

func (b *Bridge) handleSetPreferences(ctx context.Context, id int64, m SetPreferences) {
	current, err := b.prefs.Get(ctx)
	if err != nil {
		b.log.ErrorContext(ctx, "Preference read failed", "error", err)
		b.sendResult(ctx, id, preferencesResult{OK: false, Error: "could not read preferences"})
		return
	}

	tone := current.Tone
	if m.Tone != "" {
		tone = m.Tone
	}

	maxSentences := current.MaxSentences
	if m.MaxSentences != nil {
		maxSentences = *m.MaxSentences
	}

	if err := b.prefs.Set(ctx, tone, maxSentences); err != nil {
		b.log.ErrorContext(ctx, "Preference write failed", "error", err)
		b.sendResult(ctx, id, preferencesResult{OK: false, Error: "could not save preferences"})
		return
	}

	b.handleGetPreferences(ctx, id)
}

func (b *Bridge) sendResult(ctx context.Context, id int64, payload any) {
	if err := b.send(Envelope{Type: TypeResult, ID: id}, payload); err != nil {
		b.log.ErrorContext(ctx, "Failed to send result",
			"error", err,
			"id", id)
	}
}

func (b *Bridge) send(env Envelope, payload any) error {
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		env.Payload = data
	}

	frame, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	return writeFrame(b.out, frame)
}

// command sends one envelope and waits for its correlated Reply.
func (b *Bridge) command(ctx context.Context, typ string, payload any) (Reply, error) {
	id := b.nextID.Add(1)
	ch := make(chan Reply, 1)

	b.pendingMu.Lock()
	b.pending[id] = ch
	b.pendingMu.Unlock()

	defer func() {
		b.pendingMu.Lock()
		delete(b.pending, id)
		b.pendingMu.Unlock()
	}()

	if err := b.send(Envelope{Type: typ, ID: id}, payload); err != nil {
		return Reply{}, fmt.Errorf("send %s: %w", typ, err)
	}

	timer := time.NewTimer(cmdTimeout)
	defer timer.Stop()

	select {
	case reply := <-ch:
		return reply, nil
	case <-timer.C:
		return Reply{}, fmt.Errorf("%s: no reply within %s", typ, cmdTimeout)
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}
}

func (b *Bridge) resolve(id int64, reply Reply) {
	b.pendingMu.Lock()
	ch, ok := b.pending[id]
	delete(b.pending, id)
	b.pendingMu.Unlock()

	if !ok {
		b.log.Warn("Reply with no pending command", "id", id)
		return
	}

	ch <- reply
}

func replyErr(reply Reply) error {
	if reply.OK {
		return nil
	}

	if reply.Code == codeInjectionRefused {
		return host.ErrInjectionRefused
	}

	return fmt.Errorf("host error: %s", reply.Error)
}

type targetPayload struct {
	Target host.Target `json:"target"`
}

type applyBubblePayload struct {
	Target host.Target     `json:"target"`
	View   host.BubbleView `json:"view"`
}

type openDocumentPayload struct {
	HTML string `json:"html"`
}

type copyTextPayload struct {
	Target host.Target `json:"target"`
	Text   string      `json:"text"`
}

// ActiveTarget implements host.Host.
func (b *Bridge) ActiveTarget(ctx context.Context) (host.Target, error) {
	reply, err := b.command(ctx, TypeActiveTarget, nil)
	if err != nil {
		return host.Target{}, err
	}

	if err := replyErr(reply); err != nil {
		return host.Target{}, err
	}

	if reply.Target == nil {
		return host.Target{}, host.ErrNoActiveTarget
	}

	return *reply.Target, nil
}

// ReadSelection implements host.Host.
func (b *Bridge) ReadSelection(ctx context.Context, target host.Target) (host.Selection, error) {
	reply, err := b.command(ctx, TypeReadSelection, targetPayload{Target: target})
	if err != nil {
		return host.Selection{}, err
	}

	if err := replyErr(reply); err != nil {
		return host.Selection{}, err
	}

	if reply.Selection == nil {
		return host.Selection{}, nil
	}

	return *reply.Selection, nil
}

// ApplyBubble implements host.Host.
func (b *Bridge) ApplyBubble(ctx context.Context, target host.Target, view host.BubbleView) error {
	reply, err := b.command(ctx, TypeApplyBubble, applyBubblePayload{Target: target, View: view})
	if err != nil {
		return err
	}

	return replyErr(reply)
}

// RemoveBubble implements host.Host.
func (b *Bridge) RemoveBubble(ctx context.Context, target host.Target) error {
	reply, err := b.command(ctx, TypeRemoveBubble, targetPayload{Target: target})
	if err != nil {
		return err
	}

	return replyErr(reply)
}

// OpenDocument implements host.Host.
func (b *Bridge) OpenDocument(ctx context.Context, html string) error {
	reply, err := b.command(ctx, TypeOpenDocument, openDocumentPayload{HTML: html})
	if err != nil {
		return err
	}

	return replyErr(reply)
}

// CopyText implements host.Host.
func (b *Bridge) CopyText(ctx context.Context, target host.Target, text string) error {
	reply, err := b.command(ctx, TypeCopyText, copyTextPayload{Target: target, Text: text})
	if err != nil {
		return err
	}

	return replyErr(reply)
}
