package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"snipsum/internal/host"
	"snipsum/internal/prefs"
	"snipsum/internal/trigger"
)

// shim is the browser side of the pipe pair for tests: it scripts frames
// into the daemon and collects what the daemon sends back.
type shim struct {
	t        *testing.T
	toDaemon io.Writer
	fromOut  io.Reader
}

func newShimAndBridge(t *testing.T) (*shim, *Bridge, func()) {
	t.Helper()

	inReader, inWriter := io.Pipe()
	outReader, outWriter := io.Pipe()

	b := New(inReader, outWriter, slog.Default())

	cleanup := func() {
		_ = inWriter.Close()
		_ = outWriter.Close()
	}

	return &shim{t: t, toDaemon: inWriter, fromOut: outReader}, b, cleanup
}

func (s *shim) send(env Envelope, payload any) {
	s.t.Helper()

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			s.t.Fatalf("marshal payload: %v", err)
		}
		env.Payload = data
	}

	frame, err := json.Marshal(env)
	if err != nil {
		s.t.Fatalf("marshal envelope: %v", err)
	}

	if err := writeFrame(s.toDaemon, frame); err != nil {
		s.t.Fatalf("write frame: %v", err)
	}
}

func (s *shim) read() Envelope {
	s.t.Helper()

	frame, err := readFrame(s.fromOut)
	if err != nil {
		s.t.Fatalf("read frame: %v", err)
	}

	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		s.t.Fatalf("unmarshal envelope: %v", err)
	}

	return env
}

type stubHandler struct {
	mu        sync.Mutex
	menus     []trigger.MenuEvent
	shortcuts int
	shows     []string
	response  trigger.SummarizeResponse
}

func (h *stubHandler) HandleMenu(_ context.Context, ev trigger.MenuEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.menus = append(h.menus, ev)
}

func (h *stubHandler) HandleShortcut(context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.shortcuts++
}

func (h *stubHandler) HandleSummarizeRequest(_ context.Context, _ trigger.SummarizeRequest) trigger.SummarizeResponse {
	return h.response
}

func (h *stubHandler) HandleShowSummary(_ context.Context, _ host.Target, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.shows = append(h.shows, text)
}

type stubBubbles struct {
	mu     sync.Mutex
	events []string
}

func (b *stubBubbles) record(ev string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}

func (b *stubBubbles) PointerDown(int64, float64, float64)                  { b.record("down") }
func (b *stubBubbles) PointerMove(_ context.Context, _ int64, _, _ float64) { b.record("move") }
func (b *stubBubbles) PointerUp(int64)                                      { b.record("up") }
func (b *stubBubbles) Copy(context.Context, int64)                          { b.record("copy") }
func (b *stubBubbles) Close(context.Context, int64)                         { b.record("close") }

type stubStore struct {
	mu   sync.Mutex
	tone string
	max  int
}

func (s *stubStore) Get(context.Context) (prefs.Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return prefs.Preferences{Tone: s.tone, MaxSentences: s.max}, nil
}

func (s *stubStore) Set(_ context.Context, tone string, maxSentences int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tone = tone
	s.max = maxSentences
	return nil
}

func startBridge(t *testing.T, b *Bridge, h Handler, bubbles Bubbles, store PreferenceStore) {
	t.Helper()

	b.Attach(h, bubbles, store)

	done := make(chan error, 1)
	go func() {
		done <- b.Run(context.Background())
	}()

	t.Cleanup(func() {
		select {
		case err := <-done:
			if err != nil && !errors.Is(err, io.ErrClosedPipe) {
				t.Errorf("bridge run: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Errorf("bridge did not stop")
		}
	})
}

func TestSummarizeSelectionRepliesUnderSameID(t *testing.T) {
	shim, b, cleanup := newShimAndBridge(t)
	handler := &stubHandler{response: trigger.SummarizeResponse{OK: true}}
	startBridge(t, b, handler, &stubBubbles{}, &stubStore{tone: "precise", max: 3})

	shim.send(Envelope{Type: TypeSummarizeSelection, ID: 42}, trigger.SummarizeRequest{Text: "hello"})

	env := shim.read()
	cleanup()

	if env.Type != TypeResult {
		t.Fatalf("expected RESULT, got %q", env.Type)
	}

	if env.ID != 42 {
		t.Fatalf("expected reply under request ID 42, got %d", env.ID)
	}

	var resp trigger.SummarizeResponse
	if err := json.Unmarshal(env.Payload, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}

	if !resp.OK {
		t.Fatalf("expected ok response, got %+v", resp)
	}
}

func TestCommandReplyCorrelation(t *testing.T) {
	shim, b, cleanup := newShimAndBridge(t)
	startBridge(t, b, &stubHandler{}, &stubBubbles{}, &stubStore{})
	defer cleanup()

	// The shim answers the bridge's command out of order relative to an
	// unrelated event, matched purely by ID.
	go func() {
		env := shim.read()
		if env.Type != TypeApplyBubble {
			t.Errorf("expected APPLY_BUBBLE, got %q", env.Type)
		}
		shim.send(Envelope{Type: TypeReply, ID: env.ID}, Reply{OK: true})
	}()

	err := b.ApplyBubble(context.Background(), host.Target{ID: 1}, host.BubbleView{Text: "hi"})
	if err != nil {
		t.Fatalf("apply bubble: %v", err)
	}
}

func TestInjectionRefusalCodeMapsToSentinel(t *testing.T) {
	shim, b, cleanup := newShimAndBridge(t)
	startBridge(t, b, &stubHandler{}, &stubBubbles{}, &stubStore{})
	defer cleanup()

	go func() {
		env := shim.read()
		shim.send(Envelope{Type: TypeReply, ID: env.ID}, Reply{OK: false, Code: codeInjectionRefused})
	}()

	err := b.ApplyBubble(context.Background(), host.Target{ID: 1}, host.BubbleView{})
	if !errors.Is(err, host.ErrInjectionRefused) {
		t.Fatalf("expected ErrInjectionRefused, got %v", err)
	}
}

func TestReadSelectionRoundTrip(t *testing.T) {
	shim, b, cleanup := newShimAndBridge(t)
	startBridge(t, b, &stubHandler{}, &stubBubbles{}, &stubStore{})
	defer cleanup()

	go func() {
		env := shim.read()
		if env.Type != TypeReadSelection {
			t.Errorf("expected READ_SELECTION, got %q", env.Type)
		}
		shim.send(Envelope{Type: TypeReply, ID: env.ID}, Reply{
			OK:        true,
			Selection: &host.Selection{Text: "picked text", Anchor: &host.Rect{X: 1, Y: 2}},
		})
	}()

	sel, err := b.ReadSelection(context.Background(), host.Target{ID: 1})
	if err != nil {
		t.Fatalf("read selection: %v", err)
	}

	if sel.Text != "picked text" {
		t.Fatalf("unexpected selection: %q", sel.Text)
	}

	if sel.Anchor == nil || sel.Anchor.X != 1 {
		t.Fatalf("expected anchor to survive the round trip, got %+v", sel.Anchor)
	}
}

func TestUnknownMessageTypeIsDropped(t *testing.T) {
	shim, b, cleanup := newShimAndBridge(t)
	handler := &stubHandler{}
	startBridge(t, b, handler, &stubBubbles{}, &stubStore{})

	shim.send(Envelope{Type: "SOMETHING_NEW"}, nil)
	shim.send(Envelope{Type: TypeShortcut}, nil)

	waitFor(t, func() bool {
		handler.mu.Lock()
		defer handler.mu.Unlock()
		return handler.shortcuts == 1
	})

	cleanup()
}

func TestPointerEventsReachBubbles(t *testing.T) {
	shim, b, cleanup := newShimAndBridge(t)
	bubbles := &stubBubbles{}
	startBridge(t, b, &stubHandler{}, bubbles, &stubStore{})

	shim.send(Envelope{Type: TypePointer}, Pointer{TargetID: 1, Phase: "down", X: 10, Y: 10})
	shim.send(Envelope{Type: TypePointer}, Pointer{TargetID: 1, Phase: "move", X: 20, Y: 20})
	shim.send(Envelope{Type: TypePointer}, Pointer{TargetID: 1, Phase: "up"})
	shim.send(Envelope{Type: TypeCloseClicked}, CloseClicked{TargetID: 1})

	waitFor(t, func() bool {
		bubbles.mu.Lock()
		defer bubbles.mu.Unlock()
		return len(bubbles.events) == 4
	})

	cleanup()

	bubbles.mu.Lock()
	defer bubbles.mu.Unlock()

	want := []string{"down", "move", "up", "close"}
	for i, ev := range want {
		if bubbles.events[i] != ev {
			t.Fatalf("event %d: expected %q, got %q (all: %v)", i, ev, bubbles.events[i], bubbles.events)
		}
	}
}

func TestRunStopsOnCancelWhileReadBlocked(t *testing.T) {
	_, b, cleanup := newShimAndBridge(t)
	b.Attach(&stubHandler{}, &stubBubbles{}, &stubStore{})
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- b.Run(ctx)
	}()

	// The pipe stays open, so the bridge sits in a blocked read when the
	// cancellation arrives.
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("bridge did not stop on cancellation")
	}
}

func TestPreferenceMessages(t *testing.T) {
	shim, b, cleanup := newShimAndBridge(t)
	store := &stubStore{tone: "precise", max: 3}
	startBridge(t, b, &stubHandler{}, &stubBubbles{}, store)

	five := 5
	shim.send(Envelope{Type: TypeSetPreferences, ID: 7}, SetPreferences{Tone: "bullet", MaxSentences: &five})

	env := shim.read()
	cleanup()

	if env.Type != TypeResult || env.ID != 7 {
		t.Fatalf("unexpected reply envelope: %+v", env)
	}

	var resp preferencesResult
	if err := json.Unmarshal(env.Payload, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}

	if !resp.OK || resp.Data == nil {
		t.Fatalf("unexpected response: %+v", resp)
	}

	if resp.Data.Tone != "bullet" || resp.Data.MaxSentences != 5 {
		t.Fatalf("unexpected stored preferences: %+v", resp.Data)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}

	t.Fatalf("condition not met within deadline")
}
