package bridge

import (
	"encoding/json"
	"fmt"

	"snipsum/internal/host"
	"snipsum/internal/trigger"
)

// Message types the shim sends to the daemon.
const (
	TypeMenuSelection      = "MENU_SELECTION"
	TypeShortcut           = "SHORTCUT"
	TypeSummarizeSelection = "SUMMARIZE_SELECTION"
	TypeShowSummary        = "SHOW_SUMMARY"
	TypeGetPreferences     = "GET_PREFERENCES"
	TypeSetPreferences     = "SET_PREFERENCES"
	TypePointer            = "POINTER"
	TypeCopyClicked        = "COPY_CLICKED"
	TypeCloseClicked       = "CLOSE_CLICKED"
	TypeReply              = "REPLY"
)

// Message types the daemon sends to the shim.
const (
	TypeActiveTarget  = "ACTIVE_TARGET"
	TypeReadSelection = "READ_SELECTION"
	TypeApplyBubble   = "APPLY_BUBBLE"
	TypeRemoveBubble  = "REMOVE_BUBBLE"
	TypeOpenDocument  = "OPEN_DOCUMENT"
	TypeCopyText      = "COPY_TEXT"
	TypeResult        = "RESULT"
)

// Reply codes for failed daemon commands.
const codeInjectionRefused = "INJECTION_REFUSED"

// Envelope is the wire shape of every frame in both directions. ID is set
// on commands and requests that expect a correlated reply.
type Envelope struct {
	Type    string          `json:"type"`
	ID      int64           `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message is the closed set of decoded inbound frames. Dispatch happens
// on these variants, not on raw type strings, so a new message shape has
// to be added here before any handler can see it.
type Message interface {
	isMessage()
}

// MenuSelection is a context-menu activation; the selection text rides in
// the event payload.
type MenuSelection struct {
	Target host.Target `json:"target"`
	Text   string      `json:"text"`
}

// Shortcut is a keyboard-shortcut activation. The daemon resolves the
// active target and probes for the selection itself.
type Shortcut struct{}

// SummarizeSelection is the cross-context request path. The reply channel
// stays open until the asynchronous result is sent back under the same ID.
type SummarizeSelection struct {
	trigger.SummarizeRequest
}

// ShowSummary pushes an existing summary onto a page. Fire-and-forget.
type ShowSummary struct {
	Target  host.Target `json:"target"`
	Summary string      `json:"summary"`
}

// GetPreferences asks for the persisted tone and sentence count.
type GetPreferences struct{}

// SetPreferences stores new values; absent fields keep their current value.
type SetPreferences struct {
	Tone         string `json:"tone,omitempty"`
	MaxSentences *int   `json:"maxSentences,omitempty"`
}

// Pointer is a pointer event on the bubble header.
type Pointer struct {
	TargetID int64   `json:"targetId"`
	Phase    string  `json:"phase"` // "down", "move" or "up"
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// CopyClicked is the bubble's copy action.
type CopyClicked struct {
	TargetID int64 `json:"targetId"`
}

// CloseClicked is the bubble's close action.
type CloseClicked struct {
	TargetID int64 `json:"targetId"`
}

// Reply answers a daemon command. Exactly one of the optional fields is
// populated depending on the command type.
type Reply struct {
	OK    bool   `json:"ok"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`

	Target    *host.Target    `json:"target,omitempty"`
	Selection *host.Selection `json:"selection,omitempty"`
}

func (MenuSelection) isMessage()      {}
func (Shortcut) isMessage()           {}
func (SummarizeSelection) isMessage() {}
func (ShowSummary) isMessage()        {}
func (GetPreferences) isMessage()     {}
func (SetPreferences) isMessage()     {}
func (Pointer) isMessage()            {}
func (CopyClicked) isMessage()        {}
func (CloseClicked) isMessage()       {}
func (Reply) isMessage()              {}

// decodeMessage turns an envelope into its typed variant. Unknown types
// are an error; the read loop logs and drops them.
func decodeMessage(env Envelope) (Message, error) {
	switch env.Type {
	case TypeMenuSelection:
		return decodePayload[MenuSelection](env)
	case TypeShortcut:
		return Shortcut{}, nil
	case TypeSummarizeSelection:
		return decodePayload[SummarizeSelection](env)
	case TypeShowSummary:
		return decodePayload[ShowSummary](env)
	case TypeGetPreferences:
		return GetPreferences{}, nil
	case TypeSetPreferences:
		return decodePayload[SetPreferences](env)
	case TypePointer:
		return decodePayload[Pointer](env)
	case TypeCopyClicked:
		return decodePayload[CopyClicked](env)
	case TypeCloseClicked:
		return decodePayload[CloseClicked](env)
	case TypeReply:
		return decodePayload[Reply](env)
	default:
		return nil, fmt.Errorf("unknown message type %q", env.Type)
	}
}

func decodePayload[T Message](env Envelope) (Message, error) {
	var msg T
	if len(env.Payload) == 0 {
		return msg, nil
	}

	if err := json.Unmarshal(env.Payload, &msg); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}

	return msg, nil
}
