package app

import "strings"

// Panel identifies one of the six top-level view modes.
type Panel string

const (
	PanelChat     Panel = "chat"
	PanelSearch   Panel = "search"
	PanelRag      Panel = "rag"
	PanelHistory  Panel = "history"
	PanelCode     Panel = "code"
	PanelSettings Panel = "settings"
)

// Panels lists every panel in display order.
var Panels = []Panel{PanelChat, PanelSearch, PanelRag, PanelHistory, PanelCode, PanelSettings}

func ParsePanel(value string) (Panel, bool) {
	v := Panel(strings.ToLower(strings.TrimSpace(value)))
	for _, p := range Panels {
		if p == v {
			return p, true
		}
	}
	return Panel(""), false
}

type Theme string

const (
	ThemePorcelain Theme = "porcelain"
	ThemeMidnight  Theme = "midnight"
)

func ParseTheme(value string) (Theme, bool) {
	switch Theme(strings.ToLower(strings.TrimSpace(value))) {
	case ThemePorcelain:
		return ThemePorcelain, true
	case ThemeMidnight:
		return ThemeMidnight, true
	default:
		return Theme(""), false
	}
}

// State is the single owner of every piece of cross-panel state: the active
// panel, theme, active model and the current session. Panels read the
// projections and mutate only through the named operations here, so the
// model invariants cannot be bypassed by direct field assignment.
//
// All mutation is event-driven and single-threaded: each operation runs to
// completion before the next event is processed, so no locking is needed.
type State struct {
	panel       Panel
	theme       Theme
	activeModel string
	session     *Session
	streaming   bool

	subs []func()
}

func NewState(theme Theme, model string) *State {
	return &State{
		panel:       PanelChat,
		theme:       theme,
		activeModel: model,
	}
}

// Subscribe registers fn to run once per observable state change.
func (st *State) Subscribe(fn func()) {
	st.subs = append(st.subs, fn)
}

func (st *State) notify() {
	for _, fn := range st.subs {
		fn()
	}
}

// Read-only projections for the presentation layer.

func (st *State) Panel() Panel        { return st.panel }
func (st *State) Theme() Theme        { return st.theme }
func (st *State) ActiveModel() string { return st.activeModel }
func (st *State) Session() *Session   { return st.session }
func (st *State) Streaming() bool     { return st.streaming }

// Context returns the current session's context bundle, if any.
func (st *State) Context() *Context {
	if st.session == nil {
		return nil
	}
	return st.session.Context
}

// SelectPanel switches the active view. Every panel is reachable from every
// other, switching has no side effect on the session or context, and
// re-selecting the active panel is a no-op with no redundant notification.
func (st *State) SelectPanel(target Panel) {
	if target == st.panel {
		return
	}
	st.panel = target
	st.notify()
}

// ToggleTheme flips between the two palettes. Theme is observable by every
// panel and survives panel transitions.
func (st *State) ToggleTheme() {
	if st.theme == ThemeMidnight {
		st.theme = ThemePorcelain
	} else {
		st.theme = ThemeMidnight
	}
	st.notify()
}

// SetActiveModel records the model used for subsequently created sessions.
// Already-created sessions keep their own model, streaming or not.
func (st *State) SetActiveModel(model string) {
	if model == st.activeModel {
		return
	}
	st.activeModel = model
	st.notify()
}

// NewSession replaces the working session with a fresh one bound to the
// active model.
func (st *State) NewSession() *Session {
	st.session = NewSession(st.activeModel)
	st.streaming = false
	st.notify()
	return st.session
}

// SetSession installs an externally loaded session (e.g. resumed from the
// history store) after re-validating it against the model invariants.
func (st *State) SetSession(sess *Session) error {
	if sess != nil {
		if err := sess.Validate(); err != nil {
			return err
		}
	}
	st.session = sess
	st.streaming = false
	st.notify()
	return nil
}

// SetSessionModel rebinds the working session to a model. Rebinding is only
// legal between turns, never while a reply is streaming in.
func (st *State) SetSessionModel(model string) error {
	if st.session == nil {
		return &StateError{Op: "set session model", Reason: "no session"}
	}
	if st.streaming {
		return &StateError{Op: "set session model", Reason: "a reply is streaming"}
	}
	st.session.Model = model
	st.session.touch()
	st.notify()
	return nil
}

// BeginAssistantTurn opens a streaming assistant reply: an empty assistant
// message is appended and subsequent StreamChunk calls grow it in order.
func (st *State) BeginAssistantTurn(msg Message) error {
	if st.session == nil {
		return &StateError{Op: "begin assistant turn", Reason: "no session"}
	}
	if st.streaming {
		return &StateError{Op: "begin assistant turn", Reason: "a reply is already streaming"}
	}
	if msg.Role != RoleAssistant {
		return &StateError{Op: "begin assistant turn", Reason: "message role must be assistant"}
	}
	if err := st.session.AppendMessage(msg); err != nil {
		return err
	}
	st.streaming = true
	st.notify()
	return nil
}

// StreamChunk appends one ordered token chunk to the in-progress assistant
// reply.
func (st *State) StreamChunk(chunk string) error {
	if !st.streaming {
		return &StateError{Op: "stream chunk", Reason: "no reply is streaming"}
	}
	if err := st.session.UpdateLastMessage(func(content string) string {
		return content + chunk
	}); err != nil {
		return err
	}
	st.notify()
	return nil
}

// EndStream closes the streaming turn. On cancellation the partial content
// streamed so far is kept and marked complete; history is never silently
// truncated.
func (st *State) EndStream() {
	if !st.streaming {
		return
	}
	st.streaming = false
	st.notify()
}
