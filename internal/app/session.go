package app

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Session is the aggregate conversation record exchanged with a backend and
// rendered by the panels: ordered messages, metadata and an optional context
// bundle. Messages are append-only from the UI's perspective, except for
// in-place edits to the newest assistant message while a reply streams in.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Tags      []string  `json:"tags"`
	Context   *Context  `json:"context,omitempty"`
}

func NewSession(model string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        "session_" + uuid.NewString(),
		Messages:  []Message{},
		Model:     model,
		CreatedAt: now,
		UpdatedAt: now,
		Tags:      []string{},
	}
}

func (s *Session) touch() {
	s.UpdatedAt = time.Now().UTC()
}

// AppendMessage appends msg, enforcing that timestamps never decrease by
// array position. The first user message also seeds the session title so
// session lists are meaningful without an extra model call.
func (s *Session) AppendMessage(msg Message) error {
	if n := len(s.Messages); n > 0 {
		last := s.Messages[n-1].Timestamp
		if msg.Timestamp.Before(last) {
			return &OrderingError{
				Prev: last.Format(time.RFC3339Nano),
				Next: msg.Timestamp.Format(time.RFC3339Nano),
			}
		}
	}
	s.Messages = append(s.Messages, msg)
	if s.Title == "" && msg.Role == RoleUser {
		s.Title = deriveTitle(msg.Content)
	}
	s.touch()
	return nil
}

// UpdateLastMessage rewrites the content of the newest message through mut.
// It is the only sanctioned way to apply streaming updates: the last message
// must be an assistant turn, and the mutator sees content only, so role and
// timestamp cannot drift however the UI triggers the edit.
func (s *Session) UpdateLastMessage(mut func(content string) string) error {
	n := len(s.Messages)
	if n == 0 {
		return &StateError{Op: "update last message", Reason: "session has no messages"}
	}
	last := &s.Messages[n-1]
	if last.Role != RoleAssistant {
		return &StateError{Op: "update last message", Reason: "last message is not an assistant turn"}
	}
	last.Content = mut(last.Content)
	s.touch()
	return nil
}

// AttachContext merges delta into the session's context bundle. Aggregation
// is additive: nothing previously attached is dropped.
func (s *Session) AttachContext(delta *Context) {
	if delta == nil {
		return
	}
	s.Context = Merge(s.Context, delta)
	s.touch()
}

// ClearContext drops the context bundle, the one sanctioned non-additive
// context operation.
func (s *Session) ClearContext() {
	s.Context = nil
	s.touch()
}

func (s *Session) Rename(title string) {
	s.Title = title
	s.touch()
}

// AddTag appends tag unless already present, preserving insertion order for
// display.
func (s *Session) AddTag(tag string) {
	for _, t := range s.Tags {
		if t == tag {
			return
		}
	}
	s.Tags = append(s.Tags, tag)
	s.touch()
}

func (s *Session) RemoveTag(tag string) {
	kept := s.Tags[:0]
	for _, t := range s.Tags {
		if t != tag {
			kept = append(kept, t)
		}
	}
	s.Tags = kept
	s.touch()
}

// Validate re-checks the model invariants for a session loaded from an
// external collaborator, reporting the first violation. Locally created
// sessions maintain these by construction. Context file paths are sorted
// and deduplicated in place, since external producers give no ordering
// guarantee.
func (s *Session) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return &ValidationError{Field: "session.id", Reason: "must not be empty"}
	}
	if s.UpdatedAt.Before(s.CreatedAt) {
		return &ValidationError{Field: "session.updated_at", Reason: "must not precede created_at"}
	}
	var prev time.Time
	for i, m := range s.Messages {
		if _, ok := ParseRole(string(m.Role)); !ok {
			return &ValidationError{Field: "message.role", Reason: "unknown role " + string(m.Role)}
		}
		if i > 0 && m.Timestamp.Before(prev) {
			return &ValidationError{Field: "message.timestamp", Reason: "timestamps must be non-decreasing by index"}
		}
		prev = m.Timestamp
	}
	if s.Context != nil {
		s.Context.normalizeFilePaths()
		for _, sn := range s.Context.CodeSnippets {
			if _, err := NewCodeSnippet(sn.Code, sn.Language, sn.FilePath, sn.StartLine, sn.EndLine); err != nil {
				return err
			}
		}
	}
	return nil
}

// LastMessage returns the newest message, if any.
func (s *Session) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// deriveTitle condenses the first non-empty line of a message into a short
// session title.
func deriveTitle(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	line := ""
	for _, l := range strings.Split(content, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			line = l
			break
		}
	}
	line = strings.Join(strings.Fields(line), " ")
	const max = 60
	if runes := []rune(line); len(runes) > max {
		line = strings.TrimSpace(string(runes[:max-3])) + "..."
	}
	return line
}
