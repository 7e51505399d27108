package app

import (
	"errors"
	"strings"
	"time"
)

// ErrSessionNotFound is returned when a store has no session for an id.
var ErrSessionNotFound = errors.New("session not found")

// SessionSummary is the lightweight row shown in the history and search
// panels and by the history CLI command.
type SessionSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Model        string    `json:"model"`
	MessageCount int       `json:"message_count"`
	Tags         []string  `json:"tags"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SessionStore persists sessions for the history, search and rag panels.
//
// Implementations must preserve message ordering, return summaries newest
// first, and validate loaded sessions against the model invariants so a
// corrupted store surfaces as a ValidationError rather than bad state.
type SessionStore interface {
	Save(sess *Session) error
	Load(id string) (*Session, error)
	Delete(id string) error
	List(limit int) ([]SessionSummary, error)
	Search(query string) ([]SessionSummary, error)
	FilterByTag(tag string) ([]SessionSummary, error)
	Close() error
}

// matchesQuery implements the search contract shared by both stores: a
// case-insensitive substring match over title, tags and message content.
func matchesQuery(sess *Session, query string) bool {
	q := strings.ToLower(query)
	if strings.Contains(strings.ToLower(sess.Title), q) {
		return true
	}
	for _, tag := range sess.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	for _, m := range sess.Messages {
		if strings.Contains(strings.ToLower(m.Content), q) {
			return true
		}
	}
	return false
}

func summarize(sess *Session) SessionSummary {
	return SessionSummary{
		ID:           sess.ID,
		Title:        sess.Title,
		Model:        sess.Model,
		MessageCount: len(sess.Messages),
		Tags:         sess.Tags,
		UpdatedAt:    sess.UpdatedAt,
	}
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
