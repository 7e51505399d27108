package app

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileSessionStore is the JSON-on-disk fallback store: one pretty-printed
// file per session under <root>/history/<sessionID>.json.
type FileSessionStore struct {
	Root string
}

func NewFileSessionStore(root string) *FileSessionStore {
	if strings.TrimSpace(root) == "" {
		root = DefaultStorageRoot()
	}
	return &FileSessionStore{Root: root}
}

func (s *FileSessionStore) historyDir() string {
	return filepath.Join(s.Root, "history")
}

func (s *FileSessionStore) sessionPath(id string) string {
	return filepath.Join(s.historyDir(), id+".json")
}

func (s *FileSessionStore) Close() error { return nil }

func (s *FileSessionStore) Save(sess *Session) error {
	if err := sess.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.historyDir(), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.sessionPath(sess.ID), data, 0o644)
}

func (s *FileSessionStore) Load(id string) (*Session, error) {
	data, err := os.ReadFile(s.sessionPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, &ValidationError{Field: "session", Reason: "stored session is not valid JSON"}
	}
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *FileSessionStore) Delete(id string) error {
	err := os.Remove(s.sessionPath(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (s *FileSessionStore) List(limit int) ([]SessionSummary, error) {
	sessions, err := s.loadAll()
	if err != nil {
		return nil, err
	}
	out := make([]SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, summarize(sess))
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *FileSessionStore) Search(query string) ([]SessionSummary, error) {
	return s.filter(func(sess *Session) bool { return matchesQuery(sess, query) })
}

func (s *FileSessionStore) FilterByTag(tag string) ([]SessionSummary, error) {
	return s.filter(func(sess *Session) bool { return hasTag(sess.Tags, tag) })
}

func (s *FileSessionStore) filter(keep func(*Session) bool) ([]SessionSummary, error) {
	sessions, err := s.loadAll()
	if err != nil {
		return nil, err
	}
	out := []SessionSummary{}
	for _, sess := range sessions {
		if keep(sess) {
			out = append(out, summarize(sess))
		}
	}
	return out, nil
}

// loadAll reads every session file, skipping unreadable or invalid ones, and
// returns the rest newest first.
func (s *FileSessionStore) loadAll() ([]*Session, error) {
	entries, err := os.ReadDir(s.historyDir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	sessions := []*Session{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		sess, err := s.Load(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			continue
		}
		sessions = append(sessions, sess)
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}
