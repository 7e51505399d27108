package app

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteSessionStore keeps sessions in a single sqlite database under the
// storage root. It is the default store; the JSON file store remains as a
// fallback when the database cannot be opened.
type SQLiteSessionStore struct {
	Root   string
	dbPath string

	db   *sql.DB
	once sync.Once
	err  error
}

func NewSQLiteSessionStore(root string) (*SQLiteSessionStore, error) {
	if strings.TrimSpace(root) == "" {
		root = DefaultStorageRoot()
	}
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	st := &SQLiteSessionStore{
		Root:   root,
		dbPath: filepath.Join(root, "devdeck.db"),
	}
	// Initialize eagerly so callers fail fast.
	if err := st.init(); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *SQLiteSessionStore) init() error {
	s.once.Do(func() {
		db, err := sql.Open("sqlite", s.dbPath)
		if err != nil {
			s.err = err
			return
		}
		// Keep sqlite responsive under contention.
		_, _ = db.Exec("PRAGMA busy_timeout = 5000;")
		_, _ = db.Exec("PRAGMA journal_mode = WAL;")
		_, _ = db.Exec("PRAGMA synchronous = NORMAL;")

		schema := []string{
			`CREATE TABLE IF NOT EXISTS sessions (
				id TEXT PRIMARY KEY,
				title TEXT,
				model TEXT NOT NULL,
				tags TEXT NOT NULL,
				context TEXT,
				created_at_ns INTEGER NOT NULL,
				updated_at_ns INTEGER NOT NULL
			);`,
			`CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at_ns);`,
			`CREATE TABLE IF NOT EXISTS messages (
				session_id TEXT NOT NULL,
				pos INTEGER NOT NULL,
				id TEXT,
				role TEXT NOT NULL,
				content TEXT NOT NULL,
				attachments TEXT,
				created_at_ns INTEGER NOT NULL,
				PRIMARY KEY (session_id, pos)
			);`,
			`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, pos);`,
		}
		for _, stmt := range schema {
			if _, err := db.Exec(stmt); err != nil {
				_ = db.Close()
				s.err = err
				return
			}
		}
		s.db = db
	})
	return s.err
}

func (s *SQLiteSessionStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteSessionStore) Save(sess *Session) error {
	if err := sess.Validate(); err != nil {
		return err
	}
	tags, err := json.Marshal(sess.Tags)
	if err != nil {
		return err
	}
	var contextJSON []byte
	if sess.Context != nil {
		contextJSON, err = json.Marshal(sess.Context)
		if err != nil {
			return err
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`INSERT INTO sessions (id, title, model, tags, context, created_at_ns, updated_at_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			model = excluded.model,
			tags = excluded.tags,
			context = excluded.context,
			updated_at_ns = excluded.updated_at_ns`,
		sess.ID, sess.Title, sess.Model, string(tags), nullableString(contextJSON),
		sess.CreatedAt.UnixNano(), sess.UpdatedAt.UnixNano())
	if err != nil {
		return err
	}

	// Messages are rewritten wholesale; sessions are small and this keeps
	// position the single source of ordering.
	if _, err := tx.Exec(`DELETE FROM messages WHERE session_id = ?`, sess.ID); err != nil {
		return err
	}
	for i, m := range sess.Messages {
		var attachments []byte
		if len(m.Attachments) > 0 {
			attachments, err = json.Marshal(m.Attachments)
			if err != nil {
				return err
			}
		}
		_, err = tx.Exec(`INSERT INTO messages (session_id, pos, id, role, content, attachments, created_at_ns)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sess.ID, i, m.ID, string(m.Role), m.Content, nullableString(attachments), m.Timestamp.UnixNano())
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteSessionStore) Load(id string) (*Session, error) {
	row := s.db.QueryRow(`SELECT id, title, model, tags, context, created_at_ns, updated_at_ns
		FROM sessions WHERE id = ?`, id)

	var sess Session
	var tagsJSON string
	var contextJSON sql.NullString
	var createdNs, updatedNs int64
	err := row.Scan(&sess.ID, &sess.Title, &sess.Model, &tagsJSON, &contextJSON, &createdNs, &updatedNs)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &sess.Tags); err != nil {
		return nil, &ValidationError{Field: "session.tags", Reason: "stored tags are not valid JSON"}
	}
	if contextJSON.Valid && contextJSON.String != "" {
		var c Context
		if err := json.Unmarshal([]byte(contextJSON.String), &c); err != nil {
			return nil, &ValidationError{Field: "session.context", Reason: "stored context is not valid JSON"}
		}
		sess.Context = &c
	}
	sess.CreatedAt = time.Unix(0, createdNs).UTC()
	sess.UpdatedAt = time.Unix(0, updatedNs).UTC()

	rows, err := s.db.Query(`SELECT id, role, content, attachments, created_at_ns
		FROM messages WHERE session_id = ? ORDER BY pos ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sess.Messages = []Message{}
	for rows.Next() {
		var m Message
		var msgID, role string
		var attachments sql.NullString
		var tsNs int64
		if err := rows.Scan(&msgID, &role, &m.Content, &attachments, &tsNs); err != nil {
			return nil, err
		}
		m.ID = msgID
		m.Role = Role(role)
		m.Timestamp = time.Unix(0, tsNs).UTC()
		if attachments.Valid && attachments.String != "" {
			if err := json.Unmarshal([]byte(attachments.String), &m.Attachments); err != nil {
				return nil, &ValidationError{Field: "message.attachments", Reason: "stored attachments are not valid JSON"}
			}
		}
		sess.Messages = append(sess.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *SQLiteSessionStore) Delete(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.Exec(`DELETE FROM messages WHERE session_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteSessionStore) List(limit int) ([]SessionSummary, error) {
	q := `SELECT s.id, s.title, s.model, s.tags, s.updated_at_ns,
			(SELECT COUNT(*) FROM messages m WHERE m.session_id = s.id)
		FROM sessions s ORDER BY s.updated_at_ns DESC`
	args := []interface{}{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []SessionSummary{}
	for rows.Next() {
		var sum SessionSummary
		var tagsJSON string
		var updatedNs int64
		if err := rows.Scan(&sum.ID, &sum.Title, &sum.Model, &tagsJSON, &updatedNs, &sum.MessageCount); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(tagsJSON), &sum.Tags); err != nil {
			sum.Tags = nil
		}
		sum.UpdatedAt = time.Unix(0, updatedNs).UTC()
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Search matches a query against title, tags and message content, newest
// first. Matching happens in Go over loaded sessions so the contract is
// identical to the file store's.
func (s *SQLiteSessionStore) Search(query string) ([]SessionSummary, error) {
	return s.filter(func(sess *Session) bool { return matchesQuery(sess, query) })
}

func (s *SQLiteSessionStore) FilterByTag(tag string) ([]SessionSummary, error) {
	return s.filter(func(sess *Session) bool { return hasTag(sess.Tags, tag) })
}

func (s *SQLiteSessionStore) filter(keep func(*Session) bool) ([]SessionSummary, error) {
	summaries, err := s.List(0)
	if err != nil {
		return nil, err
	}
	out := []SessionSummary{}
	for _, sum := range summaries {
		sess, err := s.Load(sum.ID)
		if err != nil {
			continue
		}
		if keep(sess) {
			out = append(out, summarize(sess))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func nullableString(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
