package tui

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"devdeck/internal/app"
)

func newTestModel(t *testing.T) *Model {
	t.Helper()
	return newTestModelWith(t, app.DefaultConfig(), "")
}

func newTestModelWith(t *testing.T, cfg app.Config, configPath string) *Model {
	t.Helper()
	st := app.NewState(app.ThemePorcelain, "gpt-x")
	store := app.NewFileSessionStore(t.TempDir())
	assistant := app.NewMockAssistant()
	assistant.ChunkDelay = 0
	m := New(st, store, assistant, app.NewLogger(io.Discard), cfg, configPath, []string{"gpt-x", "gpt-y"})
	return applyWindowSize(t, m)
}

func applyWindowSize(t *testing.T, m *Model) *Model {
	t.Helper()
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	out, ok := updated.(*Model)
	if !ok {
		t.Fatalf("expected *Model, got %T", updated)
	}
	return out
}

func pressKey(t *testing.T, m *Model, msg tea.KeyMsg) *Model {
	t.Helper()
	updated, _ := m.Update(msg)
	out, ok := updated.(*Model)
	if !ok {
		t.Fatalf("expected *Model, got %T", updated)
	}
	return out
}

func sendEnter(t *testing.T, m *Model, value string) *Model {
	t.Helper()
	m.input.SetValue(value)
	return pressKey(t, m, tea.KeyMsg{Type: tea.KeyEnter})
}

// drainStream feeds every pending chunk through Update the way the
// bubbletea loop would, ending with the close notification.
func drainStream(t *testing.T, m *Model) *Model {
	t.Helper()
	if m.streamCh == nil {
		t.Fatalf("no stream in flight")
	}
	for chunk := range m.streamCh {
		updated, _ := m.Update(streamChunkMsg{chunk: chunk, ok: true})
		m = updated.(*Model)
	}
	updated, _ := m.Update(streamChunkMsg{ok: false})
	return updated.(*Model)
}

func TestTabCyclesPanels(t *testing.T) {
	m := newTestModel(t)
	if m.state.Panel() != app.PanelChat {
		t.Fatalf("initial panel = %q", m.state.Panel())
	}
	m = pressKey(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.state.Panel() != app.PanelSearch {
		t.Fatalf("after tab: %q, want search", m.state.Panel())
	}
	m = pressKey(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	if m.state.Panel() != app.PanelChat {
		t.Fatalf("after shift+tab: %q, want chat", m.state.Panel())
	}
	// Wraps around backwards too.
	m = pressKey(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	if m.state.Panel() != app.PanelSettings {
		t.Fatalf("after wrap: %q, want settings", m.state.Panel())
	}
}

func TestSendMessageStreamsReply(t *testing.T) {
	m := newTestModel(t)
	m = sendEnter(t, m, "hello")

	sess := m.state.Session()
	if len(sess.Messages) != 2 {
		t.Fatalf("messages = %d, want user + assistant", len(sess.Messages))
	}
	if !m.state.Streaming() {
		t.Fatalf("stream should be open after send")
	}

	m = drainStream(t, m)
	if m.state.Streaming() {
		t.Fatalf("stream should be closed after final chunk")
	}
	last, _ := m.state.Session().LastMessage()
	if !strings.Contains(last.Content, "Hello") {
		t.Fatalf("assembled reply = %q", last.Content)
	}

	// The finished session is persisted for the history panel.
	rows, err := m.store.List(0)
	if err != nil || len(rows) != 1 {
		t.Fatalf("List after stream = %v, %v", rows, err)
	}
}

func TestEscCancelKeepsPartialReply(t *testing.T) {
	m := newTestModel(t)
	m = sendEnter(t, m, "hello")

	chunk := <-m.streamCh
	updated, _ := m.Update(streamChunkMsg{chunk: chunk, ok: true})
	m = updated.(*Model)

	m = pressKey(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.state.Streaming() {
		t.Fatalf("esc should end the stream")
	}
	last, _ := m.state.Session().LastMessage()
	if last.Content != chunk {
		t.Fatalf("partial content = %q, want %q", last.Content, chunk)
	}
	if len(m.state.Session().Messages) != 2 {
		t.Fatalf("cancel must not drop the partial message")
	}
}

func TestSlashCommandsAttachContext(t *testing.T) {
	m := newTestModel(t)
	m = sendEnter(t, m, "/file src/parser.go src/lexer.go")
	m = sendEnter(t, m, "/repo /home/me/project")
	m = sendEnter(t, m, "/note branch main")
	m = sendEnter(t, m, "/tag parser")

	c := m.state.Context()
	if c == nil || len(c.FilePaths) != 2 {
		t.Fatalf("file paths not attached: %+v", c)
	}
	if c.RepositoryPath != "/home/me/project" {
		t.Fatalf("repository path = %q", c.RepositoryPath)
	}
	if c.AdditionalContext["branch"] != "main" {
		t.Fatalf("note not attached: %v", c.AdditionalContext)
	}
	if len(m.state.Session().Tags) != 1 || m.state.Session().Tags[0] != "parser" {
		t.Fatalf("tags = %v", m.state.Session().Tags)
	}

	m = sendEnter(t, m, "/bogus")
	if m.notice == "" {
		t.Fatalf("unknown command should surface an inline notice")
	}
}

func TestSnippetCommandFillsCodePanel(t *testing.T) {
	m := newTestModel(t)
	path := filepath.Join(t.TempDir(), "main.go")
	src := "package main\n\nfunc main() {}\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	m = sendEnter(t, m, "/snippet "+path+" 1 1")
	c := m.state.Context()
	if c == nil || len(c.CodeSnippets) != 1 {
		t.Fatalf("snippet not attached: %+v", c)
	}
	sn := c.CodeSnippets[0]
	if sn.Code != "package main" || sn.Language != "go" || sn.StartLine != 1 || sn.EndLine != 1 {
		t.Fatalf("snippet = %+v", sn)
	}

	// Whole file when no bounds are given.
	m = sendEnter(t, m, "/snippet "+path)
	if len(m.state.Context().CodeSnippets) != 2 {
		t.Fatalf("second snippet not attached")
	}

	for m.state.Panel() != app.PanelCode {
		m = pressKey(t, m, tea.KeyMsg{Type: tea.KeyTab})
	}
	if out := m.View(); !strings.Contains(out, "package main") {
		t.Fatalf("code panel does not show the snippet")
	}

	m = sendEnter(t, m, "/snippet "+filepath.Join(t.TempDir(), "missing.go"))
	if m.notice == "" {
		t.Fatalf("unreadable file should surface an inline notice")
	}
}

func TestAttachCommandRidesNextMessage(t *testing.T) {
	m := newTestModel(t)
	path := filepath.Join(t.TempDir(), "helper.go")
	if err := os.WriteFile(path, []byte("package helper\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	m = sendEnter(t, m, "/attach "+path)
	if len(m.pending) != 1 || m.pending[0].Type != app.AttachmentCode {
		t.Fatalf("pending = %+v", m.pending)
	}
	if out := m.renderChat(); !strings.Contains(out, "helper.go") {
		t.Fatalf("pending attachment not shown above the input")
	}

	m = sendEnter(t, m, "explain this file")
	sess := m.state.Session()
	user := sess.Messages[len(sess.Messages)-2]
	if len(user.Attachments) != 1 || user.Attachments[0].Name != "helper.go" {
		t.Fatalf("attachments on user message = %+v", user.Attachments)
	}
	if user.Attachments[0].Content != "package helper\n" {
		t.Fatalf("attachment content = %q", user.Attachments[0].Content)
	}
	if len(m.pending) != 0 {
		t.Fatalf("pending attachments must clear once sent")
	}
	m = drainStream(t, m)
	if m.state.Streaming() {
		t.Fatalf("stream should be closed")
	}
}

func TestSettingsPersistToConfig(t *testing.T) {
	t.Setenv("DEVDECK_MODEL", "")
	t.Setenv("DEVDECK_THEME", "")
	path := filepath.Join(t.TempDir(), "config.yml")
	m := newTestModelWith(t, app.DefaultConfig(), path)

	m = pressKey(t, m, tea.KeyMsg{Type: tea.KeyCtrlT})
	cfg, err := app.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Theme != string(app.ThemeMidnight) {
		t.Fatalf("persisted theme = %q, want midnight", cfg.Theme)
	}

	for m.state.Panel() != app.PanelSettings {
		m = pressKey(t, m, tea.KeyMsg{Type: tea.KeyTab})
	}
	m = pressKey(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m = pressKey(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	cfg, err = app.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Model != "gpt-y" {
		t.Fatalf("persisted model = %q, want gpt-y", cfg.Model)
	}
}

func TestHistoryLimitBoundsListing(t *testing.T) {
	cfg := app.DefaultConfig()
	cfg.HistoryLimit = 2
	m := newTestModelWith(t, cfg, "")

	for _, text := range []string{"one", "two", "three"} {
		sess := app.NewSession("gpt-x")
		msg, err := app.NewMessage("user", text, sess.CreatedAt)
		if err != nil {
			t.Fatalf("NewMessage: %v", err)
		}
		if err := sess.AppendMessage(msg); err != nil {
			t.Fatalf("append: %v", err)
		}
		if err := m.store.Save(sess); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	msg := m.loadSessions()()
	loaded, ok := msg.(sessionsLoadedMsg)
	if !ok || loaded.err != nil {
		t.Fatalf("loadSessions = %T %v", msg, loaded.err)
	}
	if len(loaded.rows) != 2 {
		t.Fatalf("rows = %d, want history_limit of 2", len(loaded.rows))
	}
}

func TestThemeToggleRoundTrip(t *testing.T) {
	m := newTestModel(t)
	sessModel := m.state.Session().Model
	panel := m.state.Panel()

	m = pressKey(t, m, tea.KeyMsg{Type: tea.KeyCtrlT})
	if m.state.Theme() != app.ThemeMidnight || m.theme.Name != app.ThemeMidnight {
		t.Fatalf("one toggle: state=%q styles=%q", m.state.Theme(), m.theme.Name)
	}
	if m.state.Session().Model != sessModel || m.state.Panel() != panel {
		t.Fatalf("theme toggle changed session model or panel")
	}
	m = pressKey(t, m, tea.KeyMsg{Type: tea.KeyCtrlT})
	if m.state.Theme() != app.ThemePorcelain {
		t.Fatalf("two toggles: %q", m.state.Theme())
	}
}

func TestSettingsModelSelection(t *testing.T) {
	m := newTestModel(t)
	oldSession := m.state.Session()

	// Move to the settings panel and pick the second model.
	for m.state.Panel() != app.PanelSettings {
		m = pressKey(t, m, tea.KeyMsg{Type: tea.KeyTab})
	}
	m = pressKey(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m = pressKey(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if m.state.ActiveModel() != "gpt-y" {
		t.Fatalf("active model = %q", m.state.ActiveModel())
	}
	if oldSession.Model != "gpt-x" {
		t.Fatalf("existing session model changed to %q", oldSession.Model)
	}
}

func TestViewRendersEveryPanel(t *testing.T) {
	m := newTestModel(t)
	m = sendEnter(t, m, "/file a.go")
	for range app.Panels {
		if out := m.View(); out == "" {
			t.Fatalf("empty view for panel %q", m.state.Panel())
		}
		m = pressKey(t, m, tea.KeyMsg{Type: tea.KeyTab})
	}
}
