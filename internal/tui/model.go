package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"devdeck/internal/app"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

type streamChunkMsg struct {
	chunk string
	ok    bool
}

type spinMsg struct{}

type sessionsLoadedMsg struct {
	rows []app.SessionSummary
	err  error
}

// Model is the application shell: it owns the bubbletea loop, projects the
// core state into whichever panel is active and routes every mutation
// through the named core operations.
type Model struct {
	state     *app.State
	store     app.SessionStore
	assistant app.Assistant
	logger    *app.Logger

	cfg        app.Config
	configPath string

	theme Theme
	keys  keyMap

	input  textarea.Model
	chatVP viewport.Model

	width  int
	height int
	ready  bool

	spinnerPos int
	notice     string

	sessions   []app.SessionSummary
	historySel int

	searchQuery   string
	searchResults []app.SessionSummary

	modelChoices []string
	modelSel     int

	pending []app.Attachment

	streamCh     <-chan string
	cancelStream context.CancelFunc
}

// New builds the shell. configPath may be empty, in which case settings
// changes are not written back to disk.
func New(state *app.State, store app.SessionStore, assistant app.Assistant, logger *app.Logger, cfg app.Config, configPath string, modelChoices []string) *Model {
	ta := textarea.New()
	ta.Placeholder = "Ask about your code. /help for commands."
	ta.Focus()
	ta.CharLimit = 8000
	ta.SetHeight(3)
	ta.Prompt = "▍ "
	ta.ShowLineNumbers = false

	if len(modelChoices) == 0 {
		modelChoices = []string{state.ActiveModel()}
	}
	modelSel := 0
	for i, m := range modelChoices {
		if m == state.ActiveModel() {
			modelSel = i
			break
		}
	}

	m := &Model{
		state:        state,
		store:        store,
		assistant:    assistant,
		logger:       logger,
		cfg:          cfg,
		configPath:   configPath,
		theme:        NewTheme(state.Theme()),
		keys:         defaultKeyMap(),
		input:        ta,
		width:        100,
		height:       30,
		modelChoices: modelChoices,
		modelSel:     modelSel,
	}
	state.Subscribe(m.onStateChange)
	state.NewSession()
	return m
}

// onStateChange runs on every core state notification: it rebuilds the
// cached style set when the theme flips and writes theme/model changes back
// to the config file so they survive a restart.
func (m *Model) onStateChange() {
	if m.theme.Name != m.state.Theme() {
		m.theme = NewTheme(m.state.Theme())
	}
	theme := string(m.state.Theme())
	model := m.state.ActiveModel()
	if m.configPath == "" || (m.cfg.Theme == theme && m.cfg.Model == model) {
		return
	}
	m.cfg.Theme = theme
	m.cfg.Model = model
	if err := app.SaveConfig(m.cfg, m.configPath); err != nil {
		m.logger.Error("config save failed", map[string]interface{}{"error": err.Error()})
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.loadSessions())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.SetWidth(msg.Width - 6)
		vpHeight := msg.Height - 10
		if vpHeight < 3 {
			vpHeight = 3
		}
		if !m.ready {
			m.chatVP = viewport.New(msg.Width-4, vpHeight)
			m.ready = true
		} else {
			m.chatVP.Width = msg.Width - 4
			m.chatVP.Height = vpHeight
		}
		m.refreshChat()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case streamChunkMsg:
		return m.handleStreamChunk(msg)

	case spinMsg:
		if m.state.Streaming() {
			m.spinnerPos = (m.spinnerPos + 1) % len(spinnerFrames)
			return m, m.spinCmd()
		}
		return m, nil

	case sessionsLoadedMsg:
		if msg.err != nil {
			m.notice = msg.err.Error()
			return m, nil
		}
		m.sessions = msg.rows
		if m.historySel >= len(m.sessions) {
			m.historySel = 0
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.stopStream()
		m.persistSession()
		return m, tea.Quit

	case key.Matches(msg, m.keys.NextPanel):
		m.selectPanel(nextPanel(m.state.Panel(), 1))
		return m, m.panelCmd()

	case key.Matches(msg, m.keys.PrevPanel):
		m.selectPanel(nextPanel(m.state.Panel(), -1))
		return m, m.panelCmd()

	case key.Matches(msg, m.keys.ToggleTheme):
		m.state.ToggleTheme()
		return m, nil

	case key.Matches(msg, m.keys.NewSession):
		m.stopStream()
		m.persistSession()
		m.state.NewSession()
		m.pending = nil
		m.notice = ""
		m.refreshChat()
		return m, nil

	case key.Matches(msg, m.keys.Cancel):
		if m.state.Streaming() {
			// Cancellation keeps the partial reply; nothing is discarded.
			m.stopStream()
			m.persistSession()
			m.refreshChat()
		}
		return m, nil
	}

	switch m.state.Panel() {
	case app.PanelChat:
		return m.handleChatKey(msg)
	case app.PanelSearch:
		return m.handleSearchKey(msg)
	case app.PanelHistory:
		return m.handleHistoryKey(msg)
	case app.PanelSettings:
		return m.handleSettingsKey(msg)
	default:
		return m, nil
	}
}

func (m *Model) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Send) {
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		if strings.HasPrefix(text, "/") {
			m.input.Reset()
			m.runSlashCommand(text)
			m.refreshChat()
			return m, nil
		}
		if m.state.Streaming() {
			m.notice = "a reply is still streaming; esc to cancel it first"
			return m, nil
		}
		m.input.Reset()
		return m, m.sendMessage(text)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Send):
		query := strings.TrimSpace(m.input.Value())
		if query == "" {
			return m, nil
		}
		m.searchQuery = query
		rows, err := m.store.Search(query)
		if err != nil {
			m.notice = err.Error()
			return m, nil
		}
		m.searchResults = rows
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleHistoryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.historySel > 0 {
			m.historySel--
		}
		return m, nil
	case key.Matches(msg, m.keys.Down):
		if m.historySel < len(m.sessions)-1 {
			m.historySel++
		}
		return m, nil
	case key.Matches(msg, m.keys.Send):
		if m.historySel >= len(m.sessions) {
			return m, nil
		}
		sess, err := m.store.Load(m.sessions[m.historySel].ID)
		if err != nil {
			m.notice = err.Error()
			return m, nil
		}
		m.stopStream()
		if err := m.state.SetSession(sess); err != nil {
			m.notice = err.Error()
			return m, nil
		}
		m.state.SelectPanel(app.PanelChat)
		m.refreshChat()
		return m, nil
	case key.Matches(msg, m.keys.Delete):
		if m.historySel >= len(m.sessions) {
			return m, nil
		}
		if err := m.store.Delete(m.sessions[m.historySel].ID); err != nil {
			m.notice = err.Error()
			return m, nil
		}
		return m, m.loadSessions()
	}
	return m, nil
}

func (m *Model) handleSettingsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.modelSel > 0 {
			m.modelSel--
		}
		return m, nil
	case key.Matches(msg, m.keys.Down):
		if m.modelSel < len(m.modelChoices)-1 {
			m.modelSel++
		}
		return m, nil
	case key.Matches(msg, m.keys.Send):
		m.state.SetActiveModel(m.modelChoices[m.modelSel])
		return m, nil
	}
	return m, nil
}

// runSlashCommand handles the context-attachment commands. Failures surface
// inline next to the input, never as a crash.
func (m *Model) runSlashCommand(text string) {
	m.notice = ""
	fields := strings.Fields(text)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/file":
		if len(args) == 0 {
			m.notice = "usage: /file <path>"
			return
		}
		delta := app.NewContext()
		for _, p := range args {
			delta = app.AttachFilePath(delta, p)
		}
		m.session().AttachContext(delta)
	case "/snippet":
		if len(args) != 1 && len(args) != 3 {
			m.notice = "usage: /snippet <path> [start end]"
			return
		}
		start, end := 0, 0
		if len(args) == 3 {
			var err error
			if start, err = strconv.Atoi(args[1]); err != nil {
				m.notice = "usage: /snippet <path> [start end]"
				return
			}
			if end, err = strconv.Atoi(args[2]); err != nil {
				m.notice = "usage: /snippet <path> [start end]"
				return
			}
		}
		sn, err := snippetFromFile(args[0], start, end)
		if err != nil {
			m.notice = err.Error()
			return
		}
		m.session().AttachContext(app.AttachSnippet(nil, sn))
		m.notice = fmt.Sprintf("snippet attached: %s (%s)", args[0], sn.Language)
	case "/attach":
		if len(args) == 0 {
			m.notice = "usage: /attach <path>"
			return
		}
		for _, p := range args {
			att, err := attachmentFromFile(p)
			if err != nil {
				m.notice = err.Error()
				return
			}
			m.pending = append(m.pending, att)
		}
		m.notice = fmt.Sprintf("%d attachment(s) will ride your next message", len(m.pending))
	case "/repo":
		if len(args) != 1 {
			m.notice = "usage: /repo <path>"
			return
		}
		delta := app.NewContext()
		delta.RepositoryPath = args[0]
		m.session().AttachContext(delta)
	case "/note":
		if len(args) < 2 {
			m.notice = "usage: /note <key> <value>"
			return
		}
		m.session().AttachContext(app.SetAdditional(nil, args[0], strings.Join(args[1:], " ")))
	case "/tag":
		if len(args) != 1 {
			m.notice = "usage: /tag <tag>"
			return
		}
		m.session().AddTag(args[0])
	case "/untag":
		if len(args) != 1 {
			m.notice = "usage: /untag <tag>"
			return
		}
		m.session().RemoveTag(args[0])
	case "/model":
		if len(args) != 1 {
			m.notice = "usage: /model <name>"
			return
		}
		if err := m.state.SetSessionModel(args[0]); err != nil {
			m.notice = err.Error()
		}
	case "/clearcontext":
		m.session().ClearContext()
	case "/help":
		m.notice = "/file /snippet /attach /repo /note /tag /untag /model /clearcontext"
	default:
		m.notice = "unknown command " + cmd
	}
}

func (m *Model) sendMessage(text string) tea.Cmd {
	now := time.Now().UTC()
	userMsg, err := app.NewMessage("user", text, now)
	if err != nil {
		m.notice = err.Error()
		return nil
	}
	userMsg.ID = "msg_" + uuid.NewString()
	for _, att := range m.pending {
		userMsg.Attach(att)
	}
	m.pending = nil
	if err := m.session().AppendMessage(userMsg); err != nil {
		m.notice = err.Error()
		return nil
	}

	reply, err := app.NewMessage("assistant", "", now)
	if err != nil {
		m.notice = err.Error()
		return nil
	}
	reply.ID = "msg_" + uuid.NewString()
	if err := m.state.BeginAssistantTurn(reply); err != nil {
		m.notice = err.Error()
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelStream = cancel
	m.streamCh = m.assistant.Stream(ctx, m.session().Model, text)
	m.notice = ""
	m.refreshChat()
	m.logger.Info("turn started", map[string]interface{}{"session": m.session().ID})
	return tea.Batch(waitForChunk(m.streamCh), m.spinCmd())
}

func (m *Model) handleStreamChunk(msg streamChunkMsg) (tea.Model, tea.Cmd) {
	if !msg.ok {
		m.stopStream()
		m.persistSession()
		m.refreshChat()
		return m, nil
	}
	if err := m.state.StreamChunk(msg.chunk); err != nil {
		m.notice = err.Error()
		m.stopStream()
		return m, nil
	}
	m.refreshChat()
	return m, waitForChunk(m.streamCh)
}

// stopStream closes the streaming turn. Content received so far stays in
// the session.
func (m *Model) stopStream() {
	if m.cancelStream != nil {
		m.cancelStream()
		m.cancelStream = nil
	}
	m.streamCh = nil
	m.state.EndStream()
}

func (m *Model) persistSession() {
	sess := m.state.Session()
	if sess == nil || len(sess.Messages) == 0 {
		return
	}
	if err := m.store.Save(sess); err != nil {
		m.logger.Error("session save failed", map[string]interface{}{"error": err.Error()})
		m.notice = err.Error()
	}
}

func (m *Model) selectPanel(p app.Panel) {
	m.state.SelectPanel(p)
	m.notice = ""
	if p == app.PanelChat || p == app.PanelSearch {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

// panelCmd returns the refresh command a panel needs on entry.
func (m *Model) panelCmd() tea.Cmd {
	if m.state.Panel() == app.PanelHistory {
		return m.loadSessions()
	}
	return nil
}

func (m *Model) loadSessions() tea.Cmd {
	store, limit := m.store, m.cfg.HistoryLimit
	return func() tea.Msg {
		rows, err := store.List(limit)
		return sessionsLoadedMsg{rows: rows, err: err}
	}
}

func (m *Model) session() *app.Session {
	if s := m.state.Session(); s != nil {
		return s
	}
	return m.state.NewSession()
}

func (m *Model) spinCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return spinMsg{}
	})
}

func waitForChunk(ch <-chan string) tea.Cmd {
	return func() tea.Msg {
		chunk, ok := <-ch
		return streamChunkMsg{chunk: chunk, ok: ok}
	}
}

func nextPanel(current app.Panel, step int) app.Panel {
	idx := 0
	for i, p := range app.Panels {
		if p == current {
			idx = i
			break
		}
	}
	idx = (idx + step + len(app.Panels)) % len(app.Panels)
	return app.Panels[idx]
}

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	switch m.state.Panel() {
	case app.PanelChat:
		b.WriteString(m.renderChat())
	case app.PanelSearch:
		b.WriteString(m.renderSearch())
	case app.PanelRag:
		b.WriteString(m.renderRag())
	case app.PanelHistory:
		b.WriteString(m.renderHistory())
	case app.PanelCode:
		b.WriteString(m.renderCode())
	case app.PanelSettings:
		b.WriteString(m.renderSettings())
	}

	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m *Model) renderHeader() string {
	tabs := make([]string, 0, len(app.Panels))
	for _, p := range app.Panels {
		if p == m.state.Panel() {
			tabs = append(tabs, m.theme.TabActive.Render(string(p)))
		} else {
			tabs = append(tabs, m.theme.Tab.Render(string(p)))
		}
	}
	title := m.theme.TopBarTitle.Render("devdeck")
	badge := m.theme.TopBarBadge.Render(m.state.ActiveModel())
	return m.theme.TopBar.Render(title + "  " + strings.Join(tabs, "") + "  " + badge)
}

func (m *Model) renderFooter() string {
	hints := "tab panels · ctrl+n new · ctrl+t theme · ctrl+c quit"
	if m.state.Streaming() {
		hints = "esc cancel · " + hints
	}
	return m.theme.Footer.Render(hints)
}

func (m *Model) renderSpinner() string {
	if !m.state.Streaming() {
		return ""
	}
	frame := spinnerFrames[m.spinnerPos%len(spinnerFrames)]
	return m.theme.Spinner.Render(fmt.Sprintf("%s thinking...", frame))
}
