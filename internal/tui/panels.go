package tui

import (
	"fmt"
	"sort"
	"strings"

	"devdeck/internal/app"
)

// refreshChat re-renders the conversation into the viewport and pins the
// view to the newest message.
func (m *Model) refreshChat() {
	if !m.ready {
		return
	}
	m.chatVP.SetContent(m.renderMessages())
	m.chatVP.GotoBottom()
}

func (m *Model) renderChat() string {
	var b strings.Builder
	if m.ready {
		b.WriteString(m.chatVP.View())
	} else {
		b.WriteString(m.renderMessages())
	}
	b.WriteString("\n")
	if m.notice != "" {
		b.WriteString(m.theme.Notice.Render(m.notice))
		b.WriteString("\n")
	}
	if len(m.pending) > 0 {
		chips := make([]string, 0, len(m.pending))
		for _, att := range m.pending {
			chips = append(chips, fmt.Sprintf("[%s %s]", att.Type, att.Name))
		}
		b.WriteString(m.theme.ListMuted.Render(strings.Join(chips, " ")))
		b.WriteString("\n")
	}
	b.WriteString(m.theme.InputBox.Width(m.width - 4).Render(m.input.View()))
	if sp := m.renderSpinner(); sp != "" {
		b.WriteString("\n")
		b.WriteString(sp)
	}
	return b.String()
}

func (m *Model) renderMessages() string {
	sess := m.state.Session()
	if sess == nil || len(sess.Messages) == 0 {
		return m.theme.ListMuted.Render("No messages yet. Say hello.")
	}
	var b strings.Builder
	for _, msg := range sess.Messages {
		var header string
		switch msg.Role {
		case app.RoleUser:
			header = m.theme.RoleYou.Render("you") + m.theme.ListMuted.Render(" · "+msg.Timestamp.Format("15:04:05"))
		case app.RoleAssistant:
			header = m.theme.RoleAI.Render(sess.Model) + m.theme.ListMuted.Render(" · "+msg.Timestamp.Format("15:04:05"))
		default:
			header = m.theme.RoleSys.Render("system")
		}
		b.WriteString(header)
		b.WriteString("\n")
		b.WriteString(msg.Content)
		b.WriteString("\n")
		for _, att := range msg.Attachments {
			b.WriteString(m.theme.ListMuted.Render(fmt.Sprintf("  [%s] %s", att.Type, att.Name)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) renderSearch() string {
	var b strings.Builder
	b.WriteString(m.theme.PaneTitle.Render("search sessions"))
	b.WriteString("\n\n")
	b.WriteString(m.theme.InputBox.Width(m.width - 4).Render(m.input.View()))
	b.WriteString("\n\n")

	if m.searchQuery == "" {
		b.WriteString(m.theme.ListMuted.Render("Type a query and press enter. Matches titles, tags and message content."))
		return b.String()
	}
	if len(m.searchResults) == 0 {
		b.WriteString(m.theme.ListMuted.Render(fmt.Sprintf("No sessions match %q.", m.searchQuery)))
		return b.String()
	}
	for _, row := range m.searchResults {
		b.WriteString(m.renderSummary(row, false))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) renderRag() string {
	var b strings.Builder
	b.WriteString(m.theme.PaneTitle.Render("retrieval context"))
	b.WriteString("\n\n")

	c := m.state.Context()
	if c == nil {
		b.WriteString(m.theme.ListMuted.Render("No context attached. Use /file, /snippet, /repo and /note in the chat panel."))
		return b.String()
	}
	if c.RepositoryPath != "" {
		b.WriteString(fmt.Sprintf("repository  %s\n", c.RepositoryPath))
	}
	b.WriteString(fmt.Sprintf("snippets    %d\n", len(c.CodeSnippets)))
	b.WriteString(fmt.Sprintf("est. tokens %d\n\n", app.EstimateContextTokens(c)))

	if len(c.FilePaths) > 0 {
		b.WriteString(m.theme.PaneTitle.Render("files"))
		b.WriteString("\n")
		for _, p := range c.FilePaths {
			b.WriteString("  " + p + "\n")
		}
		b.WriteString("\n")
	}
	if len(c.AdditionalContext) > 0 {
		b.WriteString(m.theme.PaneTitle.Render("notes"))
		b.WriteString("\n")
		for _, k := range sortedKeys(c.AdditionalContext) {
			b.WriteString(fmt.Sprintf("  %s: %s\n", k, c.AdditionalContext[k]))
		}
	}
	return b.String()
}

func (m *Model) renderHistory() string {
	var b strings.Builder
	b.WriteString(m.theme.PaneTitle.Render("session history"))
	b.WriteString("\n\n")

	if len(m.sessions) == 0 {
		b.WriteString(m.theme.ListMuted.Render("No saved sessions yet."))
		return b.String()
	}
	for i, row := range m.sessions {
		b.WriteString(m.renderSummary(row, i == m.historySel))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.theme.ListMuted.Render("enter resume · d delete"))
	return b.String()
}

func (m *Model) renderSummary(row app.SessionSummary, selected bool) string {
	title := row.Title
	if title == "" {
		title = "(untitled)"
	}
	line := fmt.Sprintf("%s  %s · %d messages · %s",
		row.UpdatedAt.Format("Jan 02 15:04"), title, row.MessageCount, row.Model)
	if len(row.Tags) > 0 {
		line += " · #" + strings.Join(row.Tags, " #")
	}
	if selected {
		return m.theme.ListSel.Render("> " + line)
	}
	return "  " + line
}

func (m *Model) renderCode() string {
	var b strings.Builder
	b.WriteString(m.theme.PaneTitle.Render("attached code"))
	b.WriteString("\n\n")

	c := m.state.Context()
	if c == nil || len(c.CodeSnippets) == 0 {
		b.WriteString(m.theme.ListMuted.Render("No code attached. Use /snippet <path> [start end] in the chat panel."))
		return b.String()
	}
	for i, sn := range c.CodeSnippets {
		origin := sn.Language
		if sn.FilePath != "" {
			origin += " · " + sn.FilePath
			if sn.StartLine > 0 {
				origin += fmt.Sprintf(":%d-%d", sn.StartLine, sn.EndLine)
			}
		}
		b.WriteString(m.theme.PaneTitle.Render(fmt.Sprintf("snippet %d", i+1)))
		b.WriteString(m.theme.ListMuted.Render("  " + origin))
		b.WriteString("\n")
		b.WriteString(sn.Code)
		b.WriteString("\n\n")
	}
	return b.String()
}

func (m *Model) renderSettings() string {
	var b strings.Builder
	b.WriteString(m.theme.PaneTitle.Render("settings"))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("theme  %s (ctrl+t to toggle)\n\n", m.state.Theme()))

	b.WriteString(m.theme.PaneTitle.Render("active model"))
	b.WriteString("\n")
	b.WriteString(m.theme.ListMuted.Render("Applies to new sessions only; existing sessions keep their model."))
	b.WriteString("\n")
	for i, choice := range m.modelChoices {
		marker := "  "
		if choice == m.state.ActiveModel() {
			marker = "* "
		}
		line := marker + choice
		if i == m.modelSel {
			b.WriteString(m.theme.ListSel.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
