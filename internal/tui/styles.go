package tui

import (
	"fmt"
	"strings"

	"github.com/9182192619/web-chat/internal/session"
	"github.com/9182192619/web-chat/internal/types"

	"github.com/charmbracelet/lipgloss"
)

const rosterWidth = 22

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	timeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selfStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	otherStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("75")).Bold(true)
	serverStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	privateStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Italic(true)
	targetStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)

	rosterStyle = lipgloss.NewStyle().
			Width(rosterWidth).
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			PaddingLeft(1)
	rosterCursorStyle = lipgloss.NewStyle().Reverse(true)
	rosterMeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func renderMessage(m session.RenderedMessage) string {
	nameStyle := otherStyle
	switch {
	case m.Username == types.ServerSender:
		nameStyle = serverStyle
	case m.Kind == session.KindSelf:
		nameStyle = selfStyle
	}

	text := m.Text
	if m.Private {
		text = privateStyle.Render(text)
	}
	return fmt.Sprintf("%s %s %s", timeStyle.Render(m.Time), nameStyle.Render(m.Username+":"), text)
}

func renderTranscript(msgs []session.RenderedMessage) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, renderMessage(m))
	}
	return strings.Join(lines, "\n")
}

func renderRoster(entries []session.RosterEntry, cursor int, focused bool, height int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Online (%d)", len(entries))))
	for i, e := range entries {
		b.WriteString("\n")
		line := e.Username
		switch {
		case !e.Selectable:
			line = rosterMeStyle.Render(line + " (you)")
		case focused && i == cursor:
			line = rosterCursorStyle.Render(line)
		}
		b.WriteString(line)
	}
	return rosterStyle.Height(height).Render(b.String())
}
