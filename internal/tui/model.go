package tui

import (
	"context"
	"errors"
	"time"

	"github.com/9182192619/web-chat/internal/session"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const authTimeout = 10 * time.Second

// Actions is the slice of session.Client the UI drives. Every call is made
// from a tea.Cmd so view callbacks never block the update loop.
type Actions interface {
	Authenticate(ctx context.Context, username, password string, mode session.Mode) error
	SendMessage(text string) error
	InputChanged() error
	SelectRosterEntry(username string) error
	ClearPrivateTarget()
}

type focus int

const (
	focusUsername focus = iota
	focusPassword
	focusMessage
	focusRoster
)

type Model struct {
	actions Actions

	chatVisible bool
	focus       focus
	status      string
	title       string
	target      string

	username textinput.Model
	password textinput.Model
	message  textinput.Model

	transcript   []session.RenderedMessage
	viewport     viewport.Model
	roster       []session.RosterEntry
	rosterCursor int

	width, height int
}

func NewModel(actions Actions) Model {
	username := textinput.New()
	username.Placeholder = "username"
	username.Prompt = "Username: "
	username.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.Prompt = "Password: "
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	message := textinput.New()
	message.Placeholder = "Type a message (Tab: online users)"
	message.Prompt = "> "

	return Model{
		actions:  actions,
		focus:    focusUsername,
		status:   "Enter: log in · Ctrl+R: register · Ctrl+C: quit",
		username: username,
		password: password,
		message:  message,
		viewport: viewport.New(80, 20),
		width:    80,
		height:   24,
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case statusMsg:
		m.status = msg.text
		return m, nil

	case showChatMsg:
		m.chatVisible = true
		m.title = msg.title
		m.setFocus(focusMessage)
		m.resize()
		return m, nil

	case titleMsg:
		m.title = msg.text
		return m, nil

	case appendMsg:
		m.transcript = append(m.transcript, msg.msg)
		m.viewport.SetContent(renderTranscript(m.transcript))
		m.viewport.GotoBottom()
		return m, nil

	case rosterMsg:
		m.roster = msg.entries
		m.rosterCursor = m.nextSelectable(0, 1)
		return m, nil

	case targetMsg:
		m.target = msg.target
		return m, nil

	case clearInputMsg:
		m.message.Reset()
		return m, nil

	case errMsg:
		if !reportedBySession(msg.err) {
			m.status = msg.err.Error()
		}
		return m, nil

	case disconnectMsg:
		m.status = "Disconnected from server"
		if msg.err != nil {
			m.status += ": " + msg.err.Error()
		}
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.chatVisible {
			return m.updateChat(msg)
		}
		return m.updateLogin(msg)
	}

	return m.updateInputs(msg)
}

func (m Model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyTab, tea.KeyShiftTab, tea.KeyUp, tea.KeyDown:
		if m.focus == focusUsername {
			m.setFocus(focusPassword)
		} else {
			m.setFocus(focusUsername)
		}
		return m, nil
	case tea.KeyEnter:
		return m, m.authenticate(session.ModeLogin)
	case tea.KeyCtrlR:
		return m, m.authenticate(session.ModeRegister)
	}
	return m.updateInputs(msg)
}

func (m Model) authenticate(mode session.Mode) tea.Cmd {
	username, password := m.username.Value(), m.password.Value()
	actions := m.actions
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), authTimeout)
		defer cancel()
		if err := actions.Authenticate(ctx, username, password, mode); err != nil {
			return errMsg{err}
		}
		return nil
	}
}

func (m Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.focus == focusRoster {
		return m.updateRoster(msg)
	}

	switch msg.Type {
	case tea.KeyTab:
		m.setFocus(focusRoster)
		return m, nil
	case tea.KeyEsc:
		return m, m.run(func() error { m.actions.ClearPrivateTarget(); return nil })
	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	case tea.KeyEnter:
		text := m.message.Value()
		actions := m.actions
		return m, m.run(func() error { return actions.SendMessage(text) })
	}

	before := m.message.Value()
	var cmd tea.Cmd
	m.message, cmd = m.message.Update(msg)
	if m.message.Value() != before {
		actions := m.actions
		return m, tea.Batch(cmd, m.run(actions.InputChanged))
	}
	return m, cmd
}

func (m Model) updateRoster(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyTab, tea.KeyEsc:
		m.setFocus(focusMessage)
	case tea.KeyUp:
		m.rosterCursor = m.nextSelectable(m.rosterCursor-1, -1)
	case tea.KeyDown:
		m.rosterCursor = m.nextSelectable(m.rosterCursor+1, 1)
	case tea.KeyEnter:
		if m.rosterCursor < 0 || m.rosterCursor >= len(m.roster) {
			return m, nil
		}
		name := m.roster[m.rosterCursor].Username
		actions := m.actions
		m.setFocus(focusMessage)
		return m, m.run(func() error { return actions.SelectRosterEntry(name) })
	}
	return m, nil
}

// nextSelectable walks from start in step direction to the first selectable
// roster entry. It returns -1 when there is none.
func (m Model) nextSelectable(start, step int) int {
	for i := start; i >= 0 && i < len(m.roster); i += step {
		if m.roster[i].Selectable {
			return i
		}
	}
	if m.rosterCursor >= 0 && m.rosterCursor < len(m.roster) && m.roster[m.rosterCursor].Selectable {
		return m.rosterCursor
	}
	for i := range m.roster {
		if m.roster[i].Selectable {
			return i
		}
	}
	return -1
}

// reportedBySession reports whether the session has already put err in the status line.
func reportedBySession(err error) bool {
	return errors.Is(err, session.ErrEmptyCredentials) ||
		errors.Is(err, session.ErrRejected) ||
		errors.Is(err, session.ErrUnreachable)
}

func (m Model) run(fn func() error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(); err != nil {
			return errMsg{err}
		}
		return nil
	}
}

func (m Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.focus {
	case focusUsername:
		m.username, cmd = m.username.Update(msg)
	case focusPassword:
		m.password, cmd = m.password.Update(msg)
	case focusMessage:
		m.message, cmd = m.message.Update(msg)
	}
	return m, cmd
}

func (m *Model) setFocus(f focus) {
	m.focus = f
	m.username.Blur()
	m.password.Blur()
	m.message.Blur()
	switch f {
	case focusUsername:
		m.username.Focus()
	case focusPassword:
		m.password.Focus()
	case focusMessage:
		m.message.Focus()
	}
}

func (m *Model) resize() {
	m.viewport.Width = max(m.width-rosterWidth-2, 10)
	m.viewport.Height = max(m.height-4, 3)
	m.message.Width = max(m.width-4, 10)
	m.viewport.SetContent(renderTranscript(m.transcript))
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if !m.chatVisible {
		return lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("web-chat"),
			"",
			m.username.View(),
			m.password.View(),
			"",
			statusStyle.Render(m.status),
		)
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		m.viewport.View(),
		renderRoster(m.roster, m.rosterCursor, m.focus == focusRoster, m.viewport.Height),
	)

	input := m.message.View()
	if m.target != "" {
		input = targetStyle.Render("to "+m.target+" ") + input
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(m.title),
		body,
		input,
		statusStyle.Render(m.status),
	)
}
