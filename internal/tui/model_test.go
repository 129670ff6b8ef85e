package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/9182192619/web-chat/internal/session"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeActions struct {
	mu       sync.Mutex
	calls    []string
	authErr  error
	sendErr  error
	username string
	password string
	mode     session.Mode
	sent     []string
	selected []string
}

func (f *fakeActions) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeActions) Authenticate(_ context.Context, username, password string, mode session.Mode) error {
	f.record("authenticate")
	f.mu.Lock()
	f.username, f.password, f.mode = username, password, mode
	f.mu.Unlock()
	return f.authErr
}

func (f *fakeActions) SendMessage(text string) error {
	f.record("send")
	f.mu.Lock()
	f.sent = append(f.sent, text)
	f.mu.Unlock()
	return f.sendErr
}

func (f *fakeActions) InputChanged() error {
	f.record("input")
	return nil
}

func (f *fakeActions) SelectRosterEntry(username string) error {
	f.record("select")
	f.mu.Lock()
	f.selected = append(f.selected, username)
	f.mu.Unlock()
	return nil
}

func (f *fakeActions) ClearPrivateTarget() { f.record("clear") }

func (f *fakeActions) called(call string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == call {
			return true
		}
	}
	return false
}

// exec runs cmd and any batched commands, returning the non-nil messages.
func exec(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, exec(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model, cmd
}

func typeText(t *testing.T, m Model, s string) Model {
	t.Helper()
	for _, r := range s {
		m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func chatModel(t *testing.T, actions *fakeActions) Model {
	t.Helper()
	m := NewModel(actions)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	m, _ = update(t, m, showChatMsg{title: session.ChatTitle("alice")})
	return m
}

func TestLoginSubmitsCredentials(t *testing.T) {
	tests := []struct {
		name string
		key  tea.KeyMsg
		mode session.Mode
	}{
		{"enter logs in", tea.KeyMsg{Type: tea.KeyEnter}, session.ModeLogin},
		{"ctrl+r registers", tea.KeyMsg{Type: tea.KeyCtrlR}, session.ModeRegister},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actions := &fakeActions{}
			m := NewModel(actions)
			m = typeText(t, m, "alice")
			m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
			m = typeText(t, m, "pw")

			_, cmd := update(t, m, tt.key)
			require.NotNil(t, cmd)
			assert.Empty(t, exec(cmd))

			assert.Equal(t, "alice", actions.username)
			assert.Equal(t, "pw", actions.password)
			assert.Equal(t, tt.mode, actions.mode)
		})
	}
}

func TestPasswordIsNotEchoed(t *testing.T) {
	m := NewModel(&fakeActions{})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m = typeText(t, m, "hunter2")

	assert.NotContains(t, m.View(), "hunter2")
}

func TestAuthErrorsSurfaceUnlessAlreadyShown(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus string
	}{
		{"rejection keeps server status", session.ErrRejected, "Invalid credentials"},
		{"empty credentials keeps prompt", session.ErrEmptyCredentials, "Invalid credentials"},
		{"unreachable server keeps session status", fmt.Errorf("login alice: %w: %w", session.ErrUnreachable, errors.New("dial tcp: connection refused")), "Invalid credentials"},
		{"other failure shown", errors.New("send message: socket closed"), "send message: socket closed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewModel(&fakeActions{})
			m, _ = update(t, m, statusMsg{text: "Invalid credentials"})
			m, _ = update(t, m, errMsg{tt.err})
			assert.Equal(t, tt.wantStatus, m.status)
		})
	}
}

func TestShowChatSwitchesView(t *testing.T) {
	m := chatModel(t, &fakeActions{})

	assert.True(t, m.chatVisible)
	assert.Equal(t, focusMessage, m.focus)
	assert.Contains(t, m.View(), "Chat Room")
}

func TestTypingNotifiesAndEnterSends(t *testing.T) {
	actions := &fakeActions{}
	m := chatModel(t, actions)

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("h")})
	exec(cmd)
	assert.True(t, actions.called("input"))

	m = typeText(t, m, "i")
	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	exec(cmd)
	assert.Equal(t, []string{"hi"}, actions.sent)
}

func TestSendErrorShownInStatus(t *testing.T) {
	actions := &fakeActions{sendErr: session.ErrNotAuthenticated}
	m := chatModel(t, actions)
	m = typeText(t, m, "x")

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	msgs := exec(cmd)
	require.Len(t, msgs, 1)

	m, _ = update(t, m, msgs[0])
	assert.Equal(t, session.ErrNotAuthenticated.Error(), m.status)
}

func TestRosterSelectionSkipsSelf(t *testing.T) {
	actions := &fakeActions{}
	m := chatModel(t, actions)
	m, _ = update(t, m, rosterMsg{entries: []session.RosterEntry{
		{Username: "alice", Selectable: false},
		{Username: "bob", Selectable: true},
		{Username: "carol", Selectable: true},
	}})
	assert.Equal(t, 1, m.rosterCursor)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, focusRoster, m.focus)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 1, m.rosterCursor, "cursor must not land on own entry")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 2, m.rosterCursor)

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	exec(cmd)
	assert.Equal(t, []string{"carol"}, actions.selected)
	assert.Equal(t, focusMessage, m.focus)
}

func TestEscapeClearsTarget(t *testing.T) {
	actions := &fakeActions{}
	m := chatModel(t, actions)
	m, _ = update(t, m, targetMsg{target: "bob"})
	assert.Contains(t, m.View(), "to bob")

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	exec(cmd)
	assert.True(t, actions.called("clear"))
}

func TestAppendedMessagesRendered(t *testing.T) {
	m := chatModel(t, &fakeActions{})
	m, _ = update(t, m, appendMsg{session.RenderedMessage{
		Username: "bob", Text: "hello there", Time: "14:05", Kind: session.KindOther,
	}})
	m, _ = update(t, m, clearInputMsg{})

	view := m.View()
	assert.Contains(t, view, "hello there")
	assert.Contains(t, view, "14:05")
	assert.Empty(t, m.message.Value())
}

func TestDisconnectSetsStatus(t *testing.T) {
	m := chatModel(t, &fakeActions{})
	m, _ = update(t, m, disconnectMsg{errors.New("EOF")})
	assert.True(t, strings.HasPrefix(m.status, "Disconnected from server"))
	assert.Contains(t, m.status, "EOF")
}
