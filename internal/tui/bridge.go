package tui

import (
	"sync"

	"github.com/9182192619/web-chat/internal/session"

	tea "github.com/charmbracelet/bubbletea"
)

type (
	statusMsg     struct{ text string }
	showChatMsg   struct{ title string }
	titleMsg      struct{ text string }
	appendMsg     struct{ msg session.RenderedMessage }
	rosterMsg     struct{ entries []session.RosterEntry }
	targetMsg     struct{ target string }
	clearInputMsg struct{}
	errMsg        struct{ err error }
	disconnectMsg struct{ err error }
)

// Bridge implements session.View by forwarding every call to the running
// program as a message. Calls made before Attach are dropped.
type Bridge struct {
	mu      sync.RWMutex
	program *tea.Program
}

var _ session.View = (*Bridge)(nil)

func NewBridge() *Bridge {
	return &Bridge{}
}

func (b *Bridge) Attach(p *tea.Program) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.program = p
}

func (b *Bridge) send(msg tea.Msg) {
	b.mu.RLock()
	p := b.program
	b.mu.RUnlock()
	if p != nil {
		p.Send(msg)
	}
}

func (b *Bridge) SetStatus(text string)                     { b.send(statusMsg{text}) }
func (b *Bridge) ShowChat(title string)                     { b.send(showChatMsg{title}) }
func (b *Bridge) SetTitle(text string)                      { b.send(titleMsg{text}) }
func (b *Bridge) AppendMessage(msg session.RenderedMessage) { b.send(appendMsg{msg}) }
func (b *Bridge) SetRoster(entries []session.RosterEntry)   { b.send(rosterMsg{entries}) }
func (b *Bridge) SetPrivateTarget(target string)            { b.send(targetMsg{target}) }
func (b *Bridge) ClearInput()                               { b.send(clearInputMsg{}) }

// Disconnected tells the UI the real-time channel is gone.
func (b *Bridge) Disconnected(err error) { b.send(disconnectMsg{err}) }
