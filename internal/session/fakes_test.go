package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/9182192619/web-chat/internal/types"

	"github.com/stretchr/testify/require"
)

type emitted struct {
	Event   types.Event
	Payload any
}

type fakeChannel struct {
	mu       sync.Mutex
	emits    []emitted
	handlers map[types.Event]func(json.RawMessage)
	err      error
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{handlers: make(map[types.Event]func(json.RawMessage))}
}

func (f *fakeChannel) Emit(event types.Event, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.emits = append(f.emits, emitted{Event: event, Payload: payload})
	return nil
}

func (f *fakeChannel) On(event types.Event, handler func(json.RawMessage)) {
	f.handlers[event] = handler
}

// deliver simulates the server pushing event with payload.
func (f *fakeChannel) deliver(t *testing.T, event types.Event, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	handler, ok := f.handlers[event]
	require.True(t, ok, "no handler for %s", event)
	handler(raw)
}

func (f *fakeChannel) sent() []emitted {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]emitted(nil), f.emits...)
}

func (f *fakeChannel) count(event types.Event) int {
	n := 0
	for _, e := range f.sent() {
		if e.Event == event {
			n++
		}
	}
	return n
}

type fakeAPI struct {
	calls    int
	login    *types.AuthResponse
	register *types.AuthResponse
	err      error
}

func (f *fakeAPI) Login(_ context.Context, _ types.AuthRequest) (*types.AuthResponse, error) {
	f.calls++
	return f.login, f.err
}

func (f *fakeAPI) Register(_ context.Context, _ types.AuthRequest) (*types.AuthResponse, error) {
	f.calls++
	return f.register, f.err
}

type fakeView struct {
	status     string
	chatShown  bool
	title      string
	messages   []RenderedMessage
	roster     []RosterEntry
	target     string
	clearCount int
}

func (v *fakeView) SetStatus(text string)             { v.status = text }
func (v *fakeView) ShowChat(title string)             { v.chatShown = true; v.title = title }
func (v *fakeView) SetTitle(text string)              { v.title = text }
func (v *fakeView) AppendMessage(msg RenderedMessage) { v.messages = append(v.messages, msg) }
func (v *fakeView) SetRoster(entries []RosterEntry)   { v.roster = entries }
func (v *fakeView) SetPrivateTarget(target string)    { v.target = target }
func (v *fakeView) ClearInput()                       { v.clearCount++ }

// manualTimers stands in for time.AfterFunc; tests fire callbacks explicitly.
type manualTimers struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	f       func()
	stopped bool
}

func (m *manualTimer) Stop() bool {
	was := !m.stopped
	m.stopped = true
	return was
}

func (m *manualTimers) after(_ time.Duration, f func()) timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{f: f}
	m.timers = append(m.timers, t)
	return t
}

// fireAll runs every timer that has not been stopped, as if the idle window elapsed.
func (m *manualTimers) fireAll() {
	m.mu.Lock()
	var live []*manualTimer
	for _, t := range m.timers {
		if !t.stopped {
			t.stopped = true
			live = append(live, t)
		}
	}
	m.mu.Unlock()
	for _, t := range live {
		t.f()
	}
}

var errNetwork = errors.New("connection refused")
