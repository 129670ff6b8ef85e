package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/9182192619/web-chat/internal/auth"
	"github.com/9182192619/web-chat/internal/types"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

type wsPeer struct {
	t       *testing.T
	conn    *websocket.Conn
	pending []types.Envelope
}

func dialPeer(t *testing.T, serverURL string) *wsPeer {
	t.Helper()
	url := "ws" + strings.TrimPrefix(serverURL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return &wsPeer{t: t, conn: conn}
}

func (p *wsPeer) emit(event types.Event, payload any) {
	p.t.Helper()
	frame, err := types.Encode(event, payload)
	require.NoError(p.t, err)
	require.NoError(p.t, p.conn.WriteMessage(websocket.TextMessage, frame))
}

// next returns the next envelope, splitting coalesced frames.
func (p *wsPeer) next() types.Envelope {
	p.t.Helper()
	for len(p.pending) == 0 {
		p.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := p.conn.ReadMessage()
		require.NoError(p.t, err)
		for _, frame := range strings.Split(string(data), "\n") {
			env, err := types.Decode([]byte(frame))
			require.NoError(p.t, err)
			p.pending = append(p.pending, *env)
		}
	}
	env := p.pending[0]
	p.pending = p.pending[1:]
	return env
}

// collect reads envelopes until nothing arrives for wait. The connection is
// unusable for reads afterwards.
func (p *wsPeer) collect(wait time.Duration) []types.Envelope {
	p.t.Helper()
	out := p.pending
	p.pending = nil
	for {
		p.conn.SetReadDeadline(time.Now().Add(wait))
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			return out
		}
		for _, frame := range strings.Split(string(data), "\n") {
			env, err := types.Decode([]byte(frame))
			require.NoError(p.t, err)
			out = append(out, *env)
		}
	}
}

// until reads envelopes until one for event arrives.
func (p *wsPeer) until(event types.Event) types.Envelope {
	p.t.Helper()
	for {
		if env := p.next(); env.Event == event {
			return env
		}
	}
}

func TestServeWS_EndToEnd(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub(auth.NewTokenIssuer("", time.Hour), zap.NewNop())
	go h.Run(ctx)

	server := httptest.NewServer(ServeWS(h))

	alice := dialPeer(t, server.URL)
	alice.emit(types.EventJoin, types.JoinPayload{Username: "alice"})
	var users []string
	require.NoError(t, json.Unmarshal(alice.until(types.EventUserList).Data, &users))
	assert.Equal(t, []string{"alice"}, users)

	bob := dialPeer(t, server.URL)
	bob.emit(types.EventJoin, types.JoinPayload{Username: "bob"})
	require.NoError(t, json.Unmarshal(alice.until(types.EventUserList).Data, &users))
	assert.Equal(t, []string{"alice", "bob"}, users)
	bob.until(types.EventUserList)

	alice.emit(types.EventMessage, types.MessagePayload{Text: "/w bob psst"})
	var msg types.ChatMessage
	require.NoError(t, json.Unmarshal(bob.until(types.EventMessage).Data, &msg))
	assert.Equal(t, types.ChatMessage{Username: "alice", Text: "[PM] psst", Time: msg.Time, Private: true}, msg)

	alice.emit(types.EventTyping, map[string]bool{"typing": true})
	var sig types.TypingSignal
	require.NoError(t, json.Unmarshal(bob.until(types.EventTyping).Data, &sig))
	assert.Equal(t, types.TypingSignal{Username: "alice", Typing: true}, sig)

	require.NoError(t, bob.conn.Close())
	require.NoError(t, json.Unmarshal(alice.until(types.EventMessage).Data, &msg))
	// alice's own PM copy may arrive first.
	if msg.Private {
		require.NoError(t, json.Unmarshal(alice.until(types.EventMessage).Data, &msg))
	}
	assert.Equal(t, "bob left the chat", msg.Text)

	require.NoError(t, alice.conn.Close())
	cancel()
	<-h.Done()
	server.Close()
}

func TestServeWS_RateLimit(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub(auth.NewTokenIssuer("", time.Hour), zap.NewNop())
	go h.Run(ctx)

	server := httptest.NewServer(ServeWS(h))

	alice := dialPeer(t, server.URL)
	alice.emit(types.EventJoin, types.JoinPayload{Username: "alice"})
	alice.until(types.EventUserList)

	// The join spent one token of the burst; the rest go to the first four frames.
	frames := make([]string, 0, 20)
	for i := range 20 {
		frame, err := types.Encode(types.EventMessage, types.MessagePayload{Text: fmt.Sprintf("spam %d", i)})
		require.NoError(t, err)
		frames = append(frames, string(frame))
	}
	require.NoError(t, alice.conn.WriteMessage(websocket.TextMessage, []byte(strings.Join(frames, "\n"))))

	var delivered, warnings []string
	for _, msg := range chatMessages(t, alice.collect(time.Second)) {
		switch {
		case msg.Username == "alice":
			delivered = append(delivered, msg.Text)
		case msg.Username == types.ServerSender && msg.Text == rateLimitAlert:
			warnings = append(warnings, msg.Text)
		}
	}
	assert.Equal(t, []string{"spam 0", "spam 1", "spam 2", "spam 3"}, delivered)
	assert.Len(t, warnings, 1, "the warning is throttled per connection")

	require.NoError(t, alice.conn.Close())
	cancel()
	<-h.Done()
	server.Close()
}
