package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/9182192619/web-chat/internal/types"
)

// EventChannel is the real-time transport: publish with Emit, subscribe with On.
type EventChannel interface {
	Emit(event types.Event, payload any) error
	On(event types.Event, handler func(data json.RawMessage))
}

// AuthAPI is the request/response side used for login and registration.
type AuthAPI interface {
	Login(ctx context.Context, req types.AuthRequest) (*types.AuthResponse, error)
	Register(ctx context.Context, req types.AuthRequest) (*types.AuthResponse, error)
}

// View renders session state. Implementations must not call back into the
// Client synchronously.
type View interface {
	SetStatus(text string)
	// ShowChat reveals the chat surface with its title.
	ShowChat(title string)
	SetTitle(text string)
	// AppendMessage adds to the transcript and scrolls to the newest entry.
	AppendMessage(msg RenderedMessage)
	SetRoster(entries []RosterEntry)
	SetPrivateTarget(target string)
	ClearInput()
}

type Kind string

const (
	KindSelf  Kind = "self"
	KindOther Kind = "other"
)

type RenderedMessage struct {
	Username string
	Text     string
	Time     string
	Kind     Kind
	Private  bool
}

// Classes lists the style markers for the message, e.g. [message self private].
func (m RenderedMessage) Classes() []string {
	classes := []string{"message", string(m.Kind)}
	if m.Private {
		classes = append(classes, "private")
	}
	return classes
}

type RosterEntry struct {
	Username   string
	Selectable bool
}

func ChatTitle(username string) string {
	return "Chat Room — " + username
}

func TypingTitle(username string) string {
	return fmt.Sprintf("%s is typing…", username)
}
