package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Event string

const (
	EventJoin            Event = "join"
	EventMessage         Event = "message"
	EventTyping          Event = "typing"
	EventUserList        Event = "user_list"
	EventRequestUserList Event = "request_user_list"
)

// ServerSender is the username the server uses for its own notices.
const ServerSender = "SERVER"

// WhisperPrefix starts a private message: "/w <username> <text>".
const WhisperPrefix = "/w "

// Envelope is a single frame on the real-time channel.
type Envelope struct {
	Event Event           `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode wraps payload in an envelope for event. A nil payload yields a frame with no data.
func Encode(event Event, payload any) ([]byte, error) {
	env := Envelope{Event: event}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", event, err)
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

func Decode(frame []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("decode envelope: missing event name")
	}
	return &env, nil
}

type ChatMessage struct {
	Username string `json:"username"`
	Text     string `json:"text"`
	Time     string `json:"time"`
	Private  bool   `json:"private,omitempty"`
	Self     bool   `json:"self,omitempty"`
}

type JoinPayload struct {
	Username string `json:"username"`
	Token    string `json:"token,omitempty"`
}

type MessagePayload struct {
	Text string `json:"text"`
}

// TypingPayload is what a client sends. A nil Typing (or no payload at all) means "typing".
type TypingPayload struct {
	Typing *bool `json:"typing,omitempty"`
}

type TypingSignal struct {
	Username string `json:"username"`
	Typing   bool   `json:"typing"`
}

func FormatWhisper(target, text string) string {
	return WhisperPrefix + target + " " + text
}

func IsWhisper(text string) bool {
	return strings.HasPrefix(text, WhisperPrefix)
}

// ParseWhisper splits "/w <target> <text>". ok is false when text is a whisper
// without both a target and a body separator.
func ParseWhisper(text string) (target, body string, ok bool) {
	parts := strings.SplitN(text, " ", 3)
	if len(parts) < 3 {
		return "", "", false
	}
	return parts[1], parts[2], true
}
