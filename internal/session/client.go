package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/9182192619/web-chat/internal/types"

	"go.uber.org/zap"
)

type Mode string

const (
	ModeLogin    Mode = "login"
	ModeRegister Mode = "register"
)

const StatusMissingCredentials = "Enter username & password"

var (
	ErrEmptyCredentials = errors.New("username and password are required")
	ErrRejected         = errors.New("rejected by server")
	// ErrUnreachable marks auth attempts that never got an answer from the server.
	ErrUnreachable          = errors.New("server unreachable")
	ErrAlreadyAuthenticated = errors.New("already logged in")
	ErrNotAuthenticated     = errors.New("not logged in")
	ErrNotSelectable        = errors.New("user cannot be selected")
)

type Options struct {
	TypingIdle time.Duration
	Logger     *zap.Logger
}

// Client is the chat session client: it owns the Session, routes outgoing
// intents onto the channel and renders incoming events through the View.
type Client struct {
	session *Session
	channel EventChannel
	api     AuthAPI
	view    View
	typing  *Debouncer
	logger  *zap.Logger
}

func NewClient(channel EventChannel, api AuthAPI, view View, opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		session: &Session{},
		channel: channel,
		api:     api,
		view:    view,
		logger:  logger.Named("session"),
	}
	c.typing = NewDebouncer(opts.TypingIdle, c.stopTyping)
	c.subscribe()
	return c
}

func (c *Client) Session() *Session {
	return c.session
}

func (c *Client) subscribe() {
	c.channel.On(types.EventMessage, func(data json.RawMessage) {
		var msg types.ChatMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Debug("malformed message event", zap.Error(err))
			return
		}
		c.OnIncomingMessage(msg)
	})
	c.channel.On(types.EventUserList, func(data json.RawMessage) {
		var users []string
		if err := json.Unmarshal(data, &users); err != nil {
			c.logger.Debug("malformed user_list event", zap.Error(err))
			return
		}
		c.OnRosterUpdate(users)
	})
	c.channel.On(types.EventTyping, func(data json.RawMessage) {
		var sig types.TypingSignal
		if err := json.Unmarshal(data, &sig); err != nil {
			c.logger.Debug("malformed typing event", zap.Error(err))
			return
		}
		c.OnTypingSignal(sig)
	})
}

// Authenticate makes a single login or registration attempt. Empty fields
// short-circuit before any network call.
func (c *Client) Authenticate(ctx context.Context, username, password string, mode Mode) error {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if username == "" || password == "" {
		c.view.SetStatus(StatusMissingCredentials)
		return ErrEmptyCredentials
	}

	req := types.AuthRequest{Username: username, Password: password}

	switch mode {
	case ModeRegister:
		resp, err := c.api.Register(ctx, req)
		if err != nil {
			c.view.SetStatus("Registration failed: " + err.Error())
			return fmt.Errorf("register %s: %w: %w", username, ErrUnreachable, err)
		}
		c.view.SetStatus(resp.Message)
		if !resp.Success {
			return fmt.Errorf("%w: %s", ErrRejected, resp.Message)
		}
		return nil

	case ModeLogin:
		if c.session.Authenticated() {
			return ErrAlreadyAuthenticated
		}
		resp, err := c.api.Login(ctx, req)
		if err != nil {
			c.view.SetStatus("Login failed: " + err.Error())
			return fmt.Errorf("login %s: %w: %w", username, ErrUnreachable, err)
		}
		if !resp.Success {
			c.view.SetStatus(resp.Message)
			return fmt.Errorf("%w: %s", ErrRejected, resp.Message)
		}
		return c.afterLogin(username, resp.Token)

	default:
		return fmt.Errorf("unknown auth mode %q", mode)
	}
}

func (c *Client) afterLogin(username, token string) error {
	if !c.session.login(username) {
		return ErrAlreadyAuthenticated
	}
	c.logger.Info("logged in", zap.String("username", username))

	c.view.SetStatus("Logged in as " + username)
	c.view.ShowChat(ChatTitle(username))

	if err := c.channel.Emit(types.EventJoin, types.JoinPayload{Username: username, Token: token}); err != nil {
		return fmt.Errorf("announce join: %w", err)
	}
	if err := c.channel.Emit(types.EventRequestUserList, nil); err != nil {
		return fmt.Errorf("request user list: %w", err)
	}
	return nil
}

// SendMessage emits rawText, reshaped into a whisper when a private target is
// armed. The input is cleared whether or not the emit succeeds.
func (c *Client) SendMessage(rawText string) error {
	if !c.session.Authenticated() {
		return ErrNotAuthenticated
	}

	text := strings.TrimSpace(rawText)
	if text == "" {
		return nil
	}

	if target := c.session.takeTarget(); target != "" {
		c.view.SetPrivateTarget("")
		if !types.IsWhisper(text) {
			text = types.FormatWhisper(target, text)
		}
	}

	c.view.ClearInput()
	if err := c.channel.Emit(types.EventMessage, types.MessagePayload{Text: text}); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (c *Client) OnIncomingMessage(msg types.ChatMessage) {
	kind := KindOther
	if msg.Self || msg.Username == c.session.CurrentUser() {
		kind = KindSelf
	}
	c.view.AppendMessage(RenderedMessage{
		Username: msg.Username,
		Text:     msg.Text,
		Time:     msg.Time,
		Kind:     kind,
		Private:  msg.Private,
	})
}

// OnRosterUpdate replaces the roster wholesale. Everyone but the current user is selectable.
func (c *Client) OnRosterUpdate(users []string) {
	c.session.replaceRoster(users)

	me := c.session.CurrentUser()
	entries := make([]RosterEntry, 0, len(users))
	for _, u := range users {
		entries = append(entries, RosterEntry{Username: u, Selectable: u != me})
	}
	c.view.SetRoster(entries)
}

// SelectRosterEntry arms username as the private target of the next send.
func (c *Client) SelectRosterEntry(username string) error {
	if username == "" || username == c.session.CurrentUser() || !c.session.inRoster(username) {
		return fmt.Errorf("%w: %q", ErrNotSelectable, username)
	}
	c.session.arm(username)
	c.view.SetPrivateTarget(username)
	return nil
}

func (c *Client) ClearPrivateTarget() {
	c.session.takeTarget()
	c.view.SetPrivateTarget("")
}

// InputChanged reports local input activity: typing starts now and stops once
// the idle window passes without further input.
func (c *Client) InputChanged() error {
	if !c.session.Authenticated() {
		return ErrNotAuthenticated
	}
	c.typing.Touch()
	return c.channel.Emit(types.EventTyping, typingPayload(true))
}

func (c *Client) stopTyping() {
	if err := c.channel.Emit(types.EventTyping, typingPayload(false)); err != nil {
		c.logger.Warn("emit stop typing", zap.Error(err))
	}
}

func (c *Client) OnTypingSignal(sig types.TypingSignal) {
	me := c.session.CurrentUser()
	if sig.Username == me {
		return
	}
	if sig.Typing {
		c.view.SetTitle(TypingTitle(sig.Username))
		return
	}
	c.view.SetTitle(ChatTitle(me))
}

// Close cancels a pending stop-typing timer.
func (c *Client) Close() {
	c.typing.Stop()
}

func typingPayload(typing bool) types.TypingPayload {
	return types.TypingPayload{Typing: &typing}
}
