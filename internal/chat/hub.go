package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/9182192619/web-chat/internal/auth"
	"github.com/9182192619/web-chat/internal/middleware"
	"github.com/9182192619/web-chat/internal/types"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	sendBuffer    = 256
	inboundBuffer = 256
	timeLayout    = "15:04"
)

type Client struct {
	ID      uuid.UUID
	Hub     *Hub
	Conn    *websocket.Conn
	Send    chan []byte
	Limiter *middleware.RateLimiter

	// username is owned by the hub goroutine; empty until join.
	username    string
	lastWarning time.Time
	once        sync.Once
}

func NewClient(h *Hub, conn *websocket.Conn) *Client {
	return &Client{
		ID:      uuid.New(),
		Hub:     h,
		Conn:    conn,
		Send:    make(chan []byte, sendBuffer),
		Limiter: middleware.NewRateLimiter(middleware.BurstLimit, middleware.RefillRate),
	}
}

type inbound struct {
	client      *Client
	envelope    *types.Envelope
	rateLimited bool
}

type Hub struct {
	clients    map[uuid.UUID]*Client
	register   chan *Client
	unregister chan *Client
	inbound    chan inbound
	done       chan struct{}

	tokens *auth.TokenIssuer
	logger *zap.Logger
	now    func() time.Time
}

func NewHub(tokens *auth.TokenIssuer, logger *zap.Logger) *Hub {
	logger = logger.Named("hub")
	logger.Info("initializing new hub instance")
	return &Hub{
		clients:    make(map[uuid.UUID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inbound, inboundBuffer),
		done:       make(chan struct{}),
		tokens:     tokens,
		logger:     logger,
		now:        time.Now,
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) dispatch(msg inbound) {
	select {
	case h.inbound <- msg:
	case <-h.done:
	}
}

// Done is closed once Run has returned and every connection has been closed.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("main loop started, listening for events")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("shutdown requested, closing all client connections", zap.Int("clients", len(h.clients)))
			for _, client := range h.clients {
				h.cleanupClient(client)
			}
			return

		case client := <-h.register:
			h.clients[client.ID] = client
			h.logger.Debug("connection registered", zap.Stringer("conn", client.ID), zap.Int("active", len(h.clients)))

		case client := <-h.unregister:
			h.disconnect(client)

		case msg := <-h.inbound:
			if _, ok := h.clients[msg.client.ID]; !ok {
				continue
			}
			if msg.rateLimited {
				h.notice(msg.client, rateLimitAlert)
				continue
			}
			h.handle(msg.client, msg.envelope)
		}
	}
}

func (h *Hub) handle(c *Client, env *types.Envelope) {
	switch env.Event {
	case types.EventJoin:
		var payload types.JoinPayload
		if err := decodeData(env.Data, &payload); err != nil {
			h.logger.Debug("malformed join", zap.Stringer("conn", c.ID), zap.Error(err))
			return
		}
		h.handleJoin(c, payload)

	case types.EventMessage:
		var payload types.MessagePayload
		if err := decodeData(env.Data, &payload); err != nil {
			h.logger.Debug("malformed message", zap.Stringer("conn", c.ID), zap.Error(err))
			return
		}
		h.handleMessage(c, payload.Text)

	case types.EventTyping:
		var payload types.TypingPayload
		if err := decodeData(env.Data, &payload); err != nil {
			h.logger.Debug("malformed typing", zap.Stringer("conn", c.ID), zap.Error(err))
			return
		}
		typing := payload.Typing == nil || *payload.Typing
		h.handleTyping(c, typing)

	case types.EventRequestUserList:
		if c.username == "" {
			return
		}
		h.sendTo(c, types.EventUserList, h.onlineUsers())

	default:
		h.logger.Debug("unknown event", zap.String("event", string(env.Event)), zap.Stringer("conn", c.ID))
	}
}

func (h *Hub) handleJoin(c *Client, payload types.JoinPayload) {
	username := strings.TrimSpace(payload.Username)
	if username == "" {
		h.notice(c, "Join requires a username")
		return
	}

	if h.tokens.Enabled() {
		claims, err := h.tokens.ValidateToken(payload.Token)
		if err != nil || claims.Username != username {
			h.logger.Warn("join rejected", zap.String("username", username), zap.Stringer("conn", c.ID), zap.Error(err))
			h.notice(c, "Session expired or invalid, please log in again")
			return
		}
	}

	c.username = username
	h.logger.Info("user joined", zap.String("username", username), zap.Stringer("conn", c.ID))

	h.broadcast(types.EventMessage, h.serverMessage(username+" joined the chat"), nil)
	h.broadcastUserList()
}

func (h *Hub) handleMessage(c *Client, text string) {
	sender := c.username
	if sender == "" {
		return
	}

	if types.IsWhisper(text) {
		h.routePrivate(c, text)
		return
	}

	if strings.HasPrefix(text, "/") {
		reply, rewritten, handled := applyCommand(text)
		if handled && reply != "" {
			h.notice(c, reply)
			return
		}
		if handled {
			text = rewritten
		}
	}

	h.broadcast(types.EventMessage, types.ChatMessage{
		Username: sender,
		Text:     text,
		Time:     h.timestamp(),
	}, nil)
}

func (h *Hub) routePrivate(c *Client, text string) {
	target, body, ok := types.ParseWhisper(text)
	if !ok {
		h.notice(c, "Usage: /w username message")
		return
	}

	recipients := h.connectionsOf(target)
	if len(recipients) == 0 {
		h.logger.Debug("private message target offline", zap.String("from", c.username), zap.String("to", target))
		h.notice(c, target+" is not online")
		return
	}

	now := h.timestamp()
	for _, recipient := range recipients {
		h.sendTo(recipient, types.EventMessage, types.ChatMessage{
			Username: c.username,
			Text:     "[PM] " + body,
			Time:     now,
			Private:  true,
		})
	}
	h.sendTo(c, types.EventMessage, types.ChatMessage{
		Username: c.username,
		Text:     fmt.Sprintf("[PM to %s] %s", target, body),
		Time:     now,
		Private:  true,
		Self:     true,
	})
	h.logger.Debug("private message delivered", zap.String("from", c.username), zap.String("to", target), zap.Int("connections", len(recipients)))
}

func (h *Hub) handleTyping(c *Client, typing bool) {
	if c.username == "" {
		return
	}
	h.broadcast(types.EventTyping, types.TypingSignal{Username: c.username, Typing: typing}, c)
}

func (h *Hub) disconnect(c *Client) {
	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	h.cleanupClient(c)

	if c.username == "" {
		return
	}
	h.logger.Info("user left", zap.String("username", c.username), zap.Int("active", len(h.clients)))
	h.broadcast(types.EventMessage, h.serverMessage(c.username+" left the chat"), nil)
	h.broadcastUserList()
}

func (h *Hub) cleanupClient(c *Client) {
	c.once.Do(func() {
		delete(h.clients, c.ID)
		close(c.Send)
		if c.Conn != nil {
			c.Conn.Close()
		}
	})
}

// onlineUsers is the roster snapshot: sorted, one entry per username.
func (h *Hub) onlineUsers() []string {
	users := make([]string, 0, len(h.clients))
	for _, client := range h.clients {
		if client.username != "" {
			users = append(users, client.username)
		}
	}
	slices.Sort(users)
	return slices.Compact(users)
}

func (h *Hub) connectionsOf(username string) []*Client {
	var conns []*Client
	for _, client := range h.clients {
		if client.username == username {
			conns = append(conns, client)
		}
	}
	return conns
}

func (h *Hub) broadcastUserList() {
	users := h.onlineUsers()
	h.logger.Debug("broadcasting user list", zap.Int("count", len(users)))
	h.broadcast(types.EventUserList, users, nil)
}

// broadcast sends to every joined connection except skip.
func (h *Hub) broadcast(event types.Event, payload any, skip *Client) {
	frame, err := types.Encode(event, payload)
	if err != nil {
		h.logger.Error("encode broadcast", zap.Error(err))
		return
	}
	for _, client := range h.clients {
		if client == skip || client.username == "" {
			continue
		}
		h.push(client, frame)
	}
}

func (h *Hub) sendTo(c *Client, event types.Event, payload any) {
	frame, err := types.Encode(event, payload)
	if err != nil {
		h.logger.Error("encode direct message", zap.Error(err))
		return
	}
	h.push(c, frame)
}

func (h *Hub) notice(c *Client, text string) {
	h.sendTo(c, types.EventMessage, h.serverMessage(text))
}

// push never blocks the hub; a full queue evicts the slow consumer.
func (h *Hub) push(c *Client, frame []byte) {
	select {
	case c.Send <- frame:
	default:
		h.logger.Warn("client buffer full, evicting slow consumer", zap.Stringer("conn", c.ID), zap.String("username", c.username))
		go h.Unregister(c)
	}
}

func (h *Hub) serverMessage(text string) types.ChatMessage {
	return types.ChatMessage{Username: types.ServerSender, Text: text, Time: h.timestamp()}
}

func (h *Hub) timestamp() string {
	return h.now().Format(timeLayout)
}

func decodeData(data json.RawMessage, target any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, target)
}
