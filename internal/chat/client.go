package chat

import (
	"bytes"
	"net/http"
	"time"

	"github.com/9182192619/web-chat/internal/types"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 10 * time.Second
	maxFrameSize   = 4096
	warnInterval   = 3 * time.Second
	rateLimitAlert = "Rate limit exceeded, slow down."
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func ServeWS(h *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("upgrade error", zap.Error(err))
			return
		}

		client := NewClient(h, conn)
		h.Register(client)

		go client.WritePump()
		go client.ReadPump()
	}
}

// WritePump drains Send onto the socket. Queued frames are coalesced into one
// websocket message separated by newlines.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.Send)
			for i := 0; i < n; i++ {
				msg, ok := <-c.Send
				if !ok {
					break
				}
				w.Write([]byte{'\n'})
				w.Write(msg)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	logger := c.Hub.logger.With(zap.Stringer("conn", c.ID))

	c.Conn.SetReadLimit(maxFrameSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Info("unexpected close", zap.Error(err))
			}
			return
		}

		for _, frame := range bytes.Split(message, []byte{'\n'}) {
			if len(bytes.TrimSpace(frame)) == 0 {
				continue
			}

			if !c.Limiter.Allow() {
				c.warnRateLimited(logger)
				continue
			}

			env, err := types.Decode(frame)
			if err != nil {
				logger.Debug("dropping malformed frame", zap.Error(err))
				continue
			}
			c.Hub.dispatch(inbound{client: c, envelope: env})
		}
	}
}

// warnRateLimited queues at most one SERVER warning per warnInterval. The
// warning goes through the hub so it never races cleanupClient closing Send.
func (c *Client) warnRateLimited(logger *zap.Logger) {
	if time.Since(c.lastWarning) < warnInterval {
		return
	}
	c.lastWarning = time.Now()
	logger.Debug("rate limit exceeded")
	c.Hub.dispatch(inbound{client: c, rateLimited: true})
}
