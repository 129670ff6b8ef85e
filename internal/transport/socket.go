package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/9182192619/web-chat/internal/types"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait = 5 * time.Second
	pongWait  = 60 * time.Second
)

var ErrClosed = errors.New("socket closed")

// Socket is the client end of the real-time channel. Handlers registered with
// On run on the Run goroutine, in arrival order.
type Socket struct {
	conn   *websocket.Conn
	logger *zap.Logger

	writeMu sync.Mutex

	handlersMu sync.RWMutex
	handlers   map[types.Event][]func(json.RawMessage)

	closeOnce sync.Once
	closed    chan struct{}
}

// WebSocketURL maps an http(s) server base URL onto its ws(s) /ws endpoint.
func WebSocketURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String(), nil
}

func Dial(ctx context.Context, serverURL string, logger *zap.Logger) (*Socket, error) {
	wsURL, err := WebSocketURL(serverURL)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}

	s := &Socket{
		conn:     conn,
		logger:   logger.Named("socket"),
		handlers: make(map[types.Event][]func(json.RawMessage)),
		closed:   make(chan struct{}),
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	s.logger.Info("connected", zap.String("url", wsURL))
	return s, nil
}

func (s *Socket) On(event types.Event, handler func(json.RawMessage)) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.handlers[event] = append(s.handlers[event], handler)
}

func (s *Socket) Emit(event types.Event, payload any) error {
	frame, err := types.Encode(event, payload)
	if err != nil {
		return err
	}

	select {
	case <-s.closed:
		return ErrClosed
	default:
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	s.logger.Debug("emit", zap.String("event", string(event)))
	return nil
}

// Run reads frames and dispatches them until the connection fails, the
// server closes it, Close is called or ctx is done. A clean close returns nil.
func (s *Socket) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.closed:
				return nil
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		for _, frame := range bytes.Split(message, []byte{'\n'}) {
			if len(bytes.TrimSpace(frame)) == 0 {
				continue
			}
			env, err := types.Decode(frame)
			if err != nil {
				s.logger.Debug("dropping malformed frame", zap.Error(err))
				continue
			}
			s.dispatch(env)
		}
	}
}

func (s *Socket) dispatch(env *types.Envelope) {
	s.handlersMu.RLock()
	handlers := s.handlers[env.Event]
	s.handlersMu.RUnlock()

	if len(handlers) == 0 {
		s.logger.Debug("no handler for event", zap.String("event", string(env.Event)))
		return
	}
	for _, handler := range handlers {
		handler(env.Data)
	}
}

func (s *Socket) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		s.writeMu.Lock()
		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}
