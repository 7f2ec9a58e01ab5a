package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"lunaexecutor-backend/internal/common/logger"
	"lunaexecutor-backend/internal/features/chat/models"
)

var ErrNotConnected = errors.New("chat client is not connected")

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Config struct {
	URL        string
	Header     http.Header
	RetryDelay time.Duration
	WriteWait  time.Duration
	// OnMessage receives every broadcast frame.
	OnMessage func(*models.ChatMessage)
	// OnStateChange observes transitions.
	OnStateChange func(State)
}

// Client keeps one relay connection open, reconnecting after a fixed delay.
type Client struct {
	cfg    Config
	dialer *websocket.Dialer

	mu    sync.Mutex
	state State
	conn  *websocket.Conn
}

func New(cfg Config) *Client {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 3 * time.Second
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}
	return &Client{
		cfg:    cfg,
		dialer: websocket.DefaultDialer,
	}
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State, conn *websocket.Conn) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.conn = conn
	c.mu.Unlock()

	if changed && c.cfg.OnStateChange != nil {
		c.cfg.OnStateChange(s)
	}
}

// Send writes a chat frame. Identity fields are left for the server to fill.
func (c *Client) Send(content string) error {
	data, err := json.Marshal(models.IncomingMessage{Content: content})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected || c.conn == nil {
		return ErrNotConnected
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Run connects and reconnects until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	for {
		c.setState(StateConnecting, nil)
		conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, c.cfg.Header)
		if err != nil {
			c.setState(StateDisconnected, nil)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn().Err(err).Dur("retry_in", c.cfg.RetryDelay).Msg("Chat connect failed")
		} else {
			c.setState(StateConnected, conn)
			c.readLoop(ctx, conn)
			c.setState(StateDisconnected, nil)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Info().Dur("retry_in", c.cfg.RetryDelay).Msg("Chat connection lost")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.RetryDelay):
		}
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			c.mu.Lock()
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			c.mu.Unlock()
			_ = conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg models.ChatMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Debug().Err(err).Msg("Ignoring undecodable chat frame")
			continue
		}
		if c.cfg.OnMessage != nil {
			c.cfg.OnMessage(&msg)
		}
	}
}
