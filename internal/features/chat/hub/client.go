package hub

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"lunaexecutor-backend/internal/common/logger"
	"lunaexecutor-backend/internal/features/auth/session"
)

type Options struct {
	WriteWait       time.Duration
	PongWait        time.Duration
	PingPeriod      time.Duration
	MaxMessageBytes int64
	SendBuffer      int
}

func DefaultOptions() Options {
	return Options{
		WriteWait:       10 * time.Second,
		PongWait:        60 * time.Second,
		PingPeriod:      54 * time.Second,
		MaxMessageBytes: 4096,
		SendBuffer:      64,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.WriteWait <= 0 {
		o.WriteWait = d.WriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = d.PongWait
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = o.PongWait * 9 / 10
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = d.MaxMessageBytes
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = d.SendBuffer
	}
	return o
}

// MessageHandler processes one inbound text frame. Calls for a connection are sequential.
type MessageHandler func(ctx context.Context, c *Client, data []byte)

// Client is one websocket connection with its bounded outbound queue.
type Client struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	principal *session.Principal
	opts      Options
	closeOnce sync.Once
}

// NewClient wraps conn. principal is nil for anonymous connections.
// Zero option values fall back to DefaultOptions.
func NewClient(conn *websocket.Conn, principal *session.Principal, opts Options) *Client {
	opts = opts.withDefaults()
	return &Client{
		id:        uuid.NewString(),
		conn:      conn,
		send:      make(chan []byte, opts.SendBuffer),
		principal: principal,
		opts:      opts,
	}
}

func (c *Client) ID() string {
	return c.id
}

// Principal returns the identity bound at connect time.
func (c *Client) Principal() (session.Principal, bool) {
	if c.principal == nil {
		return session.Principal{}, false
	}
	return *c.principal, true
}

func (c *Client) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

// ReadPump reads frames until the connection fails, handing each text frame to handle.
// It unregisters the client from h on return.
func (c *Client) ReadPump(ctx context.Context, h *Hub, handle MessageHandler) {
	defer func() {
		h.Unregister(c)
		_ = c.conn.Close()
	}()

	if c.opts.MaxMessageBytes > 0 {
		c.conn.SetReadLimit(c.opts.MaxMessageBytes)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logger.Debug().Err(err).Str("conn_id", c.id).Msg("Chat connection closed unexpectedly")
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		handle(ctx, c, data)
	}
}

// WritePump drains the outbound queue and keeps the connection alive with pings.
// A closed queue results in a close frame.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Debug().Err(err).Str("conn_id", c.id).Msg("Chat write failed")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
