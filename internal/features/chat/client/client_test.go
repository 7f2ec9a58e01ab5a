package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lunaexecutor-backend/internal/features/chat/models"
)

// relayStub greets every connection with one message and records inbound frames.
type relayStub struct {
	upgrader    websocket.Upgrader
	connections atomic.Int32
	dropFirst   bool

	mu     sync.Mutex
	frames []string
	cookie string
}

func (s *relayStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	n := s.connections.Add(1)
	s.mu.Lock()
	s.cookie = r.Header.Get("Cookie")
	s.mu.Unlock()

	if s.dropFirst && n == 1 {
		return
	}

	greeting, _ := json.Marshal(models.ChatMessage{ID: int64(n), Content: "welcome"})
	if err := conn.WriteMessage(websocket.TextMessage, greeting); err != nil {
		return
	}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.frames = append(s.frames, string(data))
		s.mu.Unlock()
	}
}

func (s *relayStub) received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.frames...)
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestSend_NotConnected(t *testing.T) {
	c := New(Config{URL: "ws://127.0.0.1:1/ws"})
	assert.Equal(t, StateDisconnected, c.State())
	assert.ErrorIs(t, c.Send("hello"), ErrNotConnected)
}

func TestRun_ReceivesAndSends(t *testing.T) {
	stub := &relayStub{}
	server := httptest.NewServer(stub)
	defer server.Close()

	messages := make(chan *models.ChatMessage, 4)
	header := http.Header{}
	header.Set("Cookie", "luna_sid=abc")

	c := New(Config{
		URL:        wsURL(server),
		Header:     header,
		RetryDelay: 20 * time.Millisecond,
		OnMessage:  func(m *models.ChatMessage) { messages <- m },
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case m := <-messages:
		assert.Equal(t, "welcome", m.Content)
	case <-time.After(5 * time.Second):
		t.Fatal("no greeting received")
	}
	assert.Equal(t, StateConnected, c.State())

	require.NoError(t, c.Send("hello there"))
	require.Eventually(t, func() bool { return len(stub.received()) == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.JSONEq(t, `{"userId":0,"content":"hello there","isAdmin":false}`, stub.received()[0])

	stub.mu.Lock()
	assert.Equal(t, "luna_sid=abc", stub.cookie)
	stub.mu.Unlock()

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, StateDisconnected, c.State())
}

func TestRun_ReconnectsAfterDrop(t *testing.T) {
	stub := &relayStub{dropFirst: true}
	server := httptest.NewServer(stub)
	defer server.Close()

	var (
		mu     sync.Mutex
		states []State
	)
	messages := make(chan *models.ChatMessage, 4)

	c := New(Config{
		URL:        wsURL(server),
		RetryDelay: 20 * time.Millisecond,
		OnMessage:  func(m *models.ChatMessage) { messages <- m },
		OnStateChange: func(s State) {
			mu.Lock()
			states = append(states, s)
			mu.Unlock()
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Run(ctx) }()

	select {
	case m := <-messages:
		assert.Equal(t, int64(2), m.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("client did not reconnect")
	}
	assert.GreaterOrEqual(t, stub.connections.Load(), int32(2))

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, states, StateDisconnected)
	assert.Equal(t, StateConnected, states[len(states)-1])
}

func TestRun_RetriesWhenServerUnavailable(t *testing.T) {
	var attempts atomic.Int32
	c := New(Config{
		URL:        "ws://127.0.0.1:1/ws",
		RetryDelay: 10 * time.Millisecond,
		OnStateChange: func(s State) {
			if s == StateConnecting {
				attempts.Add(1)
			}
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := c.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, attempts.Load(), int32(2))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "state(9)", State(9).String())
}
