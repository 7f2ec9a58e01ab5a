package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"lunaexecutor-backend/internal/common/logger"
	"lunaexecutor-backend/internal/common/metrics"
	"lunaexecutor-backend/internal/features/chat/models"
)

// Hub owns the set of open chat connections.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	closed  bool
}

func New() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
	}
}

// Register adds c to the broadcast set. It fails after Close.
func (h *Hub) Register(c *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return fmt.Errorf("hub is closed")
	}
	h.clients[c] = struct{}{}
	metrics.ChatConnections.Set(float64(len(h.clients)))
	return nil
}

// Unregister removes c and closes its outbound queue. Safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		metrics.ChatConnections.Set(float64(len(h.clients)))
	}
	h.mu.Unlock()

	if ok {
		c.closeSend()
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast delivers msg to every open connection, including its sender.
func (h *Hub) Broadcast(_ context.Context, msg *models.ChatMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal chat message: %w", err)
	}
	h.BroadcastRaw(data)
	metrics.ObserveChatMessage(metrics.OutcomeBroadcast)
	return nil
}

// BroadcastRaw enqueues data on every connection without blocking.
// Connections whose queue is full are pruned.
func (h *Hub) BroadcastRaw(data []byte) int {
	var slow []*Client

	h.mu.RLock()
	delivered := 0
	for c := range h.clients {
		if c.enqueue(data) {
			delivered++
		} else {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		logger.Warn().
			Str("conn_id", c.ID()).
			Msg("Dropping slow chat client")
		metrics.ObserveChatMessage(metrics.OutcomeDroppedSlowClient)
		h.Unregister(c)
	}
	return delivered
}

// Close unregisters every connection; each writer then sends a close frame.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*Client]struct{})
	metrics.ChatConnections.Set(0)
	h.mu.Unlock()

	for _, c := range clients {
		c.closeSend()
	}
}
