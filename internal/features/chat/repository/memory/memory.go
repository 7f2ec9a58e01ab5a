// Package memory is an in-process chat repository for tests and local tooling.
package memory

import (
	"context"
	"sync"
	"time"

	"lunaexecutor-backend/internal/features/chat/models"
	"lunaexecutor-backend/internal/features/chat/repository"
)

type Repository struct {
	mu       sync.Mutex
	messages []*models.ChatMessage

	// Err, when set, is returned by every method.
	Err error
}

var _ repository.ChatRepository = (*Repository)(nil)

func New() *Repository {
	return &Repository{}
}

func (r *Repository) SaveChatMessage(ctx context.Context, userID int64, content string, timestamp time.Time, isAdmin bool) (*models.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	msg := &models.ChatMessage{
		ID:        int64(len(r.messages) + 1),
		UserID:    userID,
		Content:   content,
		Timestamp: timestamp,
		IsAdmin:   isAdmin,
	}
	r.messages = append(r.messages, msg)
	c := *msg
	return &c, nil
}

func (r *Repository) GetChatHistory(ctx context.Context, limit int) ([]*models.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	if limit <= 0 {
		limit = repository.DefaultHistoryLimit
	}
	out := make([]*models.ChatMessage, 0, limit)
	for i := len(r.messages) - 1; i >= 0 && len(out) < limit; i-- {
		c := *r.messages[i]
		out = append(out, &c)
	}
	return out, nil
}

// All returns every stored message in insertion order.
func (r *Repository) All() []*models.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.ChatMessage, 0, len(r.messages))
	for _, m := range r.messages {
		c := *m
		out = append(out, &c)
	}
	return out
}
