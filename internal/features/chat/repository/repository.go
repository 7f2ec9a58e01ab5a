package repository

import (
	"context"
	"time"

	"lunaexecutor-backend/internal/features/chat/models"
)

const DefaultHistoryLimit = 50

type ChatRepository interface {
	// SaveChatMessage assigns the id. userID 0 stores an anonymous message.
	SaveChatMessage(ctx context.Context, userID int64, content string, timestamp time.Time, isAdmin bool) (*models.ChatMessage, error)
	// GetChatHistory returns at most limit messages, newest first. limit <= 0 means DefaultHistoryLimit.
	GetChatHistory(ctx context.Context, limit int) ([]*models.ChatMessage, error)
}
