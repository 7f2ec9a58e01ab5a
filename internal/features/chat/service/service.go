package service

import (
	"context"
	"encoding/json"
	"time"

	apperrors "lunaexecutor-backend/internal/common/errors"
	"lunaexecutor-backend/internal/common/logger"
	"lunaexecutor-backend/internal/common/metrics"
	"lunaexecutor-backend/internal/common/validation"
	"lunaexecutor-backend/internal/features/auth/session"
	"lunaexecutor-backend/internal/features/chat/models"
	"lunaexecutor-backend/internal/features/chat/repository"
)

// Broadcaster delivers a persisted message to every connected client.
type Broadcaster interface {
	Broadcast(ctx context.Context, msg *models.ChatMessage) error
}

type ChatService interface {
	// HandleFrame runs parse, persist and broadcast for one inbound frame from connID.
	// principal is nil for anonymous senders.
	HandleFrame(ctx context.Context, connID string, principal *session.Principal, data []byte) (*models.ChatMessage, error)
	GetHistory(ctx context.Context, limit int) ([]*models.ChatMessage, error)
}

type Config struct {
	MaxContentRunes int
	PersistTimeout  time.Duration
}

type chatService struct {
	repo        repository.ChatRepository
	broadcaster Broadcaster
	cfg         Config
	now         func() time.Time
}

func NewChatService(repo repository.ChatRepository, broadcaster Broadcaster, cfg Config) ChatService {
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = 5 * time.Second
	}
	return &chatService{
		repo:        repo,
		broadcaster: broadcaster,
		cfg:         cfg,
		now:         time.Now,
	}
}

// ParseFrame decodes a client frame and validates its content.
func ParseFrame(data []byte, maxContentRunes int) (*models.IncomingMessage, error) {
	var in models.IncomingMessage
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, apperrors.NewMalformedMessageError("invalid JSON")
	}
	if err := validation.ValidateChatContent(in.Content, maxContentRunes); err != nil {
		return nil, apperrors.NewMalformedMessageError(err.Error())
	}
	return &in, nil
}

func (s *chatService) HandleFrame(ctx context.Context, connID string, principal *session.Principal, data []byte) (*models.ChatMessage, error) {
	in, err := ParseFrame(data, s.cfg.MaxContentRunes)
	if err != nil {
		metrics.ObserveChatMessage(metrics.OutcomeDroppedParse)
		logger.Warn().
			Str("conn_id", connID).
			Err(err).
			Msg("Dropping malformed chat frame")
		return nil, err
	}

	// Sender identity comes from the connection, never from the frame.
	var userID int64
	isAdmin := false
	if principal != nil {
		userID = principal.UserID
		isAdmin = principal.IsAdmin
	}

	// Persistence outlives the connection.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.PersistTimeout)
	defer cancel()

	start := time.Now()
	msg, err := s.repo.SaveChatMessage(persistCtx, userID, in.Content, s.now().UTC().Truncate(time.Microsecond), isAdmin)
	metrics.ChatPersistDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ObserveChatMessage(metrics.OutcomeDroppedStorage)
		logger.Warn().
			Str("conn_id", connID).
			Int64("user_id", userID).
			Err(err).
			Msg("Dropping chat message: storage failed")
		return nil, apperrors.NewDatabaseError("save chat message", err)
	}

	logger.Debug().
		Str("conn_id", connID).
		Int64("message_id", msg.ID).
		Int64("user_id", msg.UserID).
		Msg("Chat message persisted")

	if err := s.broadcaster.Broadcast(persistCtx, msg); err != nil {
		logger.Error().
			Err(err).
			Int64("message_id", msg.ID).
			Msg("Failed to broadcast chat message")
		return msg, err
	}
	return msg, nil
}

func (s *chatService) GetHistory(ctx context.Context, limit int) ([]*models.ChatMessage, error) {
	messages, err := s.repo.GetChatHistory(ctx, limit)
	if err != nil {
		return nil, apperrors.NewDatabaseError("get chat history", err)
	}
	return messages, nil
}
