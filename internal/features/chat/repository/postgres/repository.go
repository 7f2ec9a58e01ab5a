package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"lunaexecutor-backend/internal/features/chat/models"
	"lunaexecutor-backend/internal/features/chat/repository"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var _ repository.ChatRepository = (*PostgresRepository)(nil)

func (r *PostgresRepository) SaveChatMessage(ctx context.Context, userID int64, content string, timestamp time.Time, isAdmin bool) (*models.ChatMessage, error) {
	query := `
		INSERT INTO chat_messages (user_id, content, timestamp, is_admin)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, content, timestamp, is_admin`

	var uid sql.NullInt64
	if userID != 0 {
		uid = sql.NullInt64{Int64: userID, Valid: true}
	}

	msg, err := scanMessage(r.db.QueryRowContext(ctx, query, uid, content, timestamp, isAdmin))
	if err != nil {
		return nil, fmt.Errorf("failed to save chat message: %w", err)
	}
	return msg, nil
}

func (r *PostgresRepository) GetChatHistory(ctx context.Context, limit int) ([]*models.ChatMessage, error) {
	if limit <= 0 {
		limit = repository.DefaultHistoryLimit
	}

	query := `
		SELECT id, user_id, content, timestamp, is_admin
		FROM chat_messages
		ORDER BY timestamp DESC, id DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat history: %w", err)
	}
	defer rows.Close()

	messages := make([]*models.ChatMessage, 0, limit)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chat history: %w", err)
	}
	return messages, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*models.ChatMessage, error) {
	var (
		msg models.ChatMessage
		uid sql.NullInt64
	)
	if err := row.Scan(&msg.ID, &uid, &msg.Content, &msg.Timestamp, &msg.IsAdmin); err != nil {
		return nil, err
	}
	msg.UserID = uid.Int64
	return &msg, nil
}
