package repository

import (
	"context"
	"errors"
	"time"

	"lunaexecutor-backend/internal/features/user/models"
)

var (
	ErrNotFound = errors.New("user not found")
	ErrConflict = errors.New("username or email already taken")
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByVerificationToken(ctx context.Context, token string) (*models.User, error)
	Verify(ctx context.Context, id int64) error
	// UpdateProfile changes username and email only.
	UpdateProfile(ctx context.Context, id int64, username, email string) (*models.User, error)
	// SetAdmin is reserved for trusted bootstrap paths.
	SetAdmin(ctx context.Context, id int64, isAdmin bool) error
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
}

type StatsRepository interface {
	// GetUserStats returns the user's day buckets ordered by date ascending.
	GetUserStats(ctx context.Context, userID int64) ([]*models.UserStat, error)
	// RecordExecution bumps the day bucket for day and the user's task totals atomically.
	RecordExecution(ctx context.Context, userID int64, success bool, day time.Time) (*models.UserStat, error)
}
