package service

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "lunaexecutor-backend/internal/common/errors"
	"lunaexecutor-backend/internal/common/logger"
	"lunaexecutor-backend/internal/common/validation"
	"lunaexecutor-backend/internal/features/user/models"
	"lunaexecutor-backend/internal/features/user/repository"
)

type UserService interface {
	GetProfile(ctx context.Context, id int64) (*models.User, error)
	UpdateProfile(ctx context.Context, id int64, req models.UpdateProfileRequest) (*models.User, error)
	GetStats(ctx context.Context, userID int64) ([]*models.UserStat, error)
	RecordExecution(ctx context.Context, userID int64, success bool) (*models.UserStat, error)
	IsAdmin(ctx context.Context, userID int64) (bool, error)
}

// StatsCache is the slice of the cache service used for per-user stats.
type StatsCache interface {
	GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, setter func() (interface{}, error)) error
	Invalidate(ctx context.Context, key string) error
}

type userService struct {
	users    repository.UserRepository
	stats    repository.StatsRepository
	cache    StatsCache
	cacheKey func(int64) string
	cacheTTL time.Duration
	now      func() time.Time
}

type Option func(*userService)

// WithStatsCache caches GetStats results under keyFn(userID) for ttl.
func WithStatsCache(c StatsCache, keyFn func(int64) string, ttl time.Duration) Option {
	return func(s *userService) {
		s.cache = c
		s.cacheKey = keyFn
		s.cacheTTL = ttl
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *userService) { s.now = now }
}

func NewUserService(users repository.UserRepository, stats repository.StatsRepository, opts ...Option) UserService {
	s := &userService{
		users: users,
		stats: stats,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *userService) GetProfile(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUserNotFoundError(id)
		}
		return nil, apperrors.NewDatabaseError("get user", err)
	}
	return user, nil
}

func (s *userService) UpdateProfile(ctx context.Context, id int64, req models.UpdateProfileRequest) (*models.User, error) {
	current, err := s.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}

	username, email := current.Username, current.Email
	if req.Username != nil {
		username = strings.TrimSpace(*req.Username)
		if err := validation.ValidateUsername(username); err != nil {
			return nil, apperrors.NewValidationError("username", err.Error())
		}
	}
	if req.Email != nil {
		email = strings.TrimSpace(*req.Email)
		if email == "" {
			return nil, apperrors.NewValidationError("email", "email cannot be empty")
		}
	}

	updated, err := s.users.UpdateProfile(ctx, id, username, email)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.NewUserNotFoundError(id)
		case errors.Is(err, repository.ErrConflict):
			return nil, apperrors.NewConflictError("user", "username or email already taken")
		}
		return nil, apperrors.NewDatabaseError("update profile", err)
	}
	return updated, nil
}

// IsAdmin reads the stored admin flag. Unknown users are not admins.
func (s *userService) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, apperrors.NewDatabaseError("get user", err)
	}
	return user.IsAdmin, nil
}

func (s *userService) GetStats(ctx context.Context, userID int64) ([]*models.UserStat, error) {
	load := func() (interface{}, error) {
		return s.stats.GetUserStats(ctx, userID)
	}

	if s.cache == nil {
		stats, err := s.stats.GetUserStats(ctx, userID)
		if err != nil {
			return nil, apperrors.NewDatabaseError("get user stats", err)
		}
		return stats, nil
	}

	stats := make([]*models.UserStat, 0)
	if err := s.cache.GetOrSet(ctx, s.cacheKey(userID), &stats, s.cacheTTL, load); err != nil {
		return nil, apperrors.NewDatabaseError("get user stats", err)
	}
	return stats, nil
}

func (s *userService) RecordExecution(ctx context.Context, userID int64, success bool) (*models.UserStat, error) {
	stat, err := s.stats.RecordExecution(ctx, userID, success, s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUserNotFoundError(userID)
		}
		return nil, apperrors.NewDatabaseError("record execution", err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, s.cacheKey(userID)); err != nil {
			logger.Warn().Err(err).Int64("user_id", userID).Msg("Failed to invalidate stats cache")
		}
	}
	return stat, nil
}
