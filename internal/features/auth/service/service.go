package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	apperrors "lunaexecutor-backend/internal/common/errors"
	"lunaexecutor-backend/internal/common/logger"
	"lunaexecutor-backend/internal/common/validation"
	authmodels "lunaexecutor-backend/internal/features/auth/models"
	"lunaexecutor-backend/internal/features/auth/session"
	usermodels "lunaexecutor-backend/internal/features/user/models"
	userrepo "lunaexecutor-backend/internal/features/user/repository"
)

type SessionStore interface {
	Create(ctx context.Context, p session.Principal) (*session.Session, error)
	Delete(ctx context.Context, id string) error
}

type AuthService interface {
	Register(ctx context.Context, req authmodels.RegisterRequest) (*usermodels.User, *session.Session, error)
	Login(ctx context.Context, req authmodels.LoginRequest) (*usermodels.User, *session.Session, error)
	Logout(ctx context.Context, sessionID string) error
	Verify(ctx context.Context, token string) error
	BootstrapAdmins(ctx context.Context, usernames []string) error
}

type authService struct {
	users      userrepo.UserRepository
	sessions   SessionStore
	isAdmin    func(username string) bool
	bcryptCost int
	now        func() time.Time
}

type Option func(*authService)

// WithAdminUsernames promotes matching usernames to admin at registration.
func WithAdminUsernames(isAdmin func(username string) bool) Option {
	return func(s *authService) { s.isAdmin = isAdmin }
}

func WithBcryptCost(cost int) Option {
	return func(s *authService) { s.bcryptCost = cost }
}

func NewAuthService(users userrepo.UserRepository, sessions SessionStore, opts ...Option) AuthService {
	s := &authService{
		users:      users,
		sessions:   sessions,
		isAdmin:    func(string) bool { return false },
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *authService) Register(ctx context.Context, req authmodels.RegisterRequest) (*usermodels.User, *session.Session, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(req.Email)

	if err := validation.ValidateUsername(username); err != nil {
		return nil, nil, apperrors.NewValidationError("username", err.Error())
	}
	if err := validation.ValidatePassword(req.Password); err != nil {
		return nil, nil, apperrors.NewValidationError("password", err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "Failed to hash password")
	}

	token := uuid.NewString()
	user, err := s.users.Create(ctx, &usermodels.User{
		Username:          username,
		Email:             email,
		PasswordHash:      string(hash),
		VerificationToken: &token,
	})
	if err != nil {
		if errors.Is(err, userrepo.ErrConflict) {
			return nil, nil, apperrors.NewConflictError("user", "username or email already taken")
		}
		return nil, nil, apperrors.NewDatabaseError("create user", err)
	}

	if s.isAdmin(user.Username) {
		if err := s.users.SetAdmin(ctx, user.ID, true); err != nil {
			return nil, nil, apperrors.NewDatabaseError("set admin", err)
		}
		user.IsAdmin = true
	}

	logger.Info().
		Int64("user_id", user.ID).
		Str("username", user.Username).
		Msg("User registered")

	sess, err := s.openSession(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, sess, nil
}

func (s *authService) Login(ctx context.Context, req authmodels.LoginRequest) (*usermodels.User, *session.Session, error) {
	login := strings.TrimSpace(req.Username)

	var (
		user *usermodels.User
		err  error
	)
	if strings.Contains(login, "@") {
		user, err = s.users.GetByEmail(ctx, login)
	} else {
		user, err = s.users.GetByUsername(ctx, login)
	}
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return nil, nil, apperrors.NewInvalidCredentialsError()
		}
		return nil, nil, apperrors.NewDatabaseError("find user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, nil, apperrors.NewInvalidCredentialsError()
	}

	now := s.now().UTC()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		logger.Warn().Err(err).Int64("user_id", user.ID).Msg("Failed to update last login")
	} else {
		user.LastLogin = &now
	}

	sess, err := s.openSession(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, sess, nil
}

func (s *authService) openSession(ctx context.Context, user *usermodels.User) (*session.Session, error) {
	sess, err := s.sessions.Create(ctx, session.Principal{
		UserID:   user.ID,
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
	})
	if err != nil {
		return nil, apperrors.NewCacheError("create session", err)
	}
	return sess, nil
}

func (s *authService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return apperrors.NewCacheError("delete session", err)
	}
	return nil
}

func (s *authService) Verify(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperrors.New(apperrors.ErrCodeInvalidToken, "Invalid or expired verification token")
	}

	user, err := s.users.GetByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return apperrors.New(apperrors.ErrCodeInvalidToken, "Invalid or expired verification token")
		}
		return apperrors.NewDatabaseError("find verification token", err)
	}

	if err := s.users.Verify(ctx, user.ID); err != nil {
		return apperrors.NewDatabaseError("verify user", err)
	}
	return nil
}

// BootstrapAdmins elevates existing accounts named in usernames. Unknown names are skipped.
func (s *authService) BootstrapAdmins(ctx context.Context, usernames []string) error {
	for _, name := range usernames {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		user, err := s.users.GetByUsername(ctx, name)
		if err != nil {
			if errors.Is(err, userrepo.ErrNotFound) {
				logger.Warn().Str("username", name).Msg("Admin bootstrap: user not found")
				continue
			}
			return apperrors.NewDatabaseError("find admin user", err)
		}
		if user.IsAdmin {
			continue
		}
		if err := s.users.SetAdmin(ctx, user.ID, true); err != nil {
			return apperrors.NewDatabaseError("set admin", err)
		}
		logger.Info().Str("username", name).Msg("Admin bootstrap: promoted user")
	}
	return nil
}
