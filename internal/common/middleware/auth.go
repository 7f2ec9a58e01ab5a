package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "lunaexecutor-backend/internal/common/errors"
	"lunaexecutor-backend/internal/common/logger"
	"lunaexecutor-backend/internal/features/auth/session"
)

const (
	principalKey = "principal"
	sessionIDKey = "session_id"
	userIDKey    = "user_id"
)

// SessionLoader resolves a session id to its stored session.
type SessionLoader interface {
	Get(ctx context.Context, id string) (*session.Session, error)
	Refresh(ctx context.Context, id string) error
}

// Session binds the principal from the session cookie, when present and valid.
// Requests without a valid session continue anonymously.
func Session(store SessionLoader, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := c.Cookie(cookieName)
		if err != nil || sid == "" {
			c.Next()
			return
		}

		sess, err := store.Get(c.Request.Context(), sid)
		if err != nil {
			if !errors.Is(err, session.ErrNotFound) {
				logger.Warn().
					Err(err).
					Str("request_id", getRequestID(c)).
					Msg("Failed to load session")
			}
			c.Next()
			return
		}

		if err := store.Refresh(c.Request.Context(), sid); err != nil && !errors.Is(err, session.ErrNotFound) {
			logger.Debug().Err(err).Msg("Failed to refresh session")
		}

		SetPrincipal(c, sess.ID, sess.Principal)
		c.Next()
	}
}

func SetPrincipal(c *gin.Context, sessionID string, p session.Principal) {
	c.Set(principalKey, p)
	c.Set(sessionIDKey, sessionID)
	c.Set(userIDKey, p.UserID)
}

// GetPrincipal returns the authenticated principal bound to the request.
func GetPrincipal(c *gin.Context) (session.Principal, bool) {
	v, exists := c.Get(principalKey)
	if !exists {
		return session.Principal{}, false
	}
	p, ok := v.(session.Principal)
	return p, ok
}

func GetSessionID(c *gin.Context) string {
	return c.GetString(sessionIDKey)
}

// RequireAuth aborts with a bare 401 when no principal is bound.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetPrincipal(c); !ok {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}

// AdminLookup reports a user's stored admin flag.
type AdminLookup interface {
	IsAdmin(ctx context.Context, userID int64) (bool, error)
}

// RefreshAdmin replaces the admin flag captured at login with the stored one
// and rebinds the principal. A failed lookup keeps the session value.
func RefreshAdmin(c *gin.Context, lookup AdminLookup, p session.Principal) session.Principal {
	isAdmin, err := lookup.IsAdmin(c.Request.Context(), p.UserID)
	if err != nil {
		logger.Warn().
			Err(err).
			Int64("user_id", p.UserID).
			Msg("Failed to refresh admin flag, using session value")
		return p
	}
	if isAdmin != p.IsAdmin {
		p.IsAdmin = isAdmin
		SetPrincipal(c, GetSessionID(c), p)
	}
	return p
}

// RequireAdmin aborts with 403 unless the principal is an admin.
// Anonymous callers get 403 as well. With a non-nil lookup the stored flag
// wins over the session snapshot.
func RequireAdmin(lookup AdminLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := GetPrincipal(c)
		if ok && lookup != nil {
			p = RefreshAdmin(c, lookup, p)
		}
		if !ok || !p.IsAdmin {
			appErr := apperrors.NewForbiddenError("admin access required").
				WithRequestID(getRequestID(c)).
				WithUserID(p.UserID)
			logger.Warn().
				Err(appErr).
				Str("request_id", appErr.RequestID).
				Int64("user_id", appErr.UserID).
				Str("path", c.Request.URL.Path).
				Msg("Admin access denied")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}
