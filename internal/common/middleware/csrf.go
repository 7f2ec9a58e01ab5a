package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

type CSRFConfig struct {
	// AllowedOrigins should match the CORS allow-list.
	AllowedOrigins []string
	// CookieName limits the check to requests carrying the session cookie.
	// Empty means every state-changing request is checked.
	CookieName string
}

// CSRF validates Origin/Referer on state-changing requests that carry the session cookie.
func CSRF(config CSRFConfig) gin.HandlerFunc {
	allowedSet := make(map[string]bool, len(config.AllowedOrigins))
	for _, origin := range config.AllowedOrigins {
		allowedSet[normalizeOrigin(origin)] = true
	}

	return func(c *gin.Context) {
		method := c.Request.Method
		if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
			c.Next()
			return
		}

		if config.CookieName != "" {
			if _, err := c.Cookie(config.CookieName); err != nil {
				c.Next()
				return
			}
		}

		if origin := c.GetHeader("Origin"); origin != "" {
			if !allowedSet[normalizeOrigin(origin)] {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "CSRF validation failed: invalid origin"})
				return
			}
			c.Next()
			return
		}

		if referer := c.GetHeader("Referer"); referer != "" {
			if !allowedSet[normalizeOrigin(extractOrigin(referer))] {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "CSRF validation failed: invalid referer"})
				return
			}
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "CSRF validation failed: missing origin"})
	}
}

func normalizeOrigin(origin string) string {
	return strings.TrimSuffix(strings.ToLower(origin), "/")
}

// extractOrigin returns scheme://host of rawURL.
func extractOrigin(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Scheme + "://" + parsed.Host
}
