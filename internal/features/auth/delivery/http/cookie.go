package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type CookieConfig struct {
	Name   string
	Domain string
	Secure bool
	MaxAge time.Duration
}

// CookieHelper writes the session cookie.
type CookieHelper struct {
	config CookieConfig
}

func NewCookieHelper(config CookieConfig) *CookieHelper {
	return &CookieHelper{config: config}
}

func (h *CookieHelper) SetSession(c *gin.Context, sessionID string) {
	h.setCookie(c, sessionID, int(h.config.MaxAge.Seconds()))
}

func (h *CookieHelper) ClearSession(c *gin.Context) {
	h.setCookie(c, "", -1)
}

func (h *CookieHelper) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.config.Name, value, maxAge, "/", h.config.Domain, h.config.Secure, true)
}
