package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestCSRF(t *testing.T) {
	gin.SetMode(gin.TestMode)

	config := CSRFConfig{
		AllowedOrigins: []string{"http://localhost:3000", "https://lunaexecutor.example"},
		CookieName:     "luna_sid",
	}

	tests := []struct {
		name       string
		method     string
		cookie     bool
		origin     string
		referer    string
		wantStatus int
	}{
		{name: "GET passes without headers", method: http.MethodGet, cookie: true, wantStatus: http.StatusOK},
		{name: "OPTIONS passes without headers", method: http.MethodOptions, cookie: true, wantStatus: http.StatusOK},
		{name: "POST without session cookie is not checked", method: http.MethodPost, origin: "https://evil.example", wantStatus: http.StatusOK},
		{name: "POST with allowed origin", method: http.MethodPost, cookie: true, origin: "http://localhost:3000", wantStatus: http.StatusOK},
		{name: "POST with allowed origin, trailing slash and case", method: http.MethodPost, cookie: true, origin: "HTTPS://LunaExecutor.example/", wantStatus: http.StatusOK},
		{name: "POST with foreign origin", method: http.MethodPost, cookie: true, origin: "https://evil.example", wantStatus: http.StatusForbidden},
		{name: "PATCH with allowed referer", method: http.MethodPatch, cookie: true, referer: "https://lunaexecutor.example/dashboard?tab=1", wantStatus: http.StatusOK},
		{name: "DELETE with foreign referer", method: http.MethodDelete, cookie: true, referer: "https://evil.example/page", wantStatus: http.StatusForbidden},
		{name: "POST with neither header", method: http.MethodPost, cookie: true, wantStatus: http.StatusForbidden},
		{name: "origin wins over referer", method: http.MethodPost, cookie: true, origin: "https://evil.example", referer: "http://localhost:3000/", wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(CSRF(config))
			router.Handle(tt.method, "/api/test", func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(tt.method, "/api/test", nil)
			if tt.cookie {
				req.AddCookie(&http.Cookie{Name: "luna_sid", Value: "abc"})
			}
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.referer != "" {
				req.Header.Set("Referer", tt.referer)
			}

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestCSRF_NoCookieNameChecksEverything(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(CSRF(CSRFConfig{AllowedOrigins: []string{"http://localhost:3000"}}))
	router.POST("/api/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/test", nil))

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestExtractOrigin(t *testing.T) {
	assert.Equal(t, "https://a.example:8443", extractOrigin("https://a.example:8443/path?q=1"))
	assert.Equal(t, "", extractOrigin("://bad"))
}
