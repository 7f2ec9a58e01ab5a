package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lunaexecutor-backend/internal/features/auth/session"
)

type stubSessions struct {
	sessions  map[string]*session.Session
	err       error
	refreshed []string
}

func (s *stubSessions) Get(ctx context.Context, id string) (*session.Session, error) {
	if s.err != nil {
		return nil, s.err
	}
	sess, ok := s.sessions[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	return sess, nil
}

func (s *stubSessions) Refresh(ctx context.Context, id string) error {
	s.refreshed = append(s.refreshed, id)
	return nil
}

func newAuthRouter(store SessionLoader, guards ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Session(store, "luna_sid"))
	handlers := append(guards, func(c *gin.Context) {
		p, ok := GetPrincipal(c)
		c.JSON(http.StatusOK, gin.H{"authenticated": ok, "userId": p.UserID, "sessionId": GetSessionID(c)})
	})
	router.GET("/whoami", handlers...)
	return router
}

func doGet(router *gin.Engine, cookie string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: "luna_sid", Value: cookie})
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSession_BindsPrincipalFromCookie(t *testing.T) {
	store := &stubSessions{sessions: map[string]*session.Session{
		"sid-1": {ID: "sid-1", Principal: session.Principal{UserID: 42, Username: "luna"}},
	}}
	w := doGet(newAuthRouter(store), "sid-1")

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["authenticated"])
	assert.Equal(t, float64(42), body["userId"])
	assert.Equal(t, "sid-1", body["sessionId"])
	assert.Equal(t, []string{"sid-1"}, store.refreshed)
}

func TestSession_UnknownOrFailingStoreContinuesAnonymously(t *testing.T) {
	for name, store := range map[string]*stubSessions{
		"unknown session": {sessions: map[string]*session.Session{}},
		"store failure":   {err: errors.New("redis down")},
	} {
		t.Run(name, func(t *testing.T) {
			w := doGet(newAuthRouter(store), "whatever")
			require.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Body.String(), `"authenticated":false`)
		})
	}
}

func TestRequireAuth(t *testing.T) {
	store := &stubSessions{sessions: map[string]*session.Session{
		"sid-1": {ID: "sid-1", Principal: session.Principal{UserID: 1}},
	}}
	router := newAuthRouter(store, RequireAuth())

	w := doGet(router, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, w.Body.String())

	w = doGet(router, "sid-1")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAdmin(t *testing.T) {
	store := &stubSessions{sessions: map[string]*session.Session{
		"user":  {ID: "user", Principal: session.Principal{UserID: 1}},
		"admin": {ID: "admin", Principal: session.Principal{UserID: 2, IsAdmin: true}},
	}}
	router := newAuthRouter(store, RequireAdmin(nil))

	tests := []struct {
		name   string
		cookie string
		want   int
	}{
		{"anonymous", "", http.StatusForbidden},
		{"regular user", "user", http.StatusForbidden},
		{"admin", "admin", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doGet(router, tt.cookie)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusForbidden {
				assert.JSONEq(t, `{"error":"Admin access required"}`, w.Body.String())
			}
		})
	}
}

type stubAdmins struct {
	flags map[int64]bool
	err   error
	calls int
}

func (s *stubAdmins) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return s.flags[userID], nil
}

func TestRequireAdmin_StoredFlagOverridesSession(t *testing.T) {
	store := &stubSessions{sessions: map[string]*session.Session{
		"promoted": {ID: "promoted", Principal: session.Principal{UserID: 1}},
		"demoted":  {ID: "demoted", Principal: session.Principal{UserID: 2, IsAdmin: true}},
	}}
	admins := &stubAdmins{flags: map[int64]bool{1: true}}
	router := newAuthRouter(store, RequireAdmin(admins))

	assert.Equal(t, http.StatusOK, doGet(router, "promoted").Code)
	assert.Equal(t, http.StatusForbidden, doGet(router, "demoted").Code)
	assert.Equal(t, http.StatusForbidden, doGet(router, "").Code)
	assert.Equal(t, 2, admins.calls, "anonymous callers never reach storage")
}

func TestRequireAdmin_LookupFailureKeepsSessionFlag(t *testing.T) {
	store := &stubSessions{sessions: map[string]*session.Session{
		"user":  {ID: "user", Principal: session.Principal{UserID: 1}},
		"admin": {ID: "admin", Principal: session.Principal{UserID: 2, IsAdmin: true}},
	}}
	router := newAuthRouter(store, RequireAdmin(&stubAdmins{err: errors.New("db down")}))

	assert.Equal(t, http.StatusForbidden, doGet(router, "user").Code)
	assert.Equal(t, http.StatusOK, doGet(router, "admin").Code)
}

func TestRefreshAdmin_RebindsPrincipal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/ws", nil)
	SetPrincipal(c, "sid-1", session.Principal{UserID: 1, Username: "luna"})

	p, _ := GetPrincipal(c)
	got := RefreshAdmin(c, &stubAdmins{flags: map[int64]bool{1: true}}, p)
	assert.True(t, got.IsAdmin)

	bound, ok := GetPrincipal(c)
	require.True(t, ok)
	assert.True(t, bound.IsAdmin)
	assert.Equal(t, "luna", bound.Username)
	assert.Equal(t, "sid-1", GetSessionID(c))
}
