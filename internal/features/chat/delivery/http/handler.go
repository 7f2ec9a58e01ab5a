package http

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"lunaexecutor-backend/internal/common/logger"
	"lunaexecutor-backend/internal/common/middleware"
	"lunaexecutor-backend/internal/features/auth/session"
	"lunaexecutor-backend/internal/features/chat/hub"
	"lunaexecutor-backend/internal/features/chat/service"
)

const maxHistoryLimit = 200

type Config struct {
	AllowAnonymous bool
	HistoryLimit   int
	// AllowedOrigins restricts the websocket handshake. Empty allows any origin.
	AllowedOrigins []string
	Hub            hub.Options
	// Admins, when set, supplies the stored admin flag bound at connect.
	Admins middleware.AdminLookup
}

type ChatHandler struct {
	service  service.ChatService
	hub      *hub.Hub
	cfg      Config
	upgrader websocket.Upgrader
}

func NewChatHandler(service service.ChatService, h *hub.Hub, cfg Config) *ChatHandler {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}
	allowed := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		allowed[strings.TrimSuffix(strings.ToLower(o), "/")] = true
	}

	return &ChatHandler{
		service: service,
		hub:     h,
		cfg:     cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(allowed) == 0 {
					return true
				}
				if allowed[strings.TrimSuffix(strings.ToLower(origin), "/")] {
					return true
				}
				u, err := url.Parse(origin)
				return err == nil && strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (h *ChatHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/chat/history", h.GetHistory)
}

// RegisterLegacyRoutes mounts /ws and the unprefixed history path.
func (h *ChatHandler) RegisterLegacyRoutes(router gin.IRouter) {
	router.GET("/chat-history", h.GetHistory)
	router.GET("/ws", h.ServeWS)
}

// @Summary Chat history
// @Description Most recent chat messages, newest first
// @Tags chat
// @Produce json
// @Param limit query int false "Maximum number of messages"
// @Success 200 {array} models.ChatMessage
// @Failure 500 {object} models.ErrorResponse
// @Router /api/chat/history [get]
func (h *ChatHandler) GetHistory(c *gin.Context) {
	limit := h.cfg.HistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	messages, err := h.service.GetHistory(c.Request.Context(), limit)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, messages)
}

// ServeWS upgrades to the chat relay. Identity is taken from the session at connect time.
func (h *ChatHandler) ServeWS(c *gin.Context) {
	var principal *session.Principal
	if p, ok := middleware.GetPrincipal(c); ok {
		if h.cfg.Admins != nil {
			p = middleware.RefreshAdmin(c, h.cfg.Admins, p)
		}
		principal = &p
	} else if !h.cfg.AllowAnonymous {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := hub.NewClient(conn, principal, h.cfg.Hub)
	if err := h.hub.Register(client); err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server shutting down"))
		_ = conn.Close()
		return
	}

	event := logger.Info().Str("conn_id", client.ID())
	if principal != nil {
		event = event.Int64("user_id", principal.UserID)
	}
	event.Msg("Chat client connected")

	go client.WritePump()
	client.ReadPump(c.Request.Context(), h.hub, h.handleFrame)

	logger.Info().Str("conn_id", client.ID()).Msg("Chat client disconnected")
}

func (h *ChatHandler) handleFrame(ctx context.Context, c *hub.Client, data []byte) {
	var principal *session.Principal
	if p, ok := c.Principal(); ok {
		principal = &p
	}
	// Failures are logged and counted by the service; the connection stays open.
	_, _ = h.service.HandleFrame(ctx, c.ID(), principal, data)
}
