package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lunaexecutor-backend/internal/common/middleware"
	"lunaexecutor-backend/internal/features/auth/models"
	"lunaexecutor-backend/internal/features/auth/service"
)

type AuthHandler struct {
	service service.AuthService
	cookies *CookieHelper
}

func NewAuthHandler(service service.AuthService, cookies *CookieHelper) *AuthHandler {
	return &AuthHandler{
		service: service,
		cookies: cookies,
	}
}

func (h *AuthHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/register", h.register)
	router.POST("/login", h.login)
	router.POST("/logout", middleware.RequireAuth(), h.logout)
	router.GET("/verify", h.verify)
}

// @Summary Register
// @Description Creates an account and opens a session
// @Tags auth
// @Accept json
// @Produce json
// @Param account body models.RegisterRequest true "Account"
// @Success 201 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /api/register [post]
func (h *AuthHandler) register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, sess, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	h.cookies.SetSession(c, sess.ID)
	c.JSON(http.StatusCreated, user)
}

// @Summary Log in
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body models.LoginRequest true "Credentials"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /api/login [post]
func (h *AuthHandler) login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, sess, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	h.cookies.SetSession(c, sess.ID)
	c.JSON(http.StatusOK, user)
}

// @Summary Log out
// @Tags auth
// @Security SessionCookie
// @Success 204
// @Failure 401 "Not authenticated"
// @Router /api/logout [post]
func (h *AuthHandler) logout(c *gin.Context) {
	if err := h.service.Logout(c.Request.Context(), middleware.GetSessionID(c)); err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	h.cookies.ClearSession(c)
	c.Status(http.StatusNoContent)
}

// @Summary Verify email
// @Tags auth
// @Produce json
// @Param token query string true "Verification token"
// @Success 200 {object} models.VerifyResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /api/verify [get]
func (h *AuthHandler) verify(c *gin.Context) {
	if err := h.service.Verify(c.Request.Context(), c.Query("token")); err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.VerifyResponse{Verified: true})
}
