package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lunaexecutor-backend/internal/common/middleware"
	"lunaexecutor-backend/internal/features/user/models"
	"lunaexecutor-backend/internal/features/user/service"
)

type UserHandler struct {
	service service.UserService
}

func NewUserHandler(service service.UserService) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	user := router.Group("/user")
	user.Use(middleware.RequireAuth())
	{
		user.GET("", h.getMe)
		user.PATCH("", h.updateProfile)
		user.GET("/stats", h.GetStats)
		user.POST("/executions", h.recordExecution)
	}
}

// RegisterLegacyRoutes mounts the unprefixed stats path used by older dashboards.
func (h *UserHandler) RegisterLegacyRoutes(router gin.IRouter) {
	router.GET("/user-stats", middleware.RequireAuth(), h.GetStats)
}

// @Summary Get current user
// @Tags users
// @Produce json
// @Security SessionCookie
// @Success 200 {object} models.User
// @Failure 401 "Not authenticated"
// @Router /api/user [get]
func (h *UserHandler) getMe(c *gin.Context) {
	p, _ := middleware.GetPrincipal(c)

	user, err := h.service.GetProfile(c.Request.Context(), p.UserID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// @Summary Update profile
// @Description Updates username and/or email. Any admin flag in the body is ignored.
// @Tags users
// @Accept json
// @Produce json
// @Security SessionCookie
// @Param profile body models.UpdateProfileRequest true "Profile fields"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 "Not authenticated"
// @Failure 409 {object} models.ErrorResponse
// @Router /api/user [patch]
func (h *UserHandler) updateProfile(c *gin.Context) {
	p, _ := middleware.GetPrincipal(c)

	var input models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.service.UpdateProfile(c.Request.Context(), p.UserID, input)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// @Summary Get execution statistics
// @Description Daily execution buckets for the current user, oldest first
// @Tags users
// @Produce json
// @Security SessionCookie
// @Success 200 {array} models.UserStat
// @Failure 401 "Not authenticated"
// @Failure 500 {object} models.ErrorResponse
// @Router /api/user/stats [get]
func (h *UserHandler) GetStats(c *gin.Context) {
	p, _ := middleware.GetPrincipal(c)

	stats, err := h.service.GetStats(c.Request.Context(), p.UserID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// @Summary Record a task execution
// @Tags users
// @Accept json
// @Produce json
// @Security SessionCookie
// @Param execution body models.RecordExecutionRequest true "Execution result"
// @Success 201 {object} models.UserStat
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 "Not authenticated"
// @Router /api/user/executions [post]
func (h *UserHandler) recordExecution(c *gin.Context) {
	p, _ := middleware.GetPrincipal(c)

	var input models.RecordExecutionRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stat, err := h.service.RecordExecution(c.Request.Context(), p.UserID, *input.Success)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, stat)
}
