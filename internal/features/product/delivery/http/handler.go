package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "lunaexecutor-backend/internal/common/errors"
	"lunaexecutor-backend/internal/common/logger"
	"lunaexecutor-backend/internal/common/middleware"
	"lunaexecutor-backend/internal/features/product/models"
	"lunaexecutor-backend/internal/features/product/service"
)

type ProductHandler struct {
	service service.ProductService
	admins  middleware.AdminLookup
}

// NewProductHandler guards mutations with the stored admin flag when admins
// is set, otherwise with the flag captured in the session.
func NewProductHandler(service service.ProductService, admins middleware.AdminLookup) *ProductHandler {
	return &ProductHandler{
		service: service,
		admins:  admins,
	}
}

func (h *ProductHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/products", h.List)

	// Admin check runs before the body is read or storage is touched.
	admin := router.Group("/products")
	admin.Use(middleware.RequireAdmin(h.admins))
	{
		admin.POST("", h.create)
		admin.PATCH("/:id", h.update)
		admin.DELETE("/:id", h.delete)
	}
}

func (h *ProductHandler) RegisterLegacyRoutes(router gin.IRouter) {
	router.GET("/products", h.List)
}

// @Summary List products
// @Tags products
// @Produce json
// @Success 200 {array} models.Product
// @Failure 500 {object} models.ErrorResponse
// @Router /api/products [get]
func (h *ProductHandler) List(c *gin.Context) {
	products, err := h.service.List(c.Request.Context())
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, products)
}

// @Summary Create product
// @Tags products
// @Accept json
// @Produce json
// @Security SessionCookie
// @Param product body models.CreateProductRequest true "Product"
// @Success 201 {object} models.Product
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /api/products [post]
func (h *ProductHandler) create(c *gin.Context) {
	var input models.CreateProductRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	product, err := h.service.Create(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, product)
}

// @Summary Update product
// @Tags products
// @Accept json
// @Produce json
// @Security SessionCookie
// @Param id path int true "Product ID"
// @Param product body models.UpdateProductRequest true "Fields to change"
// @Success 200 {object} models.Product
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/products/{id} [patch]
func (h *ProductHandler) update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var input models.UpdateProductRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	product, err := h.service.Update(c.Request.Context(), id, input)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

// @Summary Delete product
// @Tags products
// @Security SessionCookie
// @Param id path int true "Product ID"
// @Success 204
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/products/{id} [delete]
func (h *ProductHandler) delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID format"})
		return 0, false
	}
	return id, true
}

// respondError reports mutation failures as 400 {error}; not-found stays 404.
func (h *ProductHandler) respondError(c *gin.Context, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		appErr = apperrors.Wrap(err, apperrors.ErrCodeInternal, "Product operation failed")
	}

	status := middleware.HTTPStatus(appErr)
	if status >= http.StatusInternalServerError {
		logger.Error().
			Err(appErr).
			Str("path", c.Request.URL.Path).
			Msg("Product mutation failed")
		status = http.StatusBadRequest
	}
	c.AbortWithStatusJSON(status, gin.H{"error": appErr.Message})
}
