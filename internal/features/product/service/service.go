package service

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "lunaexecutor-backend/internal/common/errors"
	"lunaexecutor-backend/internal/common/logger"
	"lunaexecutor-backend/internal/common/validation"
	"lunaexecutor-backend/internal/features/product/models"
	"lunaexecutor-backend/internal/features/product/repository"
)

type ProductService interface {
	List(ctx context.Context) ([]*models.Product, error)
	Create(ctx context.Context, req models.CreateProductRequest) (*models.Product, error)
	Update(ctx context.Context, id int64, req models.UpdateProductRequest) (*models.Product, error)
	Delete(ctx context.Context, id int64) error
}

// ListCache caches the product list under a single key.
type ListCache interface {
	GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, setter func() (interface{}, error)) error
	Invalidate(ctx context.Context, key string) error
}

type productService struct {
	repo     repository.ProductRepository
	cache    ListCache
	cacheKey string
	cacheTTL time.Duration
}

func NewProductService(repo repository.ProductRepository) ProductService {
	return &productService{repo: repo}
}

// NewCachedProductService caches List results in c under key for ttl.
func NewCachedProductService(repo repository.ProductRepository, c ListCache, key string, ttl time.Duration) ProductService {
	return &productService{repo: repo, cache: c, cacheKey: key, cacheTTL: ttl}
}

func (s *productService) List(ctx context.Context) ([]*models.Product, error) {
	if s.cache == nil {
		products, err := s.repo.List(ctx)
		if err != nil {
			return nil, apperrors.NewDatabaseError("list products", err)
		}
		return products, nil
	}

	products := make([]*models.Product, 0)
	err := s.cache.GetOrSet(ctx, s.cacheKey, &products, s.cacheTTL, func() (interface{}, error) {
		return s.repo.List(ctx)
	})
	if err != nil {
		return nil, apperrors.NewDatabaseError("list products", err)
	}
	return products, nil
}

func (s *productService) Create(ctx context.Context, req models.CreateProductRequest) (*models.Product, error) {
	p := &models.Product{
		Name:          strings.TrimSpace(req.Name),
		Description:   req.Description,
		ImageURL:      req.ImageURL,
		Version:       req.Version,
		DownloadURL:   req.DownloadURL,
		Badge:         req.Badge,
		BadgeVariant:  req.BadgeVariant,
		ButtonText:    req.ButtonText,
		ButtonVariant: req.ButtonVariant,
		Features:      req.Features,
	}
	if req.Price == nil {
		return nil, apperrors.NewValidationError("price", "price is required")
	}
	p.Price = *req.Price
	if p.Features == nil {
		p.Features = []string{}
	}

	if err := validateProduct(p); err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, p)
	if err != nil {
		return nil, apperrors.NewDatabaseError("create product", err)
	}
	s.invalidate(ctx)

	logger.Info().Int64("product_id", created.ID).Str("name", created.Name).Msg("Product created")
	return created, nil
}

func (s *productService) Update(ctx context.Context, id int64, req models.UpdateProductRequest) (*models.Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewProductNotFoundError(id)
		}
		return nil, apperrors.NewDatabaseError("get product", err)
	}

	applyPatch(p, req)
	if err := validateProduct(p); err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, p)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewProductNotFoundError(id)
		}
		return nil, apperrors.NewDatabaseError("update product", err)
	}
	s.invalidate(ctx)
	return updated, nil
}

func (s *productService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewProductNotFoundError(id)
		}
		return apperrors.NewDatabaseError("delete product", err)
	}
	s.invalidate(ctx)

	logger.Info().Int64("product_id", id).Msg("Product deleted")
	return nil
}

func (s *productService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, s.cacheKey); err != nil {
		logger.Warn().Err(err).Msg("Failed to invalidate product cache")
	}
}

func applyPatch(p *models.Product, req models.UpdateProductRequest) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	set(&p.Description, req.Description)
	set(&p.ImageURL, req.ImageURL)
	set(&p.Version, req.Version)
	set(&p.DownloadURL, req.DownloadURL)
	set(&p.Badge, req.Badge)
	set(&p.BadgeVariant, req.BadgeVariant)
	set(&p.ButtonText, req.ButtonText)
	set(&p.ButtonVariant, req.ButtonVariant)
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.Features != nil {
		p.Features = *req.Features
		if p.Features == nil {
			p.Features = []string{}
		}
	}
}

func validateProduct(p *models.Product) error {
	if err := validation.ValidateProductName(p.Name); err != nil {
		return apperrors.NewValidationError("name", err.Error())
	}
	if err := validation.ValidateDescription(p.Description); err != nil {
		return apperrors.NewValidationError("description", err.Error())
	}
	if err := validation.ValidatePrice(p.Price.Float64()); err != nil {
		return apperrors.NewValidationError("price", err.Error())
	}
	if err := validation.ValidateOptionalURL("imageUrl", p.ImageURL); err != nil {
		return apperrors.NewValidationError("imageUrl", err.Error())
	}
	if err := validation.ValidateOptionalURL("downloadUrl", p.DownloadURL); err != nil {
		return apperrors.NewValidationError("downloadUrl", err.Error())
	}
	for field, value := range map[string]string{
		"version":       p.Version,
		"badge":         p.Badge,
		"badgeVariant":  p.BadgeVariant,
		"buttonText":    p.ButtonText,
		"buttonVariant": p.ButtonVariant,
	} {
		if err := validation.ValidateShortField(field, value); err != nil {
			return apperrors.NewValidationError(field, err.Error())
		}
	}
	if err := validation.ValidateFeatures(p.Features); err != nil {
		return apperrors.NewValidationError("features", err.Error())
	}
	return nil
}
