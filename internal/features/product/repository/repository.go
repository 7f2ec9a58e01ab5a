package repository

import (
	"context"
	"errors"

	"lunaexecutor-backend/internal/features/product/models"
)

var ErrNotFound = errors.New("product not found")

type ProductRepository interface {
	List(ctx context.Context) ([]*models.Product, error)
	GetByID(ctx context.Context, id int64) (*models.Product, error)
	Create(ctx context.Context, p *models.Product) (*models.Product, error)
	// Update overwrites every mutable column of p.ID.
	Update(ctx context.Context, p *models.Product) (*models.Product, error)
	Delete(ctx context.Context, id int64) error
}
