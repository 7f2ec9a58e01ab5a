package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"lunaexecutor-backend/internal/features/product/models"
	"lunaexecutor-backend/internal/features/product/repository"
)

const productColumns = `id, name, description, price, image_url, version, download_url,
		badge, badge_variant, button_text, button_variant, features, created_at, updated_at`

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var _ repository.ProductRepository = (*PostgresRepository)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*models.Product, error) {
	var (
		p        models.Product
		price    float64
		features []byte
	)
	err := row.Scan(&p.ID, &p.Name, &p.Description, &price, &p.ImageURL, &p.Version, &p.DownloadURL,
		&p.Badge, &p.BadgeVariant, &p.ButtonText, &p.ButtonVariant, &features, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Price = models.Price(price)

	p.Features = []string{}
	if len(features) > 0 {
		if err := json.Unmarshal(features, &p.Features); err != nil {
			return nil, fmt.Errorf("decode features: %w", err)
		}
	}
	return &p, nil
}

func encodeFeatures(features []string) ([]byte, error) {
	if features == nil {
		features = []string{}
	}
	data, err := json.Marshal(features)
	if err != nil {
		return nil, fmt.Errorf("encode features: %w", err)
	}
	return data, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := make([]*models.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}
	return products, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	p, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) Create(ctx context.Context, p *models.Product) (*models.Product, error) {
	features, err := encodeFeatures(p.Features)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO products (name, description, price, image_url, version, download_url,
			badge, badge_variant, button_text, button_variant, features)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + productColumns

	created, err := scanProduct(r.db.QueryRowContext(ctx, query,
		p.Name, p.Description, p.Price.Float64(), p.ImageURL, p.Version, p.DownloadURL,
		p.Badge, p.BadgeVariant, p.ButtonText, p.ButtonVariant, features))
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return created, nil
}

func (r *PostgresRepository) Update(ctx context.Context, p *models.Product) (*models.Product, error) {
	features, err := encodeFeatures(p.Features)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE products SET
			name = $2, description = $3, price = $4, image_url = $5, version = $6,
			download_url = $7, badge = $8, badge_variant = $9, button_text = $10,
			button_variant = $11, features = $12, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + productColumns

	updated, err := scanProduct(r.db.QueryRowContext(ctx, query,
		p.ID, p.Name, p.Description, p.Price.Float64(), p.ImageURL, p.Version,
		p.DownloadURL, p.Badge, p.BadgeVariant, p.ButtonText, p.ButtonVariant, features))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return updated, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}
