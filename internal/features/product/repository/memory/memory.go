// Package memory is an in-process product repository for tests and local tooling.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"lunaexecutor-backend/internal/features/product/models"
	"lunaexecutor-backend/internal/features/product/repository"
)

type Repository struct {
	mu       sync.Mutex
	nextID   int64
	products map[int64]*models.Product
	calls    int

	// Err, when set, is returned by every method.
	Err error
}

var _ repository.ProductRepository = (*Repository)(nil)

func New() *Repository {
	return &Repository{products: make(map[int64]*models.Product)}
}

func clone(p *models.Product) *models.Product {
	c := *p
	c.Features = append([]string{}, p.Features...)
	return &c
}

// Calls reports how many repository methods have been invoked.
func (r *Repository) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *Repository) begin() error {
	r.calls++
	return r.Err
}

func (r *Repository) List(ctx context.Context) ([]*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.begin(); err != nil {
		return nil, err
	}
	out := make([]*models.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, clone(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.begin(); err != nil {
		return nil, err
	}
	p, ok := r.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(p), nil
}

func (r *Repository) Create(ctx context.Context, p *models.Product) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.begin(); err != nil {
		return nil, err
	}
	r.nextID++
	created := clone(p)
	created.ID = r.nextID
	created.CreatedAt = time.Now().UTC()
	created.UpdatedAt = created.CreatedAt
	r.products[created.ID] = created
	return clone(created), nil
}

func (r *Repository) Update(ctx context.Context, p *models.Product) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.begin(); err != nil {
		return nil, err
	}
	existing, ok := r.products[p.ID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	updated := clone(p)
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()
	r.products[p.ID] = updated
	return clone(updated), nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.begin(); err != nil {
		return err
	}
	if _, ok := r.products[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.products, id)
	return nil
}
