package models

import "time"

// Product is a downloadable catalogue entry
// @Description Catalogue product
type Product struct {
	ID            int64     `json:"id" example:"1"`
	Name          string    `json:"name" example:"Luna Executor"`
	Description   string    `json:"description" example:"Fast and stable executor"`
	Price         Price     `json:"price" swaggertype:"number" example:"9.99"`
	ImageURL      string    `json:"imageUrl" example:"/images/luna.png"`
	Version       string    `json:"version" example:"2.4.1"`
	DownloadURL   string    `json:"downloadUrl" example:"https://cdn.example.com/luna.zip"`
	Badge         string    `json:"badge" example:"Popular"`
	BadgeVariant  string    `json:"badgeVariant" example:"default"`
	ButtonText    string    `json:"buttonText" example:"Download"`
	ButtonVariant string    `json:"buttonVariant" example:"default"`
	Features      []string  `json:"features" example:"Auto-update,Script hub"`
	CreatedAt     time.Time `json:"createdAt" example:"2024-03-15T14:30:00Z"`
	UpdatedAt     time.Time `json:"updatedAt" example:"2024-03-15T14:30:00Z"`
}

// CreateProductRequest creates a product; price may be a number or a numeric string
type CreateProductRequest struct {
	Name          string   `json:"name" binding:"required,notblank" example:"Luna Executor"`
	Description   string   `json:"description" binding:"required,notblank" example:"Fast and stable executor"`
	Price         *Price   `json:"price" binding:"required" swaggertype:"number" example:"9.99"`
	ImageURL      string   `json:"imageUrl" example:"/images/luna.png"`
	Version       string   `json:"version" example:"2.4.1"`
	DownloadURL   string   `json:"downloadUrl" example:"https://cdn.example.com/luna.zip"`
	Badge         string   `json:"badge" example:"Popular"`
	BadgeVariant  string   `json:"badgeVariant" example:"default"`
	ButtonText    string   `json:"buttonText" example:"Download"`
	ButtonVariant string   `json:"buttonVariant" example:"default"`
	Features      []string `json:"features" example:"Auto-update,Script hub"`
}

// UpdateProductRequest patches a product; absent fields are left unchanged
type UpdateProductRequest struct {
	Name          *string   `json:"name" example:"Luna Executor"`
	Description   *string   `json:"description" example:"Fast and stable executor"`
	Price         *Price    `json:"price" swaggertype:"number" example:"12.5"`
	ImageURL      *string   `json:"imageUrl"`
	Version       *string   `json:"version"`
	DownloadURL   *string   `json:"downloadUrl"`
	Badge         *string   `json:"badge"`
	BadgeVariant  *string   `json:"badgeVariant"`
	ButtonText    *string   `json:"buttonText"`
	ButtonVariant *string   `json:"buttonVariant"`
	Features      *[]string `json:"features"`
}

type ErrorResponse struct {
	Error string `json:"error" example:"Error message"`
}
