package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Service interface {
	Create(ctx context.Context, req CreateProductRequest) (*ProductResponse, error)
	Get(ctx context.Context, id snowflake.ID) (*ProductResponse, error)
	Lookup(ctx context.Context, code string) (*ProductResponse, error)
	List(ctx context.Context, activeOnly bool) ([]ProductResponse, error)
}

type CreateProductRequest struct {
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Price           decimal.Decimal `json:"price"`
	InitialQuantity int             `json:"initial_quantity"`
	MaxCapacity     *int            `json:"max_capacity,omitempty"`
	Location        *string         `json:"location,omitempty"`
	Metadata        map[string]any  `json:"metadata,omitempty"`
	Actor           string          `json:"-"`
}

type ProductResponse struct {
	ID          string          `json:"id"`
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Active      bool            `json:"active"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

var (
	ErrInvalidName     = errors.New("invalid_product_name")
	ErrInvalidPrice    = errors.New("invalid_product_price")
	ErrProductExists   = errors.New("product_exists")
	ErrProductNotFound = errors.New("product_not_found")
)
