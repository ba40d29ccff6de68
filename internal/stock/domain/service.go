package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	CreateRecord(ctx context.Context, req CreateRecordRequest) (*RecordResponse, error)
	// CreateRecordTx is CreateRecord running inside the caller's transaction.
	CreateRecordTx(ctx context.Context, tx *gorm.DB, req CreateRecordRequest) (*RecordResponse, error)
	Get(ctx context.Context, productID snowflake.ID) (*RecordResponse, error)
	Reserve(ctx context.Context, req MutationRequest) (*MutationResponse, error)
	Restock(ctx context.Context, req MutationRequest) (*MutationResponse, error)
	Adjust(ctx context.Context, req AdjustRequest) (*MutationResponse, error)
	UpdateConfig(ctx context.Context, req UpdateConfigRequest) (*RecordResponse, error)
	History(ctx context.Context, productID snowflake.ID, limit int) ([]HistoryResponse, error)
}

type CreateRecordRequest struct {
	ProductID        snowflake.ID
	InitialQuantity  int
	ReorderThreshold *int
	MaxCapacity      *int
	Location         *string
	Actor            string
}

// MutationRequest carries a positive quantity for Reserve and Restock.
type MutationRequest struct {
	ProductID snowflake.ID
	Quantity  int
	Actor     string
	Reason    string
}

// AdjustRequest unifies reserve/restock by the sign of Delta.
type AdjustRequest struct {
	ProductID snowflake.ID
	Delta     int
	Actor     string
	Reason    string
}

type UpdateConfigRequest struct {
	ProductID        snowflake.ID
	ReorderThreshold *int
	MaxCapacity      *int
	Location         *string
	Actor            string
}

type RecordResponse struct {
	ProductID        string    `json:"product_id"`
	Quantity         int       `json:"quantity"`
	Status           Status    `json:"status"`
	ReorderThreshold int       `json:"reorder_threshold"`
	MaxCapacity      *int      `json:"max_capacity,omitempty"`
	Location         *string   `json:"location,omitempty"`
	LastUpdatedBy    string    `json:"last_updated_by"`
	LastUpdatedAt    time.Time `json:"last_updated_at"`
}

type MutationResponse struct {
	ProductID   string          `json:"product_id"`
	NewQuantity int             `json:"new_quantity"`
	Status      Status          `json:"status"`
	Entry       HistoryResponse `json:"entry"`
}

type HistoryResponse struct {
	ID             string         `json:"id"`
	ProductID      string         `json:"product_id"`
	ChangeType     ChangeType     `json:"change_type"`
	QuantityBefore int            `json:"quantity_before"`
	QuantityAfter  int            `json:"quantity_after"`
	Delta          int            `json:"delta"`
	Reason         string         `json:"reason"`
	Actor          string         `json:"actor"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

var (
	ErrInvalidProductID  = errors.New("invalid_product_id")
	ErrInvalidQuantity   = errors.New("invalid_quantity")
	ErrInvalidReason     = errors.New("invalid_reason")
	ErrInvalidThreshold  = errors.New("invalid_threshold")
	ErrRecordNotFound    = errors.New("stock_record_not_found")
	ErrRecordExists      = errors.New("stock_record_exists")
	ErrInsufficientStock = errors.New("insufficient_stock")
	ErrCapacityExceeded  = errors.New("capacity_exceeded")
	ErrLockUnavailable   = errors.New("stock_lock_unavailable")
)
