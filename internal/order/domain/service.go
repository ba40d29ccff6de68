package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Service interface {
	CreatePending(ctx context.Context, req CreateOrderRequest) (*OrderResponse, error)
	Get(ctx context.Context, id snowflake.ID) (*OrderResponse, error)
	GetByNumber(ctx context.Context, number string) (*OrderResponse, error)
	List(ctx context.Context, filter ListFilter) ([]OrderResponse, error)
	Confirm(ctx context.Context, id snowflake.ID, actor string) (*OrderResponse, error)
	Prepare(ctx context.Context, id snowflake.ID, actor string) (*OrderResponse, error)
	Ship(ctx context.Context, req ShipRequest) (*OrderResponse, error)
	Deliver(ctx context.Context, id snowflake.ID, actor string) (*OrderResponse, error)
	Cancel(ctx context.Context, req CancelRequest) (*OrderResponse, error)
}

type CreateOrderRequest struct {
	CustomerID      string
	ShippingAddress string
	PaymentMethod   string
	PaymentRef      string
	Subtotal        decimal.Decimal
	Discount        decimal.Decimal
	Tax             decimal.Decimal
	ShippingCost    decimal.Decimal
	Total           decimal.Decimal
	Lines           []CreateOrderLine
}

type CreateOrderLine struct {
	ProductID    snowflake.ID
	Quantity     int
	UnitPrice    decimal.Decimal
	UnitDiscount decimal.Decimal
	LineSubtotal decimal.Decimal
}

type ShipRequest struct {
	OrderID        snowflake.ID
	TrackingNumber string
	Carrier        string
	Actor          string
}

type CancelRequest struct {
	OrderID snowflake.ID
	Reason  string
	Actor   string
}

type OrderResponse struct {
	ID              string             `json:"id"`
	OrderNumber     string             `json:"order_number"`
	CustomerID      string             `json:"customer_id"`
	Status          Status             `json:"status"`
	Subtotal        decimal.Decimal    `json:"subtotal"`
	Discount        decimal.Decimal    `json:"discount"`
	Tax             decimal.Decimal    `json:"tax"`
	ShippingCost    decimal.Decimal    `json:"shipping_cost"`
	Total           decimal.Decimal    `json:"total"`
	ShippingAddress string             `json:"shipping_address"`
	PaymentMethod   string             `json:"payment_method"`
	PaymentRef      string             `json:"payment_ref,omitempty"`
	TrackingNumber  *string            `json:"tracking_number,omitempty"`
	Carrier         *string            `json:"carrier,omitempty"`
	CancelReason    *string            `json:"cancel_reason,omitempty"`
	DeliveredAt     *time.Time         `json:"delivered_at,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	Lines           []LineItemResponse `json:"lines"`
}

type LineItemResponse struct {
	ProductID    string          `json:"product_id"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	UnitDiscount decimal.Decimal `json:"unit_discount"`
	LineSubtotal decimal.Decimal `json:"line_subtotal"`
}

var (
	ErrOrderNotFound     = errors.New("order_not_found")
	ErrInvalidCustomer   = errors.New("invalid_customer")
	ErrInvalidAddress    = errors.New("invalid_shipping_address")
	ErrInvalidTracking   = errors.New("invalid_tracking_number")
	ErrInvalidReason     = errors.New("invalid_cancel_reason")
	ErrEmptyOrder        = errors.New("empty_order")
	ErrInvalidTransition = errors.New("invalid_transition")
)

// TransitionError wraps ErrInvalidTransition with both endpoints so callers
// can surface the rejected move.
func TransitionError(from, to Status) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
