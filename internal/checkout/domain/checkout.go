package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	orderdomain "github.com/greenbasket/backoffice/internal/order/domain"
	"github.com/greenbasket/backoffice/internal/pricing"
	"github.com/shopspring/decimal"
)

type Service interface {
	Checkout(ctx context.Context, req CheckoutRequest) (*orderdomain.OrderResponse, error)
	Preview(ctx context.Context, items []CartItem) (*PreviewResponse, error)
}

type CartItem struct {
	ProductID    snowflake.ID    `json:"product_id"`
	Quantity     int             `json:"quantity"`
	UnitDiscount decimal.Decimal `json:"unit_discount"`
}

type CheckoutRequest struct {
	CustomerID      string     `json:"customer_id"`
	ShippingAddress string     `json:"shipping_address"`
	PaymentMethod   string     `json:"payment_method"`
	Items           []CartItem `json:"items"`
	Actor           string     `json:"-"`
}

// PreviewResponse prices a cart without touching stock or payment.
type PreviewResponse struct {
	Lines  []PreviewLine  `json:"lines"`
	Totals pricing.Totals `json:"totals"`
}

type PreviewLine struct {
	ProductID    string          `json:"product_id"`
	Name         string          `json:"name"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	UnitDiscount decimal.Decimal `json:"unit_discount"`
	LineSubtotal decimal.Decimal `json:"line_subtotal"`
}

// PaymentProcessor authorizes a payment for the given total. Implementations
// return an opaque reference on approval.
type PaymentProcessor interface {
	Authorize(ctx context.Context, customerID string, method string, amount decimal.Decimal) (string, error)
}

var (
	ErrEmptyCart        = errors.New("empty_cart")
	ErrInvalidQuantity  = errors.New("invalid_quantity")
	ErrProductNotFound  = errors.New("product_not_found")
	ErrProductInactive  = errors.New("product_inactive")
	ErrStockUnavailable = errors.New("stock_unavailable")
	ErrPaymentDeclined  = errors.New("payment_declined")
)
