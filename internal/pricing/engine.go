package pricing

import (
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/greenbasket/backoffice/internal/config"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidQuantity = errors.New("invalid_quantity")
	ErrInvalidPrice    = errors.New("invalid_price")
	ErrInvalidDiscount = errors.New("invalid_discount")
)

// LineItem is one priced cart line. UnitDiscount is an absolute amount taken
// off each unit before the order-level discount applies.
type LineItem struct {
	ProductID    snowflake.ID
	Quantity     int
	UnitPrice    decimal.Decimal
	UnitDiscount decimal.Decimal
}

// Subtotal is (unit price - unit discount) * quantity, rounded to cents.
func (li LineItem) Subtotal() decimal.Decimal {
	unit := li.UnitPrice.Sub(li.UnitDiscount)
	return unit.Mul(decimal.NewFromInt(int64(li.Quantity))).Round(2)
}

type Totals struct {
	Subtotal     decimal.Decimal `json:"subtotal"`
	Discount     decimal.Decimal `json:"discount"`
	Tax          decimal.Decimal `json:"tax"`
	ShippingCost decimal.Decimal `json:"shipping_cost"`
	Total        decimal.Decimal `json:"total"`
}

// Engine prices carts from the current pricing configuration. It holds no
// per-order state; the same items and config always produce the same totals.
type Engine struct {
	holder *config.PricingConfigHolder
}

func NewEngine(holder *config.PricingConfigHolder) *Engine {
	return &Engine{holder: holder}
}

func (e *Engine) Price(items []LineItem) (Totals, error) {
	return PriceWith(e.holder.Get(), items)
}

// PriceWith computes order totals under the given configuration.
//
// The order-level discount and the tax are each rounded to four decimal
// places before the final rounding to cents, so the stored total always
// reconstructs exactly as subtotal - discount + tax + shipping.
func PriceWith(cfg config.PricingConfig, items []LineItem) (Totals, error) {
	subtotal := decimal.Zero
	for _, li := range items {
		if li.Quantity <= 0 {
			return Totals{}, ErrInvalidQuantity
		}
		if li.UnitPrice.IsNegative() {
			return Totals{}, ErrInvalidPrice
		}
		if li.UnitDiscount.IsNegative() || li.UnitDiscount.GreaterThan(li.UnitPrice) {
			return Totals{}, ErrInvalidDiscount
		}
		subtotal = subtotal.Add(li.Subtotal())
	}
	subtotal = subtotal.Round(2)

	discountRate := decimal.NewFromFloat(cfg.EcoDiscountRate)
	discount := subtotal.Mul(discountRate).Round(4).Round(2)

	taxable := subtotal.Sub(discount)
	taxRate := decimal.NewFromFloat(cfg.TaxRate)
	tax := taxable.Mul(taxRate).Round(4).Round(2)

	shipping := decimal.NewFromFloat(cfg.ShippingCost).Round(2)
	total := taxable.Add(tax).Add(shipping)

	return Totals{
		Subtotal:     subtotal,
		Discount:     discount,
		Tax:          tax,
		ShippingCost: shipping,
		Total:        total,
	}, nil
}
