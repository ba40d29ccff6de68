package pricing

import (
	"testing"

	"github.com/greenbasket/backoffice/internal/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func defaultRates() config.PricingConfig {
	return config.PricingConfig{
		EcoDiscountRate: 0.05,
		TaxRate:         0.18,
		ShippingCost:    0,
	}
}

func TestPriceWithSingleLine(t *testing.T) {
	totals, err := PriceWith(defaultRates(), []LineItem{
		{Quantity: 4, UnitPrice: dec("20.00"), UnitDiscount: decimal.Zero},
	})
	require.NoError(t, err)

	assert.True(t, totals.Subtotal.Equal(dec("80.00")), "subtotal %s", totals.Subtotal)
	assert.True(t, totals.Discount.Equal(dec("4.00")), "discount %s", totals.Discount)
	assert.True(t, totals.Tax.Equal(dec("13.68")), "tax %s", totals.Tax)
	assert.True(t, totals.Total.Equal(dec("89.68")), "total %s", totals.Total)
}

func TestPriceWithUnitDiscountAndShipping(t *testing.T) {
	cfg := config.PricingConfig{
		EcoDiscountRate: 0.05,
		TaxRate:         0.18,
		ShippingCost:    4.99,
	}
	totals, err := PriceWith(cfg, []LineItem{
		{Quantity: 2, UnitPrice: dec("15.50"), UnitDiscount: dec("1.50")},
		{Quantity: 1, UnitPrice: dec("9.99"), UnitDiscount: decimal.Zero},
	})
	require.NoError(t, err)

	// (15.50-1.50)*2 + 9.99 = 37.99
	assert.True(t, totals.Subtotal.Equal(dec("37.99")), "subtotal %s", totals.Subtotal)
	assert.True(t, totals.ShippingCost.Equal(dec("4.99")))

	reconstructed := totals.Subtotal.Sub(totals.Discount).Add(totals.Tax).Add(totals.ShippingCost)
	assert.True(t, totals.Total.Equal(reconstructed), "total %s vs reconstructed %s", totals.Total, reconstructed)
}

func TestPriceDeterministic(t *testing.T) {
	items := []LineItem{
		{Quantity: 3, UnitPrice: dec("7.33"), UnitDiscount: dec("0.33")},
		{Quantity: 5, UnitPrice: dec("1.01"), UnitDiscount: decimal.Zero},
	}

	first, err := PriceWith(defaultRates(), items)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		again, err := PriceWith(defaultRates(), items)
		require.NoError(t, err)
		assert.True(t, first.Total.Equal(again.Total))
		assert.True(t, first.Discount.Equal(again.Discount))
		assert.True(t, first.Tax.Equal(again.Tax))
	}
}

func TestTotalReconstructsExactly(t *testing.T) {
	carts := [][]LineItem{
		{{Quantity: 1, UnitPrice: dec("0.01"), UnitDiscount: decimal.Zero}},
		{{Quantity: 7, UnitPrice: dec("3.17"), UnitDiscount: dec("0.17")}},
		{
			{Quantity: 2, UnitPrice: dec("99.99"), UnitDiscount: decimal.Zero},
			{Quantity: 13, UnitPrice: dec("0.59"), UnitDiscount: dec("0.09")},
		},
	}

	for _, items := range carts {
		totals, err := PriceWith(defaultRates(), items)
		require.NoError(t, err)
		reconstructed := totals.Subtotal.Sub(totals.Discount).Add(totals.Tax).Add(totals.ShippingCost)
		assert.True(t, totals.Total.Equal(reconstructed),
			"total %s != subtotal-discount+tax+shipping %s", totals.Total, reconstructed)
	}
}

func TestPriceZeroLines(t *testing.T) {
	totals, err := PriceWith(defaultRates(), nil)
	require.NoError(t, err)
	assert.True(t, totals.Subtotal.IsZero())
	assert.True(t, totals.Discount.IsZero())
	assert.True(t, totals.Tax.IsZero())
	assert.True(t, totals.Total.IsZero())
}

func TestPriceRejectsInvalidLines(t *testing.T) {
	cases := []struct {
		name string
		item LineItem
		want error
	}{
		{"zero quantity", LineItem{Quantity: 0, UnitPrice: dec("1.00")}, ErrInvalidQuantity},
		{"negative quantity", LineItem{Quantity: -2, UnitPrice: dec("1.00")}, ErrInvalidQuantity},
		{"negative price", LineItem{Quantity: 1, UnitPrice: dec("-1.00")}, ErrInvalidPrice},
		{"negative discount", LineItem{Quantity: 1, UnitPrice: dec("1.00"), UnitDiscount: dec("-0.10")}, ErrInvalidDiscount},
		{"discount above price", LineItem{Quantity: 1, UnitPrice: dec("1.00"), UnitDiscount: dec("1.50")}, ErrInvalidDiscount},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := PriceWith(defaultRates(), []LineItem{tc.item})
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestEngineUsesHolderConfig(t *testing.T) {
	holder := config.NewStaticPricingConfigHolder(config.PricingConfig{
		EcoDiscountRate: 0,
		TaxRate:         0,
		ShippingCost:    10,
	})
	engine := NewEngine(holder)

	totals, err := engine.Price([]LineItem{
		{Quantity: 1, UnitPrice: dec("5.00")},
	})
	require.NoError(t, err)
	assert.True(t, totals.Discount.IsZero())
	assert.True(t, totals.Tax.IsZero())
	assert.True(t, totals.Total.Equal(dec("15.00")))
}
