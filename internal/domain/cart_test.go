package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestBook_DiscountedPrice(t *testing.T) {
	b := Book{Price: decimal.NewFromFloat(20.00), DiscountPercent: 50}
	assert.True(t, b.DiscountedPrice().Equal(decimal.NewFromFloat(10.00)))

	noDiscount := Book{Price: decimal.NewFromFloat(10.00), DiscountPercent: 0}
	assert.True(t, noDiscount.DiscountedPrice().Equal(decimal.NewFromFloat(10.00)))
}

func TestCartLine_Subtotals(t *testing.T) {
	line := CartLine{
		Book:     Book{Price: decimal.NewFromFloat(19.99), DiscountPercent: 25},
		Quantity: 3,
	}

	assert.True(t, line.Subtotal().Equal(mustDecimal(t, "59.97")))
	// 19.99 * 0.75 * 3 = 44.9775, kept unrounded at line level.
	assert.True(t, line.DiscountedSubtotal().Equal(mustDecimal(t, "44.9775")))
}

func TestSumTotals_MixedDiscounts(t *testing.T) {
	lines := []CartLine{
		{Book: Book{ID: "a", Price: decimal.NewFromFloat(10.00), DiscountPercent: 0}, Quantity: 2},
		{Book: Book{ID: "b", Price: decimal.NewFromFloat(20.00), DiscountPercent: 50}, Quantity: 1},
	}

	assert.True(t, SumSubtotals(lines).Equal(mustDecimal(t, "40.00")))
	assert.True(t, SumDiscountedSubtotals(lines).Equal(mustDecimal(t, "30.00")))
}

// Rounding per line before summing would drift: 100 lines of 0.10 at 33%
// off are 6.70 exactly, while per-line rounding to 2 decimals gives 7.00.
func TestSumDiscountedSubtotals_NoPerLineRoundingDrift(t *testing.T) {
	lines := make([]CartLine, 100)
	for i := range lines {
		lines[i] = CartLine{
			Book:     Book{ID: "b", Price: decimal.NewFromFloat(0.10), DiscountPercent: 33},
			Quantity: 1,
		}
	}

	// 0.10 * 0.67 = 0.067 per line; * 100 = 6.70.
	assert.True(t, SumDiscountedSubtotals(lines).Equal(mustDecimal(t, "6.70")))
}

func TestCart_FindLineIndex(t *testing.T) {
	cart := &Cart{Lines: []CartLine{
		{Book: Book{ID: "a"}, Quantity: 1},
		{Book: Book{ID: "b"}, Quantity: 2},
	}}

	assert.Equal(t, 0, cart.FindLineIndex("a"))
	assert.Equal(t, 1, cart.FindLineIndex("b"))
	assert.Equal(t, -1, cart.FindLineIndex("missing"))
}

func TestCart_TotalQuantityAndTotals(t *testing.T) {
	cart := &Cart{Lines: []CartLine{
		{Book: Book{ID: "a", Price: decimal.NewFromFloat(10.00)}, Quantity: 2},
		{Book: Book{ID: "b", Price: decimal.NewFromFloat(20.00), DiscountPercent: 50}, Quantity: 1},
	}}

	assert.Equal(t, 3, cart.TotalQuantity())
	assert.True(t, cart.Subtotal().Equal(mustDecimal(t, "40.00")))
	assert.True(t, cart.DiscountedTotal().Equal(mustDecimal(t, "30.00")))
}
