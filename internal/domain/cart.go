package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is one (book, quantity) pairing in a cart. Book IDs are unique
// within a cart; adding an already-present book merges quantities instead
// of creating a second line.
type CartLine struct {
	Book     Book `json:"book"`
	Quantity int  `json:"quantity"`
}

// Subtotal returns unit price times quantity, without discount.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.Book.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// DiscountedSubtotal returns the discounted unit price times quantity.
// The result is intentionally unrounded; totals are rounded once at the
// end so per-line rounding cannot accumulate drift.
func (l CartLine) DiscountedSubtotal() decimal.Decimal {
	return l.Book.DiscountedPrice().Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is the server-side aggregate: one cart per user, stored with a TTL
// and an optimistic-locking version.
type Cart struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Lines     []CartLine `json:"lines"`
	Version   int        `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// FindLineIndex returns the index of the line for the given book ID, or -1.
func (c *Cart) FindLineIndex(bookID string) int {
	for i := range c.Lines {
		if c.Lines[i].Book.ID == bookID {
			return i
		}
	}
	return -1
}

// TotalQuantity returns the summed quantity across all lines.
func (c *Cart) TotalQuantity() int {
	var n int
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// Subtotal sums all line subtotals before discount, rounded to 2 decimals.
func (c *Cart) Subtotal() decimal.Decimal {
	return SumSubtotals(c.Lines)
}

// DiscountedTotal sums all discounted line subtotals, rounded to 2 decimals.
func (c *Cart) DiscountedTotal() decimal.Decimal {
	return SumDiscountedSubtotals(c.Lines)
}

// SumSubtotals sums line subtotals exactly and rounds the final result to
// 2 decimal places.
func SumSubtotals(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total.Round(2)
}

// SumDiscountedSubtotals sums discounted line subtotals exactly and rounds
// the final result to 2 decimal places. Rounding happens only here, never
// per line.
func SumDiscountedSubtotals(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.DiscountedSubtotal())
	}
	return total.Round(2)
}
