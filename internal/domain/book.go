package domain

import "github.com/shopspring/decimal"

// Book is a read-only snapshot of a catalog entry at the time it was
// fetched or added to a cart. The cart never owns the book's lifecycle;
// the catalog is the source of truth for price and stock.
type Book struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Authors         []string        `json:"authors,omitempty"`
	Price           decimal.Decimal `json:"price"`
	DiscountPercent int64           `json:"discount_percent"`
	StockQuantity   int             `json:"stock_quantity"`
	CoverURL        string          `json:"cover_url,omitempty"`
}

// DiscountedPrice returns the per-unit price after discount, unrounded.
// DiscountPercent is in [0, 100]; 0 means no discount.
func (b Book) DiscountedPrice() decimal.Decimal {
	if b.DiscountPercent <= 0 {
		return b.Price
	}
	factor := decimal.NewFromInt(100 - b.DiscountPercent).Div(decimal.NewFromInt(100))
	return b.Price.Mul(factor)
}
