package app

import (
	"github.com/shopspring/decimal"

	"github.com/mertkaradayi/bookcart/internal/domain"
)

// SeedBook is a catalog entry in a form convenient for fixture files.
type SeedBook struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Authors         []string `json:"authors"`
	Price           string   `json:"price"`
	DiscountPercent int64    `json:"discount_percent"`
	StockQuantity   int      `json:"stock_quantity"`
	CoverURL        string   `json:"cover_url"`
}

func (b SeedBook) toDomain() *domain.Book {
	price, err := decimal.NewFromString(b.Price)
	if err != nil {
		price = decimal.Zero
	}
	return &domain.Book{
		ID:              b.ID,
		Title:           b.Title,
		Authors:         b.Authors,
		Price:           price,
		DiscountPercent: b.DiscountPercent,
		StockQuantity:   b.StockQuantity,
		CoverURL:        b.CoverURL,
	}
}
