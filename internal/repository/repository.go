package repository

import (
	"context"

	"github.com/mertkaradayi/bookcart/internal/domain"
)

// CartRepository persists carts keyed by user ID.
type CartRepository interface {
	// Get retrieves a user's cart.
	Get(ctx context.Context, userID string) (*domain.Cart, error)

	// SaveIfVersion persists the cart only when the stored version still
	// matches expectedVersion, bumping the version on success. Returns
	// false on a version conflict.
	SaveIfVersion(ctx context.Context, cart *domain.Cart, expectedVersion int) (bool, error)

	// Delete removes a user's cart.
	Delete(ctx context.Context, userID string) error
}

// CatalogRepository resolves book snapshots for cart operations. The
// catalog, not the cart, is the source of truth for price and stock.
type CatalogRepository interface {
	// GetBook retrieves a book snapshot by ID.
	GetBook(ctx context.Context, id string) (*domain.Book, error)

	// PutBook stores a book snapshot (seeding and catalog sync).
	PutBook(ctx context.Context, book *domain.Book) error
}
