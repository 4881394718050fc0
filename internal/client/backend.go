package client

import (
	"context"

	"github.com/mertkaradayi/bookcart/internal/domain"
)

// MutationResult is the backend's answer to a cart mutation.
//
// The contract is absolute, not delta-based: Line always carries the full
// resulting line after the mutation (post-merge quantity included), so the
// caller replaces its local line wholesale. Line is nil when the mutation
// was rejected or when it removed the line.
type MutationResult struct {
	// OK reports whether the backend applied the mutation.
	OK bool

	// Line is the absolute resulting cart line, if one exists.
	Line *domain.CartLine

	// Status is the opaque status token describing the outcome. It is set
	// on both applied and rejected mutations.
	Status string
}

// CartBackend is the remote collaborator owning cart persistence. A
// rejected mutation (insufficient stock, unknown item) is a normal result,
// not an error; errors are reserved for transport and server failures.
type CartBackend interface {
	// FetchCart returns the full current cart contents.
	FetchCart(ctx context.Context) ([]domain.CartLine, error)

	// AddItem adds quantity of a book to the cart, merging with an
	// existing line for the same book.
	AddItem(ctx context.Context, bookID string, quantity int) (MutationResult, error)

	// UpdateItem sets the line for a book to exactly quantity.
	UpdateItem(ctx context.Context, bookID string, quantity int) (MutationResult, error)

	// RemoveItem deletes the line for a book.
	RemoveItem(ctx context.Context, bookID string) (MutationResult, error)

	// ClearCart deletes all lines.
	ClearCart(ctx context.Context) (MutationResult, error)
}
