package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mertkaradayi/bookcart/internal/domain"
	"github.com/mertkaradayi/bookcart/internal/repository"
	apperrors "github.com/mertkaradayi/bookcart/pkg/errors"
)

// Hard limits on cart shape. Requests pushing past them are rejected,
// never clamped.
const (
	MaxQuantityPerLine = 100
	MaxLinesPerCart    = 50
)

// saveRetries bounds how often a mutation is replayed after losing an
// optimistic-version race.
const saveRetries = 3

// EventPublisher publishes cart lifecycle events.
type EventPublisher interface {
	PublishCartUpdated(ctx context.Context, cart *domain.Cart) error
	PublishCartCleared(ctx context.Context, userID string) error
}

// MutationOutcome is the result of a cart mutation. Status always carries
// a token; Line is set only when the mutation touched a single line and
// reports its absolute resulting quantity.
type MutationOutcome struct {
	Cart   *domain.Cart
	Line   *domain.CartLine
	Status string
}

// Rejected reports whether the mutation was refused by a business rule
// rather than applied.
func (o *MutationOutcome) Rejected() bool {
	switch o.Status {
	case domain.StatusItemAdded, domain.StatusItemUpdated,
		domain.StatusItemRemoved, domain.StatusCartCleared:
		return false
	}
	return true
}

// CartService implements cart business logic on top of the repositories.
type CartService struct {
	carts   repository.CartRepository
	catalog repository.CatalogRepository
	events  EventPublisher
	logger  *slog.Logger
	cartTTL time.Duration
}

// NewCartService creates the cart service.
func NewCartService(
	carts repository.CartRepository,
	catalog repository.CatalogRepository,
	events EventPublisher,
	logger *slog.Logger,
	cartTTL time.Duration,
) *CartService {
	return &CartService{
		carts:   carts,
		catalog: catalog,
		events:  events,
		logger:  logger,
		cartTTL: cartTTL,
	}
}

// GetCart returns the user's cart, or a fresh empty cart when none is
// stored. The empty cart is not persisted until the first mutation.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return s.newCart(userID), nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return cart, nil
}

// AddItem adds a book to the cart or merges quantity into an existing
// line. The returned line carries the absolute resulting quantity.
func (s *CartService) AddItem(ctx context.Context, userID, bookID string, quantity int) (*MutationOutcome, error) {
	if quantity < 1 {
		return &MutationOutcome{Status: domain.StatusInvalidQuantity}, nil
	}

	book, err := s.catalog.GetBook(ctx, bookID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return &MutationOutcome{Status: domain.StatusBookNotFound}, nil
		}
		return nil, fmt.Errorf("get book: %w", err)
	}

	return s.mutate(ctx, userID, func(cart *domain.Cart) (*MutationOutcome, bool) {
		idx := cart.FindLineIndex(bookID)

		newQty := quantity
		if idx >= 0 {
			newQty = cart.Lines[idx].Quantity + quantity
		} else if len(cart.Lines) >= MaxLinesPerCart {
			return &MutationOutcome{Status: domain.StatusCartLimitReached}, false
		}

		if newQty > MaxQuantityPerLine {
			return &MutationOutcome{Status: domain.StatusInvalidQuantity}, false
		}
		if newQty > book.StockQuantity {
			return &MutationOutcome{Status: domain.StatusNotEnoughStock}, false
		}

		if idx >= 0 {
			cart.Lines[idx].Book = *book
			cart.Lines[idx].Quantity = newQty
		} else {
			cart.Lines = append(cart.Lines, domain.CartLine{Book: *book, Quantity: newQty})
			idx = len(cart.Lines) - 1
		}

		return &MutationOutcome{
			Cart:   cart,
			Line:   &cart.Lines[idx],
			Status: domain.StatusItemAdded,
		}, true
	})
}

// UpdateLineQuantity sets a line's quantity to an absolute value.
func (s *CartService) UpdateLineQuantity(ctx context.Context, userID, bookID string, quantity int) (*MutationOutcome, error) {
	if quantity < 1 {
		return &MutationOutcome{Status: domain.StatusInvalidQuantity}, nil
	}
	if quantity > MaxQuantityPerLine {
		return &MutationOutcome{Status: domain.StatusInvalidQuantity}, nil
	}

	return s.mutate(ctx, userID, func(cart *domain.Cart) (*MutationOutcome, bool) {
		idx := cart.FindLineIndex(bookID)
		if idx < 0 {
			return &MutationOutcome{Status: domain.StatusItemNotFound}, false
		}

		// Refresh the snapshot so stock is checked against the catalog,
		// not against whatever was true when the line was added. A book
		// withdrawn from the catalog keeps its stored snapshot.
		stock := cart.Lines[idx].Book.StockQuantity
		book, err := s.catalog.GetBook(ctx, bookID)
		if err == nil {
			cart.Lines[idx].Book = *book
			stock = book.StockQuantity
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "catalog lookup failed, using stored snapshot",
				slog.String("book_id", bookID),
				slog.String("error", err.Error()),
			)
		}

		if quantity > stock {
			return &MutationOutcome{Status: domain.StatusNotEnoughStock}, false
		}

		cart.Lines[idx].Quantity = quantity
		return &MutationOutcome{
			Cart:   cart,
			Line:   &cart.Lines[idx],
			Status: domain.StatusItemUpdated,
		}, true
	})
}

// RemoveLine removes a book's line from the cart.
func (s *CartService) RemoveLine(ctx context.Context, userID, bookID string) (*MutationOutcome, error) {
	return s.mutate(ctx, userID, func(cart *domain.Cart) (*MutationOutcome, bool) {
		idx := cart.FindLineIndex(bookID)
		if idx < 0 {
			return &MutationOutcome{Status: domain.StatusItemNotFound}, false
		}

		cart.Lines = append(cart.Lines[:idx], cart.Lines[idx+1:]...)
		return &MutationOutcome{
			Cart:   cart,
			Status: domain.StatusItemRemoved,
		}, true
	})
}

// ClearCart removes the user's cart entirely. Clearing an absent cart
// succeeds.
func (s *CartService) ClearCart(ctx context.Context, userID string) (*MutationOutcome, error) {
	if err := s.carts.Delete(ctx, userID); err != nil {
		return nil, fmt.Errorf("delete cart: %w", err)
	}

	if err := s.events.PublishCartCleared(ctx, userID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.cleared event",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	return &MutationOutcome{Status: domain.StatusCartCleared}, nil
}

// mutate loads the cart, applies fn, and saves under optimistic version
// control, replaying the whole mutation when a concurrent writer wins
// the race. fn returns false to reject without saving.
func (s *CartService) mutate(ctx context.Context, userID string, fn func(cart *domain.Cart) (*MutationOutcome, bool)) (*MutationOutcome, error) {
	for attempt := 0; attempt < saveRetries; attempt++ {
		cart, err := s.carts.Get(ctx, userID)
		if err != nil {
			if !errors.Is(err, apperrors.ErrNotFound) {
				return nil, fmt.Errorf("get cart: %w", err)
			}
			cart = s.newCart(userID)
		}
		expected := cart.Version

		outcome, save := fn(cart)
		if !save {
			return outcome, nil
		}

		now := time.Now().UTC()
		cart.UpdatedAt = now
		cart.ExpiresAt = now.Add(s.cartTTL)

		ok, err := s.carts.SaveIfVersion(ctx, cart, expected)
		if err != nil {
			return nil, fmt.Errorf("save cart: %w", err)
		}
		if !ok {
			s.logger.DebugContext(ctx, "cart version conflict, retrying",
				slog.String("user_id", userID),
				slog.Int("attempt", attempt+1),
			)
			continue
		}

		if err := s.events.PublishCartUpdated(ctx, cart); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish cart.updated event",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
		return outcome, nil
	}

	return nil, apperrors.Conflict("cart was modified concurrently, retry the request")
}

func (s *CartService) newCart(userID string) *domain.Cart {
	now := time.Now().UTC()
	return &domain.Cart{
		ID:        uuid.NewString(),
		UserID:    userID,
		Lines:     []domain.CartLine{},
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.cartTTL),
	}
}
