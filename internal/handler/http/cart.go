package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mertkaradayi/bookcart/internal/domain"
	"github.com/mertkaradayi/bookcart/internal/service"
	apperrors "github.com/mertkaradayi/bookcart/pkg/errors"
	pkgvalidator "github.com/mertkaradayi/bookcart/pkg/validator"
)

// CartService is the business API the handler depends on.
type CartService interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	AddItem(ctx context.Context, userID, bookID string, quantity int) (*service.MutationOutcome, error)
	UpdateLineQuantity(ctx context.Context, userID, bookID string, quantity int) (*service.MutationOutcome, error)
	RemoveLine(ctx context.Context, userID, bookID string) (*service.MutationOutcome, error)
	ClearCart(ctx context.Context, userID string) (*service.MutationOutcome, error)
}

// CartHandler exposes cart operations over REST.
type CartHandler struct {
	service CartService
	logger  *slog.Logger
}

// NewCartHandler creates the cart HTTP handler.
func NewCartHandler(svc CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{service: svc, logger: logger}
}

type addItemRequest struct {
	BookID   string `json:"book_id" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,gte=1,lte=100"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity" validate:"required,gte=1,lte=100"`
}

// cartResponse is the serialized cart with totals computed server-side so
// every client renders the same numbers.
type cartResponse struct {
	ID              string            `json:"id"`
	UserID          string            `json:"user_id"`
	Lines           []domain.CartLine `json:"lines"`
	TotalQuantity   int               `json:"total_quantity"`
	Subtotal        string            `json:"subtotal"`
	DiscountedTotal string            `json:"discounted_total"`
	Version         int               `json:"version"`
}

func toCartResponse(cart *domain.Cart) cartResponse {
	lines := cart.Lines
	if lines == nil {
		lines = []domain.CartLine{}
	}
	return cartResponse{
		ID:              cart.ID,
		UserID:          cart.UserID,
		Lines:           lines,
		TotalQuantity:   cart.TotalQuantity(),
		Subtotal:        cart.Subtotal().StringFixed(2),
		DiscountedTotal: cart.DiscountedTotal().StringFixed(2),
		Version:         cart.Version,
	}
}

// GetCart handles GET /api/v1/cart.
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	cart, err := h.service.GetCart(r.Context(), userID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondData(w, toCartResponse(cart))
}

// AddItem handles POST /api/v1/cart/items.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, h.logger, apperrors.InvalidInput("invalid request body"))
		return
	}
	if err := pkgvalidator.Validate(req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	out, err := h.service.AddItem(r.Context(), userID, req.BookID, req.Quantity)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	h.respondOutcome(w, out)
}

// UpdateItem handles PUT /api/v1/cart/items/{bookID}.
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	bookID := chi.URLParam(r, "bookID")

	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, h.logger, apperrors.InvalidInput("invalid request body"))
		return
	}
	if err := pkgvalidator.Validate(req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	out, err := h.service.UpdateLineQuantity(r.Context(), userID, bookID, req.Quantity)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	h.respondOutcome(w, out)
}

// RemoveItem handles DELETE /api/v1/cart/items/{bookID}.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	bookID := chi.URLParam(r, "bookID")

	out, err := h.service.RemoveLine(r.Context(), userID, bookID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	h.respondOutcome(w, out)
}

// ClearCart handles DELETE /api/v1/cart.
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	out, err := h.service.ClearCart(r.Context(), userID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	h.respondOutcome(w, out)
}

// respondOutcome serializes a mutation outcome. Applied mutations answer
// 200 with the touched line (absolute quantity); rejections answer the
// token's mapped status so clients can branch without parsing messages.
func (h *CartHandler) respondOutcome(w http.ResponseWriter, out *service.MutationOutcome) {
	if out.Rejected() {
		respondRejection(w, out.Status)
		return
	}
	respondStatus(w, out.Status, out.Line)
}
