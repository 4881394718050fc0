// Package state owns the client-side view of the shopping cart: which
// lines are in it, which of those the user has selected for checkout, and
// the totals derived from that selection.
//
// One CartState exists per logged-in session. It is constructed by the
// composition root and handed to whoever needs it; there is no package
// level singleton. All mutating operations call the backend first and
// apply only backend-confirmed results, so local state is always the
// last-known-good server view.
package state

import (
	"context"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/mertkaradayi/bookcart/internal/client"
	"github.com/mertkaradayi/bookcart/internal/domain"
)

// CheckoutItem is one entry of the payload handed to order creation.
type CheckoutItem struct {
	BookID   string `json:"book_id"`
	Quantity int    `json:"quantity"`
}

// CartState maintains cart lines and the checkout selection consistently
// under interleaved operations.
//
// Consistency rules:
//   - the selection is always a subset of the line book IDs; removing a
//     line prunes its ID from the selection in the same step
//   - a failed backend call leaves lines and selection untouched
//   - overlapping mutations for the same book are serialized by a
//     per-book guard, so responses apply in request order
type CartState struct {
	backend client.CartBackend
	logger  *slog.Logger

	mu          sync.Mutex
	lines       []domain.CartLine
	selected    map[string]struct{}
	lastMessage string
	busy        int

	guards map[string]*bookGuard
}

type bookGuard struct {
	mu   sync.Mutex
	refs int
}

// New creates an empty cart state bound to a backend.
func New(backend client.CartBackend, logger *slog.Logger) *CartState {
	return &CartState{
		backend:  backend,
		logger:   logger,
		selected: make(map[string]struct{}),
		guards:   make(map[string]*bookGuard),
	}
}

// --- Backend-calling operations ---

// Load fetches the full cart and replaces the local lines wholesale. The
// selection survives a reload, minus IDs whose lines disappeared.
func (s *CartState) Load(ctx context.Context) bool {
	s.beginOp()
	defer s.endOp()

	lines, err := s.backend.FetchCart(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "cart load failed", slog.String("error", err.Error()))
		s.record(domain.StatusCartUnavailable)
		return false
	}

	s.mu.Lock()
	s.lines = lines
	s.pruneSelectionLocked()
	s.mu.Unlock()
	return true
}

// AddItem asks the backend to add quantity of a book. On success the
// returned line carries the absolute post-merge quantity and replaces any
// existing local line for that book; otherwise it is appended.
func (s *CartState) AddItem(ctx context.Context, bookID string, quantity int) bool {
	if bookID == "" || quantity < 1 {
		s.record(domain.StatusInvalidQuantity)
		return false
	}

	defer s.lockBook(bookID)()
	s.beginOp()
	defer s.endOp()

	res, err := s.backend.AddItem(ctx, bookID, quantity)
	if err != nil {
		s.logger.WarnContext(ctx, "add item failed",
			slog.String("book_id", bookID),
			slog.String("error", err.Error()),
		)
		s.record(domain.StatusCartUnavailable)
		return false
	}
	if !res.OK || res.Line == nil {
		s.record(res.Status)
		return false
	}

	s.mu.Lock()
	if i := s.lineIndexLocked(bookID); i >= 0 {
		s.lines[i] = *res.Line
	} else {
		s.lines = append(s.lines, *res.Line)
	}
	s.lastMessage = res.Status
	s.mu.Unlock()
	return true
}

// UpdateItemQuantity asks the backend to set the line for a book to
// exactly quantity and applies the backend-confirmed result.
func (s *CartState) UpdateItemQuantity(ctx context.Context, bookID string, quantity int) bool {
	if quantity < 1 {
		s.record(domain.StatusInvalidQuantity)
		return false
	}
	if !s.hasLine(bookID) {
		s.record(domain.StatusItemNotFound)
		return false
	}

	defer s.lockBook(bookID)()
	s.beginOp()
	defer s.endOp()

	res, err := s.backend.UpdateItem(ctx, bookID, quantity)
	if err != nil {
		s.logger.WarnContext(ctx, "update item failed",
			slog.String("book_id", bookID),
			slog.String("error", err.Error()),
		)
		s.record(domain.StatusCartUnavailable)
		return false
	}
	if !res.OK || res.Line == nil {
		s.record(res.Status)
		return false
	}

	s.mu.Lock()
	if i := s.lineIndexLocked(bookID); i >= 0 {
		s.lines[i] = *res.Line
	}
	s.lastMessage = res.Status
	s.mu.Unlock()
	return true
}

// RemoveItem deletes the line for a book and prunes its ID from the
// selection in the same step.
func (s *CartState) RemoveItem(ctx context.Context, bookID string) bool {
	if !s.hasLine(bookID) {
		s.record(domain.StatusItemNotFound)
		return false
	}

	defer s.lockBook(bookID)()
	s.beginOp()
	defer s.endOp()

	res, err := s.backend.RemoveItem(ctx, bookID)
	if err != nil {
		s.logger.WarnContext(ctx, "remove item failed",
			slog.String("book_id", bookID),
			slog.String("error", err.Error()),
		)
		s.record(domain.StatusCartUnavailable)
		return false
	}
	if !res.OK {
		s.record(res.Status)
		return false
	}

	s.mu.Lock()
	if i := s.lineIndexLocked(bookID); i >= 0 {
		s.lines = append(s.lines[:i], s.lines[i+1:]...)
	}
	delete(s.selected, bookID)
	s.lastMessage = res.Status
	s.mu.Unlock()
	return true
}

// Clear deletes all lines and the whole selection.
func (s *CartState) Clear(ctx context.Context) bool {
	s.beginOp()
	defer s.endOp()

	res, err := s.backend.ClearCart(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "clear cart failed", slog.String("error", err.Error()))
		s.record(domain.StatusCartUnavailable)
		return false
	}
	if !res.OK {
		s.record(res.Status)
		return false
	}

	s.mu.Lock()
	s.lines = nil
	s.selected = make(map[string]struct{})
	s.lastMessage = res.Status
	s.mu.Unlock()
	return true
}

// --- Local selection operations ---

// ToggleSelect flips a book's selection. Unknown book IDs are ignored.
func (s *CartState) ToggleSelect(bookID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lineIndexLocked(bookID) < 0 {
		return
	}
	if _, ok := s.selected[bookID]; ok {
		delete(s.selected, bookID)
	} else {
		s.selected[bookID] = struct{}{}
	}
}

// SelectAll marks every current line as selected.
func (s *CartState) SelectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selected = make(map[string]struct{}, len(s.lines))
	for _, l := range s.lines {
		s.selected[l.Book.ID] = struct{}{}
	}
}

// DeselectAll empties the selection.
func (s *CartState) DeselectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = make(map[string]struct{})
}

// IsSelected reports whether a book is in the current selection.
func (s *CartState) IsSelected(bookID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.selected[bookID]
	return ok
}

// --- Derived views ---

// Lines returns a copy of the current lines in stable order.
func (s *CartState) Lines() []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.CartLine, len(s.lines))
	copy(out, s.lines)
	return out
}

// SelectedLines returns the selected subset of lines, preserving line order.
func (s *CartState) SelectedLines() []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedLinesLocked()
}

// SelectedSubtotal sums selected lines before discount, rounded to 2
// decimals.
func (s *CartState) SelectedSubtotal() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.SumSubtotals(s.selectedLinesLocked())
}

// SelectedDiscountedTotal sums selected lines after discount. Per-line
// values stay unrounded; only the final sum is rounded to 2 decimals.
func (s *CartState) SelectedDiscountedTotal() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.SumDiscountedSubtotals(s.selectedLinesLocked())
}

// SelectedDiscountAmount is the difference between the selected subtotal
// and the selected discounted total.
func (s *CartState) SelectedDiscountAmount() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.selectedLinesLocked()
	return domain.SumSubtotals(lines).Sub(domain.SumDiscountedSubtotals(lines))
}

// CheckoutPayload returns the selected lines as order-creation input, in
// line order. Unselected lines never appear.
func (s *CartState) CheckoutPayload() []CheckoutItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.selectedLinesLocked()
	payload := make([]CheckoutItem, len(lines))
	for i, l := range lines {
		payload[i] = CheckoutItem{BookID: l.Book.ID, Quantity: l.Quantity}
	}
	return payload
}

// Busy reports whether any backend-calling operation is in flight.
func (s *CartState) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy > 0
}

// LastMessage returns the last recorded status token without clearing it.
func (s *CartState) LastMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastMessage
}

// ConsumeMessage returns the last status token and clears it, so a toast
// fires once per outcome rather than on every re-render.
func (s *CartState) ConsumeMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := s.lastMessage
	s.lastMessage = ""
	return msg
}

// Reset empties the state. Call on logout, before tearing down auth, so
// one user's cart view cannot leak into the next session.
func (s *CartState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = nil
	s.selected = make(map[string]struct{})
	s.lastMessage = ""
}

// --- Internals ---

func (s *CartState) selectedLinesLocked() []domain.CartLine {
	out := make([]domain.CartLine, 0, len(s.selected))
	for _, l := range s.lines {
		if _, ok := s.selected[l.Book.ID]; ok {
			out = append(out, l)
		}
	}
	return out
}

// pruneSelectionLocked drops selected IDs whose lines are gone, keeping
// the selection a subset of the current lines.
func (s *CartState) pruneSelectionLocked() {
	for id := range s.selected {
		if s.lineIndexLocked(id) < 0 {
			delete(s.selected, id)
		}
	}
}

func (s *CartState) lineIndexLocked(bookID string) int {
	for i := range s.lines {
		if s.lines[i].Book.ID == bookID {
			return i
		}
	}
	return -1
}

func (s *CartState) hasLine(bookID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lineIndexLocked(bookID) >= 0
}

func (s *CartState) record(token string) {
	s.mu.Lock()
	s.lastMessage = token
	s.mu.Unlock()
}

func (s *CartState) beginOp() {
	s.mu.Lock()
	s.busy++
	s.mu.Unlock()
}

func (s *CartState) endOp() {
	s.mu.Lock()
	s.busy--
	s.mu.Unlock()
}

// lockBook serializes mutations per book ID: the second of two overlapping
// calls for the same book waits for the first to settle, so the in-memory
// state reflects request order rather than response arrival order.
// Mutations for distinct books proceed concurrently.
func (s *CartState) lockBook(bookID string) (unlock func()) {
	s.mu.Lock()
	g := s.guards[bookID]
	if g == nil {
		g = &bookGuard{}
		s.guards[bookID] = g
	}
	g.refs++
	s.mu.Unlock()

	g.mu.Lock()
	return func() {
		g.mu.Unlock()

		s.mu.Lock()
		g.refs--
		if g.refs == 0 {
			delete(s.guards, bookID)
		}
		s.mu.Unlock()
	}
}
