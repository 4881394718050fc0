package state

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mertkaradayi/bookcart/internal/client"
	"github.com/mertkaradayi/bookcart/internal/domain"
)

// --- Mock backend ---

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) FetchCart(ctx context.Context) ([]domain.CartLine, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CartLine), args.Error(1)
}

func (m *mockBackend) AddItem(ctx context.Context, bookID string, quantity int) (client.MutationResult, error) {
	args := m.Called(ctx, bookID, quantity)
	return args.Get(0).(client.MutationResult), args.Error(1)
}

func (m *mockBackend) UpdateItem(ctx context.Context, bookID string, quantity int) (client.MutationResult, error) {
	args := m.Called(ctx, bookID, quantity)
	return args.Get(0).(client.MutationResult), args.Error(1)
}

func (m *mockBackend) RemoveItem(ctx context.Context, bookID string) (client.MutationResult, error) {
	args := m.Called(ctx, bookID)
	return args.Get(0).(client.MutationResult), args.Error(1)
}

func (m *mockBackend) ClearCart(ctx context.Context) (client.MutationResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(client.MutationResult), args.Error(1)
}

// --- Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func bookA() domain.Book {
	return domain.Book{ID: "book-a", Title: "A", Price: decimal.NewFromFloat(10.00), StockQuantity: 10}
}

func bookB() domain.Book {
	return domain.Book{ID: "book-b", Title: "B", Price: decimal.NewFromFloat(20.00), DiscountPercent: 50, StockQuantity: 5}
}

func lineA(qty int) domain.CartLine { return domain.CartLine{Book: bookA(), Quantity: qty} }
func lineB(qty int) domain.CartLine { return domain.CartLine{Book: bookB(), Quantity: qty} }

func added(line domain.CartLine) client.MutationResult {
	return client.MutationResult{OK: true, Line: &line, Status: domain.StatusItemAdded}
}

func updated(line domain.CartLine) client.MutationResult {
	return client.MutationResult{OK: true, Line: &line, Status: domain.StatusItemUpdated}
}

func rejected(token string) client.MutationResult {
	return client.MutationResult{OK: false, Status: token}
}

// loadedState builds a CartState preloaded with lines A(qty 2) and B(qty 1).
func loadedState(t *testing.T, backend *mockBackend) *CartState {
	t.Helper()
	s := New(backend, newTestLogger())
	backend.On("FetchCart", mock.Anything).Return([]domain.CartLine{lineA(2), lineB(1)}, nil).Once()
	require.True(t, s.Load(context.Background()))
	return s
}

func selectionIsSubsetOfLines(t *testing.T, s *CartState) {
	t.Helper()
	ids := make(map[string]struct{})
	for _, l := range s.Lines() {
		ids[l.Book.ID] = struct{}{}
	}
	for _, sel := range s.SelectedLines() {
		_, ok := ids[sel.Book.ID]
		assert.True(t, ok, "selected id %s has no line", sel.Book.ID)
	}
}

// --- Load ---

func TestLoad_ReplacesLines(t *testing.T) {
	backend := new(mockBackend)
	s := loadedState(t, backend)

	lines := s.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "book-a", lines[0].Book.ID)
	assert.Equal(t, "book-b", lines[1].Book.ID)
	backend.AssertExpectations(t)
}

func TestLoad_Failure_LeavesStateUntouched(t *testing.T) {
	backend := new(mockBackend)
	s := loadedState(t, backend)
	s.SelectAll()

	backend.On("FetchCart", mock.Anything).Return(nil, errors.New("connection refused")).Once()

	ok := s.Load(context.Background())

	assert.False(t, ok)
	assert.Len(t, s.Lines(), 2)
	assert.Len(t, s.SelectedLines(), 2)
	assert.Equal(t, domain.StatusCartUnavailable, s.LastMessage())
}

func TestLoad_PrunesSelectionForVanishedLines(t *testing.T) {
	backend := new(mockBackend)
	s := loadedState(t, backend)
	s.SelectAll()

	// Server-side the cart lost book B (e.g. expired hold).
	backend.On("FetchCart", mock.Anything).Return([]domain.CartLine{lineA(2)}, nil).Once()
	require.True(t, s.Load(context.Background()))

	assert.True(t, s.IsSelected("book-a"))
	assert.False(t, s.IsSelected("book-b"))
	selectionIsSubsetOfLines(t, s)
}

// --- AddItem ---

func TestAddItem_NewLineAppended(t *testing.T) {
	backend := new(mockBackend)
	s := New(backend, newTestLogger())

	backend.On("AddItem", mock.Anything, "book-a", 2).Return(added(lineA(2)), nil).Once()

	ok := s.AddItem(context.Background(), "book-a", 2)

	assert.True(t, ok)
	require.Len(t, s.Lines(), 1)
	assert.Equal(t, 2, s.Lines()[0].Quantity)
	assert.Equal(t, domain.StatusItemAdded, s.LastMessage())
}

func TestAddItem_ExistingLineReplacedWithAbsoluteQuantity(t *testing.T) {
	backend := new(mockBackend)
	s := loadedState(t, backend)

	// Backend merges 2 existing + 3 added and answers with the absolute
	// resulting quantity.
	backend.On("AddItem", mock.Anything, "book-a", 3).Return(added(lineA(5)), nil).Once()

	ok := s.AddItem(context.Background(), "book-a", 3)

	assert.True(t, ok)
	lines := s.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, 5, lines[0].Quantity)
	// The merge branch must record the token too.
	assert.Equal(t, domain.StatusItemAdded, s.LastMessage())
}

func TestAddItem_NeverDuplicatesLines(t *testing.T) {
	backend := new(mockBackend)
	s := New(backend, newTestLogger())

	backend.On("AddItem", mock.Anything, "book-a", 1).Return(added(lineA(1)), nil).Once()
	backend.On("AddItem", mock.Anything, "book-a", 1).Return(added(lineA(2)), nil).Once()

	require.True(t, s.AddItem(context.Background(), "book-a", 1))
	require.True(t, s.AddItem(context.Background(), "book-a", 1))

	seen := make(map[string]int)
	for _, l := range s.Lines() {
		seen[l.Book.ID]++
	}
	assert.Equal(t, map[string]int{"book-a": 1}, seen)
}

func TestAddItem_RejectedByStock(t *testing.T) {
	backend := new(mockBackend)
	s := loadedState(t, backend)

	backend.On("AddItem", mock.Anything, "book-b", 50).
		Return(rejected(domain.StatusNotEnoughStock), nil).Once()

	ok := s.AddItem(context.Background(), "book-b", 50)

	assert.False(t, ok)
	assert.Equal(t, domain.StatusNotEnoughStock, s.LastMessage())
	require.Len(t, s.Lines(), 2)
	assert.Equal(t, 1, s.Lines()[1].Quantity)
}

func TestAddItem_InvalidQuantity_NoBackendCall(t *testing.T) {
	backend := new(mockBackend)
	s := New(backend, newTestLogger())

	assert.False(t, s.AddItem(context.Background(), "book-a", 0))
	assert.Equal(t, domain.StatusInvalidQuantity, s.LastMessage())
	backend.AssertNotCalled(t, "AddItem", mock.Anything, mock.Anything, mock.Anything)
}

func TestAddItem_TransportFailure(t *testing.T) {
	backend := new(mockBackend)
	s := loadedState(t, backend)

	backend.On("AddItem", mock.Anything, "book-a", 1).
		Return(client.MutationResult{}, errors.New("timeout")).Once()

	ok := s.AddItem(context.Background(), "book-a", 1)

	assert.False(t, ok)
	assert.Equal(t, domain.StatusCartUnavailable, s.LastMessage())
	assert.Equal(t, 2, s.Lines()[0].Quantity)
}

// --- UpdateItemQuantity ---

func TestUpdateItemQuantity_AppliesConfirmedQuantity(t *testing.T) {
	backend := new(mockBackend)
	s := loadedState(t, backend)

	backend.On("UpdateItem", mock.Anything, "book-a", 7).Return(updated(lineA(7)), nil).Once()

	ok := s.UpdateItemQuantity(context.Background(), "book-a", 7)

	assert.True(t, ok)
	assert.Equal(t, 7, s.Lines()[0].Quantity)
	assert.Equal(t, domain.StatusItemUpdated, s.LastMessage())
}

func TestUpdateItemQuantity_ZeroRejectedLocally(t *testing.T) {
	backend := new(mockBackend)
	s := loadedState(t, backend)

	ok := s.UpdateItemQuantity(context.Background(), "book-a", 0)

	assert.False(t, ok)
	assert.Equal(t, domain.StatusInvalidQuantity, s.LastMessage())
	assert.Equal(t, 2, s.Lines()[0].Quantity)
	backend.AssertNotCalled(t, "UpdateItem", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateItemQuantity_UnknownBookIsRecordedNoOp(t *testing.T) {
	backend := new(mockBackend)
	s := loadedState(t, backend)

	ok := s.UpdateItemQuantity(context.Background(), "book-zz", 1)

	assert.False(t, ok)
	assert.Equal(t, domain.StatusItemNotFound, s.LastMessage())
	backend.AssertNotCalled(t, "UpdateItem", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateItemQuantity_FailureLeavesStateUntouched(t *testing.T) {
	backend := new(mockBackend)
	s := loadedState(t, backend)
	s.SelectAll()
	before := s.Lines()

	backend.On("UpdateItem", mock.Anything, "book-a", 9).
		Return(client.MutationResult{}, errors.New("boom")).Once()

	ok := s.UpdateItemQuantity(context.Background(), "book-a", 9)

	assert.False(t, ok)
	assert.Equal(t, before, s.Lines())
	assert.Len(t, s.SelectedLines(), 2)
}

// --- RemoveItem / Clear ---

func TestRemoveItem_PrunesSelection(t *testing.T) {
	backend := new(mockBackend)
	s := loadedState(t, backend)
	s.SelectAll()

	backend.On("RemoveItem", mock.Anything, "book-a").
		Return(client.MutationResult{OK: true, Status: domain.StatusItemRemoved}, nil).Once()

	ok := s.RemoveItem(context.Background(), "book-a")

	assert.True(t, ok)
	require.Len(t, s.Lines(), 1)
	assert.Equal(t, "book-b", s.Lines()[0].Book.ID)
	assert.False(t, s.IsSelected("book-a"))
	assert.True(t, s.IsSelected("book-b"))
	selectionIsSubsetOfLines(t, s)
}

func TestRemoveItem_UnknownBookIsRecordedNoOp(t *testing.T) {
	backend := new(mockBackend)
	s := loadedState(t, backend)

	ok := s.RemoveItem(context.Background(), "book-zz")

	assert.False(t, ok)
	assert.Equal(t, domain.StatusItemNotFound, s.LastMessage())
	backend.AssertNotCalled(t, "RemoveItem", mock.Anything, mock.Anything)
}

func TestRemoveItem_FailureLeavesStateUntouched(t *testing.T) {
	backend := new(mockBackend)
	s := loadedState(t, backend)
	s.SelectAll()

	backend.On("RemoveItem", mock.Anything, "book-a").
		Return(client.MutationResult{}, errors.New("boom")).Once()

	ok := s.RemoveItem(context.Background(), "book-a")

	assert.False(t, ok)
	assert.Len(t, s.Lines(), 2)
	assert.Len(t, s.SelectedLines(), 2)
}

func TestClear_EmptiesLinesAndSelection(t *testing.T) {
	backend := new(mockBackend)
	s := loadedState(t, backend)
	s.SelectAll()

	backend.On("ClearCart", mock.Anything).
		Return(client.MutationResult{OK: true, Status: domain.StatusCartCleared}, nil).Once()

	ok := s.Clear(context.Background())

	assert.True(t, ok)
	assert.Empty(t, s.Lines())
	assert.Empty(t, s.SelectedLines())
	assert.Equal(t, domain.StatusCartCleared, s.LastMessage())
}

func TestClear_FailureLeavesStateUntouched(t *testing.T) {
	backend := new(mockBackend)
	s := loadedState(t, backend)
	s.SelectAll()

	backend.On("ClearCart", mock.Anything).
		Return(client.MutationResult{}, errors.New("boom")).Once()

	ok := s.Clear(context.Background())

	assert.False(t, ok)
	assert.Len(t, s.Lines(), 2)
	assert.Len(t, s.SelectedLines(), 2)
}

// --- Selection and derived totals ---

func TestToggleSelect_UnknownBookIsNoOp(t *testing.T) {
	backend := new(mockBackend)
	s := loadedState(t, backend)

	s.ToggleSelect("book-zz")

	assert.Empty(t, s.SelectedLines())
}

func TestToggleSelect_FlipsMembership(t *testing.T) {
	backend := new(mockBackend)
	s := loadedState(t, backend)

	s.ToggleSelect("book-a")
	assert.True(t, s.IsSelected("book-a"))

	s.ToggleSelect("book-a")
	assert.False(t, s.IsSelected("book-a"))
}

func TestSelectedTotals_MixedDiscounts(t *testing.T) {
	backend := new(mockBackend)
	s := loadedState(t, backend)
	s.SelectAll()

	assert.True(t, s.SelectedSubtotal().Equal(decimal.NewFromFloat(40.00)),
		"subtotal = %s", s.SelectedSubtotal())
	assert.True(t, s.SelectedDiscountedTotal().Equal(decimal.NewFromFloat(30.00)),
		"discounted = %s", s.SelectedDiscountedTotal())
	assert.True(t, s.SelectedDiscountAmount().Equal(decimal.NewFromFloat(10.00)),
		"discount = %s", s.SelectedDiscountAmount())
}

func TestSelectedTotals_Identity(t *testing.T) {
	backend := new(mockBackend)
	s := loadedState(t, backend)
	s.SelectAll()

	sum := s.SelectedDiscountedTotal().Add(s.SelectedDiscountAmount())
	assert.True(t, sum.Equal(s.SelectedSubtotal()))
}

func TestCheckoutPayload_OnlySelectedLinesInOrder(t *testing.T) {
	backend := new(mockBackend)
	s := loadedState(t, backend)

	s.ToggleSelect("book-a")
	assert.Equal(t, []CheckoutItem{{BookID: "book-a", Quantity: 2}}, s.CheckoutPayload())

	s.ToggleSelect("book-b")
	assert.Equal(t, []CheckoutItem{
		{BookID: "book-a", Quantity: 2},
		{BookID: "book-b", Quantity: 1},
	}, s.CheckoutPayload())

	assert.Len(t, s.CheckoutPayload(), len(s.SelectedLines()))
}

func TestSelectAllDeselectAll(t *testing.T) {
	backend := new(mockBackend)
	s := loadedState(t, backend)

	s.SelectAll()
	assert.Len(t, s.SelectedLines(), 2)

	s.DeselectAll()
	assert.Empty(t, s.SelectedLines())
}

// --- Busy flag and message channel ---

func TestBusy_BracketsMutationsIncludingFailures(t *testing.T) {
	backend := new(mockBackend)
	s := New(backend, newTestLogger())

	var busyDuringCall bool
	backend.On("FetchCart", mock.Anything).
		Run(func(args mock.Arguments) { busyDuringCall = s.Busy() }).
		Return(nil, errors.New("down")).Once()

	assert.False(t, s.Busy())
	s.Load(context.Background())
	assert.True(t, busyDuringCall)
	assert.False(t, s.Busy())
}

func TestConsumeMessage_IsOneShot(t *testing.T) {
	backend := new(mockBackend)
	s := New(backend, newTestLogger())

	backend.On("AddItem", mock.Anything, "book-a", 1).Return(added(lineA(1)), nil).Once()
	require.True(t, s.AddItem(context.Background(), "book-a", 1))

	assert.Equal(t, domain.StatusItemAdded, s.ConsumeMessage())
	assert.Empty(t, s.ConsumeMessage())
}

func TestReset_EmptiesEverything(t *testing.T) {
	backend := new(mockBackend)
	s := loadedState(t, backend)
	s.SelectAll()

	s.Reset()

	assert.Empty(t, s.Lines())
	assert.Empty(t, s.SelectedLines())
	assert.Empty(t, s.LastMessage())
}

// --- Invariant under operation sequences ---

func TestSelectionSubsetInvariant_UnderOperationSequence(t *testing.T) {
	backend := new(mockBackend)
	s := New(backend, newTestLogger())
	ctx := context.Background()

	backend.On("FetchCart", mock.Anything).Return([]domain.CartLine{lineA(2), lineB(1)}, nil).Once()
	backend.On("AddItem", mock.Anything, "book-a", 1).Return(added(lineA(3)), nil).Once()
	backend.On("RemoveItem", mock.Anything, "book-b").
		Return(client.MutationResult{OK: true, Status: domain.StatusItemRemoved}, nil).Once()
	backend.On("ClearCart", mock.Anything).
		Return(client.MutationResult{OK: true, Status: domain.StatusCartCleared}, nil).Once()

	steps := []func(){
		func() { s.Load(ctx) },
		func() { s.SelectAll() },
		func() { s.AddItem(ctx, "book-a", 1) },
		func() { s.ToggleSelect("book-b") },
		func() { s.ToggleSelect("book-b") },
		func() { s.RemoveItem(ctx, "book-b") },
		func() { s.Clear(ctx) },
	}

	for _, step := range steps {
		step()
		selectionIsSubsetOfLines(t, s)
	}

	backend.AssertExpectations(t)
}

// Overlapping mutations for the same book settle in request order because
// of the per-book guard; mutations for distinct books are not serialized.
func TestPerBookSerialization(t *testing.T) {
	backend := new(mockBackend)
	s := New(backend, newTestLogger())
	ctx := context.Background()

	firstInFlight := make(chan struct{})
	releaseFirst := make(chan struct{})

	backend.On("UpdateItem", mock.Anything, "book-a", 5).
		Run(func(mock.Arguments) {
			close(firstInFlight)
			<-releaseFirst
		}).
		Return(updated(lineA(5)), nil).Once()
	backend.On("UpdateItem", mock.Anything, "book-a", 6).
		Return(updated(lineA(6)), nil).Once()

	backend.On("FetchCart", mock.Anything).Return([]domain.CartLine{lineA(2)}, nil).Once()
	require.True(t, s.Load(ctx))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.UpdateItemQuantity(ctx, "book-a", 5)
	}()

	<-firstInFlight

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.UpdateItemQuantity(ctx, "book-a", 6)
	}()

	// The second call must not reach the backend while the first holds the
	// guard; releasing the first lets both settle in order.
	close(releaseFirst)
	wg.Wait()

	assert.Equal(t, 6, s.Lines()[0].Quantity)
	backend.AssertExpectations(t)
}
