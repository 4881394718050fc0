package domain

// Status tokens are opaque machine-readable strings describing the outcome
// of a cart operation. The backend emits them, the client passes them
// through unchanged, and the UI layer maps them to human-facing messages.
const (
	StatusItemAdded   = "item_added"
	StatusItemUpdated = "item_updated"
	StatusItemRemoved = "item_removed"
	StatusCartCleared = "cart_cleared"

	StatusNotEnoughStock   = "not_enough_stock"
	StatusItemNotFound     = "item_not_found"
	StatusBookNotFound     = "book_not_found"
	StatusInvalidQuantity  = "invalid_quantity"
	StatusCartLimitReached = "cart_limit_reached"

	// StatusCartUnavailable is recorded client-side when the backend
	// cannot be reached at all (network error, timeout, 5xx).
	StatusCartUnavailable = "cart_unavailable"
)
