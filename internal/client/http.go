package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/mertkaradayi/bookcart/internal/domain"
)

// HTTPDoer executes HTTP requests. Both httpclient.Client and
// httpclient.CircuitBreakerClient satisfy this.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// HTTPBackend implements CartBackend against the cart REST API.
type HTTPBackend struct {
	doer    HTTPDoer
	baseURL string
	userID  string
	logger  *slog.Logger
}

// NewHTTPBackend creates a backend client for one authenticated user.
// baseURL is the service root, e.g. "http://localhost:8003".
func NewHTTPBackend(doer HTTPDoer, baseURL, userID string, logger *slog.Logger) *HTTPBackend {
	return &HTTPBackend{
		doer:    doer,
		baseURL: baseURL,
		userID:  userID,
		logger:  logger,
	}
}

// envelope mirrors the cart API response shape.
type envelope struct {
	Data   json.RawMessage `json:"data,omitempty"`
	Status string          `json:"status,omitempty"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type addItemRequest struct {
	BookID   string `json:"book_id"`
	Quantity int    `json:"quantity"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

// FetchCart returns the full current cart contents.
func (b *HTTPBackend) FetchCart(ctx context.Context) ([]domain.CartLine, error) {
	env, code, err := b.doJSON(ctx, http.MethodGet, "/api/v1/cart", nil)
	if err != nil {
		return nil, err
	}
	if code != http.StatusOK {
		return nil, fmt.Errorf("fetch cart: unexpected status %d", code)
	}

	var cart domain.Cart
	if err := json.Unmarshal(env.Data, &cart); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	return cart.Lines, nil
}

// AddItem adds quantity of a book to the cart.
func (b *HTTPBackend) AddItem(ctx context.Context, bookID string, quantity int) (MutationResult, error) {
	return b.mutate(ctx, http.MethodPost, "/api/v1/cart/items",
		addItemRequest{BookID: bookID, Quantity: quantity})
}

// UpdateItem sets the line for a book to exactly quantity.
func (b *HTTPBackend) UpdateItem(ctx context.Context, bookID string, quantity int) (MutationResult, error) {
	return b.mutate(ctx, http.MethodPut, "/api/v1/cart/items/"+url.PathEscape(bookID),
		updateItemRequest{Quantity: quantity})
}

// RemoveItem deletes the line for a book.
func (b *HTTPBackend) RemoveItem(ctx context.Context, bookID string) (MutationResult, error) {
	return b.mutate(ctx, http.MethodDelete, "/api/v1/cart/items/"+url.PathEscape(bookID), nil)
}

// ClearCart deletes all lines.
func (b *HTTPBackend) ClearCart(ctx context.Context) (MutationResult, error) {
	return b.mutate(ctx, http.MethodDelete, "/api/v1/cart", nil)
}

// mutate runs a mutation request and translates the response. A 2xx answer
// is an applied mutation; a 4xx answer carrying a status token is a
// rejected-but-understood mutation; everything else is an error.
func (b *HTTPBackend) mutate(ctx context.Context, method, path string, body any) (MutationResult, error) {
	env, code, err := b.doJSON(ctx, method, path, body)
	if err != nil {
		return MutationResult{}, err
	}

	if code >= 200 && code < 300 {
		res := MutationResult{OK: true, Status: env.Status}
		if len(env.Data) > 0 && string(env.Data) != "null" {
			var line domain.CartLine
			if err := json.Unmarshal(env.Data, &line); err != nil {
				return MutationResult{}, fmt.Errorf("decode cart line: %w", err)
			}
			res.Line = &line
		}
		return res, nil
	}

	if code >= 400 && code < 500 && env.Status != "" {
		b.logger.DebugContext(ctx, "cart mutation rejected",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("status_token", env.Status),
		)
		return MutationResult{OK: false, Status: env.Status}, nil
	}

	if env.Error != nil {
		return MutationResult{}, fmt.Errorf("cart backend: %s: %s (status %d)",
			env.Error.Code, env.Error.Message, code)
	}
	return MutationResult{}, fmt.Errorf("cart backend: unexpected status %d", code)
}

func (b *HTTPBackend) doJSON(ctx context.Context, method, path string, body any) (*envelope, int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-User-ID", b.userID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.doer.Do(ctx, req)
	if err != nil {
		return nil, 0, fmt.Errorf("cart request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response body: %w", err)
	}

	var env envelope
	if len(data) > 0 {
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, resp.StatusCode, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
		}
	}
	return &env, resp.StatusCode, nil
}
