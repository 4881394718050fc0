package client

import (
	"log/slog"

	"github.com/mertkaradayi/bookcart/pkg/httpclient"
)

// NewDefaultHTTPBackend wires the standard client stack: a retrying HTTP
// client behind a circuit breaker, talking the cart API for one user.
func NewDefaultHTTPBackend(baseURL, userID string, logger *slog.Logger) *HTTPBackend {
	base := httpclient.New(httpclient.DefaultConfig())
	breaker := httpclient.NewCircuitBreakerClient(
		base,
		httpclient.DefaultCircuitBreakerConfig("cart-backend"),
		logger,
	)
	return NewHTTPBackend(breaker, baseURL, userID, logger)
}
