package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mertkaradayi/bookcart/internal/domain"
	pkgkafka "github.com/mertkaradayi/bookcart/pkg/kafka"
)

// Kafka topics for cart domain events.
const (
	TopicCartUpdated = "bookstore.cart.updated"
	TopicCartCleared = "bookstore.cart.cleared"
)

const (
	aggregateTypeCart = "cart"
	sourceCartService = "cart-service"
)

// CartUpdatedData is the payload of a cart.updated event.
type CartUpdatedData struct {
	UserID          string         `json:"user_id"`
	Lines           []CartLineData `json:"lines"`
	TotalQuantity   int            `json:"total_quantity"`
	Subtotal        string         `json:"subtotal"`
	DiscountedTotal string         `json:"discounted_total"`
}

// CartLineData is one line within cart events.
type CartLineData struct {
	BookID          string `json:"book_id"`
	Title           string `json:"title"`
	Price           string `json:"price"`
	DiscountPercent int64  `json:"discount_percent"`
	Quantity        int    `json:"quantity"`
}

// CartClearedData is the payload of a cart.cleared event.
type CartClearedData struct {
	UserID string `json:"user_id"`
}

// Producer publishes cart domain events.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates an event producer for the cart service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{kafka: kafka, logger: logger}
}

// PublishCartUpdated publishes a cart.updated event with current totals.
func (p *Producer) PublishCartUpdated(ctx context.Context, cart *domain.Cart) error {
	lines := make([]CartLineData, len(cart.Lines))
	for i, l := range cart.Lines {
		lines[i] = CartLineData{
			BookID:          l.Book.ID,
			Title:           l.Book.Title,
			Price:           l.Book.Price.StringFixed(2),
			DiscountPercent: l.Book.DiscountPercent,
			Quantity:        l.Quantity,
		}
	}

	data := CartUpdatedData{
		UserID:          cart.UserID,
		Lines:           lines,
		TotalQuantity:   cart.TotalQuantity(),
		Subtotal:        cart.Subtotal().StringFixed(2),
		DiscountedTotal: cart.DiscountedTotal().StringFixed(2),
	}

	ev, err := pkgkafka.NewEvent(TopicCartUpdated, cart.UserID, aggregateTypeCart, sourceCartService, data)
	if err != nil {
		return fmt.Errorf("create cart.updated event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicCartUpdated, ev); err != nil {
		return fmt.Errorf("publish cart.updated event: %w", err)
	}

	p.logger.DebugContext(ctx, "published cart.updated event",
		slog.String("user_id", cart.UserID),
		slog.Int("total_quantity", cart.TotalQuantity()),
	)
	return nil
}

// PublishCartCleared publishes a cart.cleared event.
func (p *Producer) PublishCartCleared(ctx context.Context, userID string) error {
	ev, err := pkgkafka.NewEvent(TopicCartCleared, userID, aggregateTypeCart, sourceCartService,
		CartClearedData{UserID: userID})
	if err != nil {
		return fmt.Errorf("create cart.cleared event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicCartCleared, ev); err != nil {
		return fmt.Errorf("publish cart.cleared event: %w", err)
	}

	p.logger.DebugContext(ctx, "published cart.cleared event",
		slog.String("user_id", userID),
	)
	return nil
}
