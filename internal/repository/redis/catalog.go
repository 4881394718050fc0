package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mertkaradayi/bookcart/internal/domain"
	apperrors "github.com/mertkaradayi/bookcart/pkg/errors"
)

const bookKeyPrefix = "book:"

// CatalogRepository stores book snapshots in Redis. Entries have no TTL;
// the catalog sync job owns their lifecycle.
type CatalogRepository struct {
	client *redis.Client
}

// NewCatalogRepository creates a Redis-backed catalog repository.
func NewCatalogRepository(client *redis.Client) *CatalogRepository {
	return &CatalogRepository{client: client}
}

// GetBook retrieves a book snapshot by ID.
func (r *CatalogRepository) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	data, err := r.client.Get(ctx, bookKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("book", id)
		}
		return nil, fmt.Errorf("redis get book: %w", err)
	}

	var book domain.Book
	if err := json.Unmarshal(data, &book); err != nil {
		return nil, fmt.Errorf("unmarshal book: %w", err)
	}
	return &book, nil
}

// PutBook stores a book snapshot.
func (r *CatalogRepository) PutBook(ctx context.Context, book *domain.Book) error {
	data, err := json.Marshal(book)
	if err != nil {
		return fmt.Errorf("marshal book: %w", err)
	}

	if err := r.client.Set(ctx, bookKeyPrefix+book.ID, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set book: %w", err)
	}
	return nil
}
