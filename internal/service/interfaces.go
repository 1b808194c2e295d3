package service

//go:generate mockgen -destination=gomock/mock_product_service.go -package=gomock github.com/sandeepkv93/product-catalog/internal/service ProductService
//go:generate mockgen -destination=gomock/mock_image_storage.go -package=gomock github.com/sandeepkv93/product-catalog/internal/service ImageStorage
//go:generate mockgen -destination=gomock/mock_idempotency_store.go -package=gomock github.com/sandeepkv93/product-catalog/internal/service IdempotencyStore

import (
	"context"
	"time"

	"github.com/sandeepkv93/product-catalog/internal/domain"
)

type ProductService interface {
	Create(ctx context.Context, input CreateProductInput) (*domain.Product, error)
	List(ctx context.Context) ([]domain.Product, error)
	GetByID(ctx context.Context, id uint) (*domain.Product, error)
	Update(ctx context.Context, id uint, input UpdateProductInput) (*domain.Product, error)
	DeleteByID(ctx context.Context, id uint) error
	SeedInitialProducts(ctx context.Context) (SeedReport, error)
	ProductImageURL(ctx context.Context, id uint) (string, error)
}

// ImageStorage persists uploaded product images under caller-chosen object keys.
type ImageStorage interface {
	Upload(ctx context.Context, objectKey string, data []byte, contentType string) error
	Delete(ctx context.Context, objectKey string) error
	PresignedURL(ctx context.Context, objectKey string) (string, error)
	Check(ctx context.Context) error
}

type IdempotencyState string

const (
	IdempotencyStateNew        IdempotencyState = "new"
	IdempotencyStateReplay     IdempotencyState = "replay"
	IdempotencyStateConflict   IdempotencyState = "conflict"
	IdempotencyStateInProgress IdempotencyState = "in_progress"
)

type CachedHTTPResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

type IdempotencyBeginResult struct {
	State  IdempotencyState
	Cached *CachedHTTPResponse
}

// IdempotencyStore records the first response for a (scope, key) pair so a
// retried request with the same fingerprint can be replayed.
type IdempotencyStore interface {
	Begin(ctx context.Context, scope, key, fingerprint string, ttl time.Duration) (IdempotencyBeginResult, error)
	Complete(ctx context.Context, scope, key, fingerprint string, response CachedHTTPResponse, ttl time.Duration) error
}
