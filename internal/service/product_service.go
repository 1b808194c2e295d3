package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sandeepkv93/product-catalog/internal/domain"
	"github.com/sandeepkv93/product-catalog/internal/observability"
	"github.com/sandeepkv93/product-catalog/internal/repository"
)

var (
	ErrValidation           = errors.New("validation failed")
	ErrProductNameRequired  = fmt.Errorf("%w: name is required", ErrValidation)
	ErrProductPriceRequired = fmt.Errorf("%w: price is required", ErrValidation)
	ErrProductImageNotFound = errors.New("product has no image")
)

type CreateProductInput struct {
	Name        string
	Description string
	Price       string
	// ImageRef is stored verbatim. ImageUpload takes precedence when set.
	ImageRef    string
	ImageUpload *ImageUpload
}

// UpdateProductInput carries the fields to replace; nil fields are left untouched.
// An empty Image clears the reference.
type UpdateProductInput struct {
	Name        *string
	Description *string
	Price       *string
	Image       *string
	ImageUpload *ImageUpload
}

func (in UpdateProductInput) empty() bool {
	return in.Name == nil && in.Description == nil && in.Price == nil && in.Image == nil && in.ImageUpload == nil
}

type ProductImageOptions struct {
	MaxBytes      int64
	PublicBaseURL string
}

type ProductServiceImpl struct {
	repo          repository.ProductRepository
	images        ImageStorage
	maxImageBytes int64
	publicBaseURL string
	logger        *slog.Logger
	seedGroup     singleflight.Group
}

// NewProductService builds the catalog service. images may be nil, in which
// case uploads are rejected with ErrImageStorageDisabled.
func NewProductService(repo repository.ProductRepository, images ImageStorage, opts ProductImageOptions, logger *slog.Logger) *ProductServiceImpl {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProductServiceImpl{
		repo:          repo,
		images:        images,
		maxImageBytes: opts.MaxBytes,
		publicBaseURL: strings.TrimRight(opts.PublicBaseURL, "/"),
		logger:        logger,
	}
}

func (s *ProductServiceImpl) Create(ctx context.Context, input CreateProductInput) (*domain.Product, error) {
	start := time.Now()
	outcome := "success"
	defer func() { observability.RecordProductOperation(ctx, "create", outcome, time.Since(start)) }()

	name := strings.TrimSpace(input.Name)
	price := strings.TrimSpace(input.Price)
	if name == "" {
		outcome = "bad_request"
		return nil, ErrProductNameRequired
	}
	if price == "" {
		outcome = "bad_request"
		return nil, ErrProductPriceRequired
	}

	description := strings.TrimSpace(input.Description)
	product := &domain.Product{Name: name, Description: &description, Price: price}
	ref := strings.TrimSpace(input.ImageRef)
	if err := validateImageRef(ref); err != nil {
		outcome = "bad_request"
		return nil, err
	}
	if ref != "" {
		product.Image = &ref
	}
	var uploaded string
	if input.ImageUpload != nil {
		stored, err := s.storeImage(ctx, input.ImageUpload)
		if err != nil {
			outcome = imageErrorOutcome(err)
			return nil, err
		}
		uploaded = stored.key
		product.Image = &uploaded
	}

	if err := s.repo.Create(ctx, product); err != nil {
		outcome = "error"
		s.removeImage(ctx, uploaded)
		return nil, err
	}
	return product, nil
}

func (s *ProductServiceImpl) List(ctx context.Context) ([]domain.Product, error) {
	start := time.Now()
	outcome := "success"
	defer func() { observability.RecordProductOperation(ctx, "list", outcome, time.Since(start)) }()

	products, err := s.repo.ListAll(ctx)
	if err != nil {
		outcome = "error"
		return nil, err
	}
	return products, nil
}

func (s *ProductServiceImpl) GetByID(ctx context.Context, id uint) (*domain.Product, error) {
	start := time.Now()
	outcome := "success"
	defer func() { observability.RecordProductOperation(ctx, "get", outcome, time.Since(start)) }()

	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		outcome = lookupErrorOutcome(err)
		return nil, err
	}
	return product, nil
}

// Update checks that the product exists before writing. The check and the
// write are separate statements, so a concurrent delete surfaces as
// ErrProductNotFound from the write; no row is ever created here.
func (s *ProductServiceImpl) Update(ctx context.Context, id uint, input UpdateProductInput) (*domain.Product, error) {
	start := time.Now()
	outcome := "success"
	defer func() { observability.RecordProductOperation(ctx, "update", outcome, time.Since(start)) }()

	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			outcome = "bad_request"
			return nil, ErrProductNameRequired
		}
		updates["name"] = name
	}
	if input.Price != nil {
		price := strings.TrimSpace(*input.Price)
		if price == "" {
			outcome = "bad_request"
			return nil, ErrProductPriceRequired
		}
		updates["price"] = price
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}
	if input.Image != nil {
		if ref := strings.TrimSpace(*input.Image); ref != "" {
			if err := validateImageRef(ref); err != nil {
				outcome = "bad_request"
				return nil, err
			}
			updates["image"] = ref
		} else {
			updates["image"] = nil
		}
	}

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		outcome = lookupErrorOutcome(err)
		return nil, err
	}
	if input.empty() {
		return current, nil
	}

	var uploaded string
	if input.ImageUpload != nil {
		stored, err := s.storeImage(ctx, input.ImageUpload)
		if err != nil {
			outcome = imageErrorOutcome(err)
			return nil, err
		}
		uploaded = stored.key
		updates["image"] = stored.key
	}

	if err := s.repo.Update(ctx, id, updates); err != nil {
		outcome = lookupErrorOutcome(err)
		s.removeImage(ctx, uploaded)
		return nil, err
	}
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		outcome = lookupErrorOutcome(err)
		return nil, err
	}
	if previous := current.ImageRef(); previous != "" && previous != product.ImageRef() {
		s.removeImage(ctx, previous)
	}
	return product, nil
}

// DeleteByID removes the product and, best effort, the image object it owns.
func (s *ProductServiceImpl) DeleteByID(ctx context.Context, id uint) error {
	start := time.Now()
	outcome := "success"
	defer func() { observability.RecordProductOperation(ctx, "delete", outcome, time.Since(start)) }()

	var imageRef string
	if s.images != nil {
		product, err := s.repo.FindByID(ctx, id)
		if err != nil {
			outcome = lookupErrorOutcome(err)
			return err
		}
		imageRef = product.ImageRef()
	}
	if err := s.repo.DeleteByID(ctx, id); err != nil {
		outcome = lookupErrorOutcome(err)
		return err
	}
	s.removeImage(ctx, imageRef)
	return nil
}

// ProductImageURL resolves the product image to something a client can fetch:
// absolute URLs as-is, stored objects as presigned URLs, and plain file names
// relative to the public base URL.
func (s *ProductServiceImpl) ProductImageURL(ctx context.Context, id uint) (string, error) {
	start := time.Now()
	outcome := "success"
	defer func() { observability.RecordProductOperation(ctx, "image_url", outcome, time.Since(start)) }()

	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		outcome = lookupErrorOutcome(err)
		return "", err
	}
	ref := product.ImageRef()
	switch {
	case ref == "":
	case isAbsoluteURL(ref):
		return ref, nil
	case isStoredImageKey(ref) && s.images != nil:
		url, err := s.images.PresignedURL(ctx, ref)
		if err != nil {
			outcome = "error"
			return "", err
		}
		return url, nil
	case s.publicBaseURL != "" && !isStoredImageKey(ref):
		return s.publicBaseURL + "/" + strings.TrimLeft(ref, "/"), nil
	}
	outcome = "not_found"
	return "", ErrProductImageNotFound
}

func lookupErrorOutcome(err error) string {
	if errors.Is(err, repository.ErrProductNotFound) {
		return "not_found"
	}
	return "error"
}

func imageErrorOutcome(err error) string {
	if errors.Is(err, ErrInvalidImage) {
		return "bad_request"
	}
	return "error"
}
