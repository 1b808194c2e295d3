package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sandeepkv93/product-catalog/internal/observability"
)

const productImagePrefix = "products/"

var (
	ErrInvalidImage         = errors.New("invalid image")
	ErrImageTooLarge        = fmt.Errorf("%w: image exceeds size limit", ErrInvalidImage)
	ErrInvalidImageType     = fmt.Errorf("%w: only JPEG, PNG, GIF and WebP images are allowed", ErrInvalidImage)
	ErrInvalidImageData     = fmt.Errorf("%w: malformed image payload", ErrInvalidImage)
	ErrImageStorageDisabled = fmt.Errorf("%w: image uploads are not enabled", ErrInvalidImage)
	ErrReservedImageRef     = fmt.Errorf("%w: image references under %q are reserved for uploads", ErrInvalidImage, productImagePrefix)

	allowedImageTypes = map[string]struct{}{
		"image/jpeg": {},
		"image/png":  {},
		"image/gif":  {},
		"image/webp": {},
	}
)

// ImageUpload is a raw image file received from a client.
type ImageUpload struct {
	Filename string
	Data     []byte
}

type storedImage struct {
	key         string
	contentType string
}

// DecodeImageDataURI decodes a "data:<mime>;base64,<payload>" reference.
// ok is false when value is not a data URI and should be kept as a reference.
func DecodeImageDataURI(value string) (upload *ImageUpload, ok bool, err error) {
	if !strings.HasPrefix(value, "data:") {
		return nil, false, nil
	}
	header, payload, found := strings.Cut(strings.TrimPrefix(value, "data:"), ",")
	if !found || !strings.HasSuffix(header, ";base64") {
		return nil, true, ErrInvalidImageData
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %v", ErrInvalidImageData, err)
	}
	return &ImageUpload{Data: data}, true, nil
}

// DetectImageType sniffs the payload and returns its MIME type and extension
// when it is one of the accepted image formats.
func DetectImageType(data []byte) (mime, ext string, err error) {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return "", "", ErrInvalidImageType
	}
	if _, ok := allowedImageTypes[kind.MIME.Value]; !ok {
		return "", "", ErrInvalidImageType
	}
	return kind.MIME.Value, kind.Extension, nil
}

func (s *ProductServiceImpl) storeImage(ctx context.Context, upload *ImageUpload) (stored storedImage, err error) {
	ctx, span := observability.StartSpan(ctx, "product.image.store", attribute.Int("image.size_bytes", len(upload.Data)))
	defer func() { observability.EndSpan(span, err) }()

	if s.images == nil {
		return storedImage{}, ErrImageStorageDisabled
	}
	if len(upload.Data) == 0 {
		return storedImage{}, ErrInvalidImageData
	}
	if s.maxImageBytes > 0 && int64(len(upload.Data)) > s.maxImageBytes {
		return storedImage{}, ErrImageTooLarge
	}
	mime, ext, err := DetectImageType(upload.Data)
	if err != nil {
		return storedImage{}, err
	}

	key := productImagePrefix + uuid.NewString() + "." + ext
	if err := s.images.Upload(ctx, key, upload.Data, mime); err != nil {
		return storedImage{}, err
	}
	observability.RecordImageUploadBytes(ctx, mime, int64(len(upload.Data)))
	return storedImage{key: key, contentType: mime}, nil
}

func (s *ProductServiceImpl) removeImage(ctx context.Context, ref string) {
	if s.images == nil || !isStoredImageKey(ref) {
		return
	}
	if err := s.images.Delete(ctx, ref); err != nil {
		s.logger.WarnContext(ctx, "product image cleanup failed", "object_key", ref, "error", err)
	}
}

// validateImageRef rejects text references naming the upload keyspace. Only
// keys generated by storeImage may live there, since the service deletes and
// presigns them as its own objects.
func validateImageRef(ref string) error {
	if strings.HasPrefix(strings.TrimLeft(ref, "/"), productImagePrefix) {
		return ErrReservedImageRef
	}
	return nil
}

func isStoredImageKey(ref string) bool {
	return strings.HasPrefix(ref, productImagePrefix) && !strings.Contains(ref, "..")
}

func isAbsoluteURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}
