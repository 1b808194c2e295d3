package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/sandeepkv93/product-catalog/internal/observability"
)

const defaultPresignedURLTTL = 15 * time.Minute

var (
	ErrImageStorage         = errors.New("image storage failure")
	ErrBucketCreationFailed = fmt.Errorf("%w: failed to create storage bucket", ErrImageStorage)
	ErrUploadFailed         = fmt.Errorf("%w: failed to upload image", ErrImageStorage)
	ErrDeleteFailed         = fmt.Errorf("%w: failed to delete image", ErrImageStorage)
	ErrURLGenerationFailed  = fmt.Errorf("%w: failed to generate presigned URL", ErrImageStorage)
	ErrInvalidObjectKey     = errors.New("invalid object key")
)

type MinIOConfig struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	UseSSL     bool
	PresignTTL time.Duration
}

// MinIOImageStorage implements ImageStorage on MinIO or any S3-compatible store.
type MinIOImageStorage struct {
	client     *minio.Client
	bucketName string
	presignTTL time.Duration
	initOnce   sync.Once
	initErr    error
}

// NewMinIOImageStorage creates the client. The bucket is created on first use
// so startup does not block on object storage.
func NewMinIOImageStorage(cfg MinIOConfig) (*MinIOImageStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = defaultPresignedURLTTL
	}
	return &MinIOImageStorage{client: client, bucketName: cfg.Bucket, presignTTL: ttl}, nil
}

func (s *MinIOImageStorage) lazyInit(ctx context.Context) error {
	s.initOnce.Do(func() {
		s.initErr = s.ensureBucketExists(ctx)
	})
	return s.initErr
}

func (s *MinIOImageStorage) ensureBucketExists(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("%w: check bucket existence: %v", ErrBucketCreationFailed, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("%w: create bucket: %v", ErrBucketCreationFailed, err)
		}
	}
	return nil
}

func (s *MinIOImageStorage) Upload(ctx context.Context, objectKey string, data []byte, contentType string) error {
	if err := validateObjectKey(objectKey); err != nil {
		return err
	}
	if err := s.lazyInit(ctx); err != nil {
		observability.RecordImageStorageOperation(ctx, "put", "error")
		return err
	}
	_, err := s.client.PutObject(ctx, s.bucketName, objectKey, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			"Uploaded-At": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		observability.RecordImageStorageOperation(ctx, "put", "error")
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	observability.RecordImageStorageOperation(ctx, "put", "success")
	return nil
}

func (s *MinIOImageStorage) Delete(ctx context.Context, objectKey string) error {
	if strings.TrimSpace(objectKey) == "" {
		return nil
	}
	if err := validateObjectKey(objectKey); err != nil {
		return err
	}
	if err := s.lazyInit(ctx); err != nil {
		observability.RecordImageStorageOperation(ctx, "delete", "error")
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucketName, objectKey, minio.RemoveObjectOptions{}); err != nil {
		observability.RecordImageStorageOperation(ctx, "delete", "error")
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	observability.RecordImageStorageOperation(ctx, "delete", "success")
	return nil
}

func (s *MinIOImageStorage) PresignedURL(ctx context.Context, objectKey string) (string, error) {
	if err := validateObjectKey(objectKey); err != nil {
		return "", err
	}
	if err := s.lazyInit(ctx); err != nil {
		observability.RecordImageStorageOperation(ctx, "presign", "error")
		return "", err
	}
	presigned, err := s.client.PresignedGetObject(ctx, s.bucketName, objectKey, s.presignTTL, url.Values{})
	if err != nil {
		observability.RecordImageStorageOperation(ctx, "presign", "error")
		return "", fmt.Errorf("%w: %v", ErrURLGenerationFailed, err)
	}
	observability.RecordImageStorageOperation(ctx, "presign", "success")
	return presigned.String(), nil
}

// Check reports whether the bucket is reachable. It does not create it.
func (s *MinIOImageStorage) Check(ctx context.Context) error {
	if _, err := s.client.BucketExists(ctx, s.bucketName); err != nil {
		return fmt.Errorf("%w: %v", ErrImageStorage, err)
	}
	return nil
}

func validateObjectKey(objectKey string) error {
	if strings.TrimSpace(objectKey) == "" || strings.Contains(objectKey, "..") || strings.HasPrefix(objectKey, "/") {
		return ErrInvalidObjectKey
	}
	return nil
}
