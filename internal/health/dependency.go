package health

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// pingChecker adapts a single error-returning probe to Checker.
type pingChecker struct {
	name string
	ping func(context.Context) error
}

func (c pingChecker) Check(ctx context.Context) CheckResult {
	res := CheckResult{Name: c.name, Healthy: true}
	if err := c.ping(ctx); err != nil {
		res.Healthy = false
		res.Error = err.Error()
	}
	return res
}

// NewDBChecker returns nil for a nil db.
func NewDBChecker(db *gorm.DB) Checker {
	if db == nil {
		return nil
	}
	return pingChecker{name: "db", ping: func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}}
}

// NewRedisChecker returns nil for a nil client.
func NewRedisChecker(client redis.UniversalClient) Checker {
	if client == nil {
		return nil
	}
	return pingChecker{name: "redis", ping: func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}}
}

// BucketChecker is satisfied by image storage backends that can verify their bucket.
type BucketChecker interface {
	Check(ctx context.Context) error
}

// NewImageStorageChecker returns nil when storage is nil.
func NewImageStorageChecker(storage BucketChecker) Checker {
	if storage == nil {
		return nil
	}
	return pingChecker{name: "image_storage", ping: func(ctx context.Context) error {
		if err := storage.Check(ctx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return errors.New("image storage check timed out")
			}
			return err
		}
		return nil
	}}
}
