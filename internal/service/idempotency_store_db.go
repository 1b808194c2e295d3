package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sandeepkv93/product-catalog/internal/domain"
)

const idempotencyStatusCompleted = "completed"

// DBIdempotencyStore keeps idempotency records in the idempotency_records
// table. Expired records are reused in place by Begin.
type DBIdempotencyStore struct {
	db *gorm.DB
}

func NewDBIdempotencyStore(db *gorm.DB) *DBIdempotencyStore {
	return &DBIdempotencyStore{db: db}
}

func (s *DBIdempotencyStore) Begin(ctx context.Context, scope, key, fingerprint string, ttl time.Duration) (IdempotencyBeginResult, error) {
	result, err := s.begin(ctx, scope, key, fingerprint, ttl)
	if errors.Is(err, errRetryableReadConflict) {
		// another request inserted the same key between our read and insert
		result, err = s.begin(ctx, scope, key, fingerprint, ttl)
	}
	if err != nil {
		return IdempotencyBeginResult{}, err
	}
	return result, nil
}

func (s *DBIdempotencyStore) begin(ctx context.Context, scope, key, fingerprint string, ttl time.Duration) (IdempotencyBeginResult, error) {
	now := time.Now().UTC()
	var result IdempotencyBeginResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec domain.IdempotencyRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("scope = ? AND idempotency_key = ?", scope, key).
			First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			create := domain.IdempotencyRecord{
				Scope:           scope,
				IdempotencyKey:  key,
				FingerprintHash: fingerprint,
				Status:          string(IdempotencyStateNew),
				ExpiresAt:       now.Add(ttl),
			}
			if err := tx.Create(&create).Error; err != nil {
				if isUniqueConstraintErr(err) {
					return errRetryableReadConflict
				}
				return err
			}
			result.State = IdempotencyStateNew
			return nil
		}
		if err != nil {
			return err
		}

		if rec.ExpiresAt.Before(now) {
			rec.FingerprintHash = fingerprint
			rec.Status = string(IdempotencyStateNew)
			rec.ResponseStatus = 0
			rec.ResponseBody = nil
			rec.ContentType = ""
			rec.ExpiresAt = now.Add(ttl)
			if err := tx.Save(&rec).Error; err != nil {
				return err
			}
			result.State = IdempotencyStateNew
			return nil
		}

		switch {
		case rec.FingerprintHash != fingerprint:
			result.State = IdempotencyStateConflict
		case rec.Status == idempotencyStatusCompleted:
			result.State = IdempotencyStateReplay
			result.Cached = &CachedHTTPResponse{
				StatusCode:  rec.ResponseStatus,
				ContentType: rec.ContentType,
				Body:        append([]byte(nil), rec.ResponseBody...),
			}
		default:
			result.State = IdempotencyStateInProgress
		}
		return nil
	})
	return result, err
}

func (s *DBIdempotencyStore) Complete(ctx context.Context, scope, key, fingerprint string, response CachedHTTPResponse, ttl time.Duration) error {
	now := time.Now().UTC()
	return s.db.WithContext(ctx).Model(&domain.IdempotencyRecord{}).
		Where("scope = ? AND idempotency_key = ? AND fingerprint_hash = ?", scope, key, fingerprint).
		Where("status <> ?", idempotencyStatusCompleted).
		Updates(map[string]any{
			"status":          idempotencyStatusCompleted,
			"response_status": response.StatusCode,
			"response_body":   response.Body,
			"content_type":    response.ContentType,
			"expires_at":      now.Add(ttl),
		}).Error
}

var errRetryableReadConflict = errors.New("retryable read conflict")

func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique constraint") ||
		strings.Contains(lower, "duplicate key") ||
		strings.Contains(lower, "unique violation")
}
