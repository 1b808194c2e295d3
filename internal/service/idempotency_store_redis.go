package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisIdempotencyRecord struct {
	Fingerprint string `json:"fingerprint"`
	Status      string `json:"status"`
	StatusCode  int    `json:"status_code,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// RedisIdempotencyStore keeps idempotency records as JSON values that expire
// with the record TTL.
type RedisIdempotencyStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisIdempotencyStore(client redis.UniversalClient, prefix string) *RedisIdempotencyStore {
	if prefix == "" {
		prefix = "idempotency"
	}
	return &RedisIdempotencyStore{client: client, prefix: prefix}
}

func (s *RedisIdempotencyStore) Begin(ctx context.Context, scope, key, fingerprint string, ttl time.Duration) (IdempotencyBeginResult, error) {
	redisKey := s.key(scope, key)
	pending, err := json.Marshal(redisIdempotencyRecord{Fingerprint: fingerprint, Status: string(IdempotencyStateNew)})
	if err != nil {
		return IdempotencyBeginResult{}, err
	}

	for attempt := 0; attempt < 2; attempt++ {
		created, err := s.client.SetNX(ctx, redisKey, pending, ttl).Result()
		if err != nil {
			return IdempotencyBeginResult{}, err
		}
		if created {
			return IdempotencyBeginResult{State: IdempotencyStateNew}, nil
		}

		raw, err := s.client.Get(ctx, redisKey).Bytes()
		if errors.Is(err, redis.Nil) {
			// expired between SETNX and GET
			continue
		}
		if err != nil {
			return IdempotencyBeginResult{}, err
		}
		var rec redisIdempotencyRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return IdempotencyBeginResult{}, fmt.Errorf("decode idempotency record: %w", err)
		}
		switch {
		case rec.Fingerprint != fingerprint:
			return IdempotencyBeginResult{State: IdempotencyStateConflict}, nil
		case rec.Status == idempotencyStatusCompleted:
			return IdempotencyBeginResult{State: IdempotencyStateReplay, Cached: &CachedHTTPResponse{
				StatusCode:  rec.StatusCode,
				ContentType: rec.ContentType,
				Body:        rec.Body,
			}}, nil
		default:
			return IdempotencyBeginResult{State: IdempotencyStateInProgress}, nil
		}
	}
	return IdempotencyBeginResult{}, errRetryableReadConflict
}

func (s *RedisIdempotencyStore) Complete(ctx context.Context, scope, key, fingerprint string, response CachedHTTPResponse, ttl time.Duration) error {
	redisKey := s.key(scope, key)
	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, redisKey).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		var rec redisIdempotencyRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("decode idempotency record: %w", err)
		}
		if rec.Fingerprint != fingerprint || rec.Status == idempotencyStatusCompleted {
			return nil
		}
		payload, err := json.Marshal(redisIdempotencyRecord{
			Fingerprint: fingerprint,
			Status:      idempotencyStatusCompleted,
			StatusCode:  response.StatusCode,
			ContentType: response.ContentType,
			Body:        response.Body,
		})
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, redisKey, payload, ttl)
			return nil
		})
		return err
	}, redisKey)
}

func (s *RedisIdempotencyStore) key(scope, key string) string {
	return s.prefix + ":" + scope + ":" + key
}
