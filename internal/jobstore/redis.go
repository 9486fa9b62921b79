package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/thuongerikdev/FilmZone-sub003/internal/model"
)

// RedisStore keeps job records as JSON values in Redis so a restarted server
// (or a status endpoint on another instance) still sees them. The coordinator
// remains the single writer, which keeps the read-modify-write in Update safe
// without a distributed lock.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisStore wraps an existing Redis client. Records expire after ttl so
// abandoned jobs do not pile up; ttl <= 0 disables expiry.
func NewRedisStore(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "filmzone:jobs:"
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

func (s *RedisStore) key(id string) string {
	return s.keyPrefix + id
}

// Create inserts the record, rejecting duplicate ids via SETNX.
func (s *RedisStore) Create(ctx context.Context, job *model.UploadJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	ok, err := s.client.SetNX(ctx, s.key(job.ID), payload, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("store job: %w", err)
	}
	if !ok {
		return ErrExists
	}
	return nil
}

// Get fetches and decodes the record.
func (s *RedisStore) Get(ctx context.Context, id string) (*model.UploadJob, error) {
	payload, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetch job: %w", err)
	}
	var job model.UploadJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}

// Update applies fn to the current record and writes the result back.
func (s *RedisStore) Update(ctx context.Context, id string, fn func(*model.UploadJob) error) (*model.UploadJob, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(job); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal job: %w", err)
	}
	if err := s.client.Set(ctx, s.key(id), payload, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("store job: %w", err)
	}
	return job, nil
}
