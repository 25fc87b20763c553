package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mikey/llm-call-screener/internal/core"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	redisKeyPrefix = "call-screener:record:"
	redisIndexKey  = "call-screener:records"
)

var _ core.CallRepository = (*RedisRepository)(nil)

// RedisRepository stores call records as JSON values that expire on their
// own. A sorted set scored by end time keeps the history order.
type RedisRepository struct {
	client  *redis.Client
	logger  *zap.Logger
	cleaner *cleanupTask
}

// NewRedisRepository connects to redis and returns a repository
func NewRedisRepository(opts *redis.Options, logger *zap.Logger, cleanupFreq time.Duration) (*RedisRepository, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	r := &RedisRepository{
		client: client,
		logger: logger,
	}
	r.cleaner = startCleanupTask(cleanupFreq, r.Cleanup, logger)
	return r, nil
}

func recordKey(id string) string {
	return redisKeyPrefix + id
}

// Save stores or replaces a record
func (r *RedisRepository) Save(ctx context.Context, rec *core.CallRecord) error {
	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal call record: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, recordKey(rec.ID), data, ttl)
		pipe.ZAdd(ctx, redisIndexKey, redis.Z{Score: float64(rec.EndedAt.UnixMilli()), Member: rec.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save call record: %w", err)
	}
	return nil
}

// Get retrieves a record by call id
func (r *RedisRepository) Get(ctx context.Context, id string) (*core.CallRecord, error) {
	data, err := r.client.Get(ctx, recordKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get call record: %w", err)
	}

	var rec core.CallRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode call record: %w", err)
	}
	return &rec, nil
}

// List returns the most recent unexpired records, newest first
func (r *RedisRepository) List(ctx context.Context, limit int) ([]*core.CallRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	ids, err := r.client.ZRevRange(ctx, redisIndexKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list call records: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = recordKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load call records: %w", err)
	}

	out := make([]*core.CallRecord, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			// expired between the index read and the fetch
			continue
		}
		var rec core.CallRecord
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			r.logger.Warn("Skipping undecodable call record", zap.String("id", ids[i]), zap.Error(err))
			continue
		}
		out = append(out, &rec)
	}
	return out, nil
}

// Delete removes a record
func (r *RedisRepository) Delete(ctx context.Context, id string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, recordKey(id))
		pipe.ZRem(ctx, redisIndexKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete call record: %w", err)
	}
	return nil
}

// Cleanup drops index entries whose records redis has already expired
func (r *RedisRepository) Cleanup(ctx context.Context) error {
	ids, err := r.client.ZRange(ctx, redisIndexKey, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("failed to read call record index: %w", err)
	}

	var stale []any
	for _, id := range ids {
		n, err := r.client.Exists(ctx, recordKey(id)).Result()
		if err != nil {
			return fmt.Errorf("failed to check call record: %w", err)
		}
		if n == 0 {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		if err := r.client.ZRem(ctx, redisIndexKey, stale...).Err(); err != nil {
			return fmt.Errorf("failed to prune call record index: %w", err)
		}
	}

	r.logger.Debug("Cleaned up expired call records", zap.Int("expired_count", len(stale)))
	return nil
}

// Stop stops the background cleanup task and closes the client
func (r *RedisRepository) Stop() {
	r.cleaner.stop()
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close redis client", zap.Error(err))
	}
}
