package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mikey/llm-call-screener/internal/core"
	"go.uber.org/zap"
)

var _ core.CallRepository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory implementation of core.CallRepository
type MemoryRepository struct {
	records map[string]core.CallRecord
	mu      sync.RWMutex
	logger  *zap.Logger
	cleaner *cleanupTask
}

// NewMemoryRepository creates a new in-memory repository
func NewMemoryRepository(logger *zap.Logger, cleanupFreq time.Duration) *MemoryRepository {
	r := &MemoryRepository{
		records: make(map[string]core.CallRecord),
		logger:  logger,
	}
	r.cleaner = startCleanupTask(cleanupFreq, r.Cleanup, logger)
	return r
}

// Save stores or replaces a record
func (r *MemoryRepository) Save(ctx context.Context, rec *core.CallRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[rec.ID] = *rec
	return nil
}

// Get retrieves a record by call id
func (r *MemoryRepository) Get(ctx context.Context, id string) (*core.CallRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok || time.Now().After(rec.ExpiresAt) {
		return nil, core.ErrRecordNotFound
	}
	return &rec, nil
}

// List returns the most recent unexpired records, newest first
func (r *MemoryRepository) List(ctx context.Context, limit int) ([]*core.CallRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	out := make([]*core.CallRecord, 0, len(r.records))
	for _, rec := range r.records {
		if now.After(rec.ExpiresAt) {
			continue
		}
		rec := rec
		out = append(out, &rec)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].EndedAt.After(out[j].EndedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Delete removes a record
func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.records, id)
	return nil
}

// Cleanup removes expired records
func (r *MemoryRepository) Cleanup(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	expiredCount := 0
	for id, rec := range r.records {
		if now.After(rec.ExpiresAt) {
			delete(r.records, id)
			expiredCount++
		}
	}

	r.logger.Debug("Cleaned up expired call records", zap.Int("expired_count", expiredCount))
	return nil
}

// Stop stops the background cleanup task
func (r *MemoryRepository) Stop() {
	r.cleaner.stop()
}
