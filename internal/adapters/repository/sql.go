package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mikey/llm-call-screener/internal/core"
	"go.uber.org/zap"
)

// dialect holds the statements that differ between SQL backends
type dialect struct {
	name   string
	schema []string
	upsert string
}

const recordColumns = `id, caller_number, caller_name, started_at, ended_at, transcript,
	intent, spam_likelihood, likely_spam, action, decision, expires_at`

var _ core.CallRepository = (*SQLRepository)(nil)

// SQLRepository is a database/sql implementation of core.CallRepository.
// Timestamps are stored as unix milliseconds so the same queries run on
// SQLite and MySQL.
type SQLRepository struct {
	db      *sql.DB
	dialect dialect
	logger  *zap.Logger
	cleaner *cleanupTask
}

func newSQLRepository(ctx context.Context, db *sql.DB, d dialect, logger *zap.Logger, cleanupFreq time.Duration) (*SQLRepository, error) {
	for _, stmt := range d.schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create %s schema: %w", d.name, err)
		}
	}

	r := &SQLRepository{
		db:      db,
		dialect: d,
		logger:  logger,
	}
	r.cleaner = startCleanupTask(cleanupFreq, r.Cleanup, logger)
	return r, nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// Save stores or replaces a record
func (r *SQLRepository) Save(ctx context.Context, rec *core.CallRecord) error {
	_, err := r.db.ExecContext(ctx, r.dialect.upsert,
		rec.ID, rec.CallerNumber, rec.CallerName,
		toMillis(rec.StartedAt), toMillis(rec.EndedAt), rec.Transcript,
		rec.Intent, rec.SpamLikelihood, rec.LikelySpam, rec.Action, string(rec.Decision),
		toMillis(rec.ExpiresAt))
	if err != nil {
		return fmt.Errorf("failed to save call record: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*core.CallRecord, error) {
	var (
		rec                     core.CallRecord
		started, ended, expires int64
		decision                string
	)
	err := row.Scan(&rec.ID, &rec.CallerNumber, &rec.CallerName, &started, &ended, &rec.Transcript,
		&rec.Intent, &rec.SpamLikelihood, &rec.LikelySpam, &rec.Action, &decision, &expires)
	if err != nil {
		return nil, err
	}
	rec.StartedAt = fromMillis(started)
	rec.EndedAt = fromMillis(ended)
	rec.ExpiresAt = fromMillis(expires)
	rec.Decision = core.Decision(decision)
	return &rec, nil
}

// Get retrieves a record by call id
func (r *SQLRepository) Get(ctx context.Context, id string) (*core.CallRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM call_records
		WHERE id = ? AND expires_at > ?
	`, id, toMillis(time.Now()))

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to query call record: %w", err)
	}
	return rec, nil
}

// List returns the most recent unexpired records, newest first
func (r *SQLRepository) List(ctx context.Context, limit int) ([]*core.CallRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM call_records
		WHERE expires_at > ?
		ORDER BY ended_at DESC
		LIMIT ?
	`, toMillis(time.Now()), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list call records: %w", err)
	}
	defer rows.Close()

	var out []*core.CallRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan call record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list call records: %w", err)
	}
	return out, nil
}

// Delete removes a record
func (r *SQLRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM call_records WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete call record: %w", err)
	}
	return nil
}

// Cleanup removes expired records
func (r *SQLRepository) Cleanup(ctx context.Context) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM call_records WHERE expires_at <= ?`, toMillis(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to clean up expired call records: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		r.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		r.logger.Debug("Cleaned up expired call records", zap.Int64("expired_count", rowsAffected))
	}
	return nil
}

// Stop stops the background cleanup task and closes the database connection
func (r *SQLRepository) Stop() {
	r.cleaner.stop()
	if err := r.db.Close(); err != nil {
		r.logger.Error("Failed to close database", zap.String("dialect", r.dialect.name), zap.Error(err))
	}
}
