package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{`
		CREATE TABLE IF NOT EXISTS call_records (
			id TEXT PRIMARY KEY,
			caller_number TEXT NOT NULL,
			caller_name TEXT NOT NULL DEFAULT '',
			started_at INTEGER NOT NULL,
			ended_at INTEGER NOT NULL,
			transcript TEXT NOT NULL DEFAULT '',
			intent TEXT NOT NULL DEFAULT '',
			spam_likelihood REAL NOT NULL DEFAULT 0,
			likely_spam BOOLEAN NOT NULL DEFAULT 0,
			action TEXT NOT NULL DEFAULT '',
			decision TEXT NOT NULL DEFAULT '',
			expires_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_call_records_expires_at ON call_records(expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_call_records_ended_at ON call_records(ended_at)`,
	},
	upsert: `INSERT OR REPLACE INTO call_records (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
}

// NewSQLiteRepository opens (creating if needed) a SQLite call record store
func NewSQLiteRepository(dbPath string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLRepository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// go-sqlite3 serialises writers; one connection avoids "database is locked"
	db.SetMaxOpenConns(1)

	repo, err := newSQLRepository(context.Background(), db, sqliteDialect, logger, cleanupFreq)
	if err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}
