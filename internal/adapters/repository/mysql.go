package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

var mysqlDialect = dialect{
	name: "mysql",
	schema: []string{`
		CREATE TABLE IF NOT EXISTS call_records (
			id VARCHAR(64) PRIMARY KEY,
			caller_number VARCHAR(64) NOT NULL,
			caller_name VARCHAR(255) NOT NULL DEFAULT '',
			started_at BIGINT NOT NULL,
			ended_at BIGINT NOT NULL,
			transcript TEXT NOT NULL,
			intent VARCHAR(512) NOT NULL DEFAULT '',
			spam_likelihood DOUBLE NOT NULL DEFAULT 0,
			likely_spam BOOLEAN NOT NULL DEFAULT FALSE,
			action VARCHAR(32) NOT NULL DEFAULT '',
			decision VARCHAR(32) NOT NULL DEFAULT '',
			expires_at BIGINT NOT NULL,
			INDEX idx_expires_at (expires_at),
			INDEX idx_ended_at (ended_at)
		)`,
	},
	upsert: `INSERT INTO call_records (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			caller_number = VALUES(caller_number),
			caller_name = VALUES(caller_name),
			started_at = VALUES(started_at),
			ended_at = VALUES(ended_at),
			transcript = VALUES(transcript),
			intent = VALUES(intent),
			spam_likelihood = VALUES(spam_likelihood),
			likely_spam = VALUES(likely_spam),
			action = VALUES(action),
			decision = VALUES(decision),
			expires_at = VALUES(expires_at)`,
}

// NewMySQLRepository connects to MySQL and prepares the call record table
func NewMySQLRepository(dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLRepository, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	return NewMySQLRepositoryFromDB(db, logger, cleanupFreq)
}

// NewMySQLRepositoryFromDB prepares the call record table on an open handle
func NewMySQLRepositoryFromDB(db *sql.DB, logger *zap.Logger, cleanupFreq time.Duration) (*SQLRepository, error) {
	repo, err := newSQLRepository(context.Background(), db, mysqlDialect, logger, cleanupFreq)
	if err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}
