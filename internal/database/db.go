package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Postgres driver
	_ "github.com/lib/pq"
)

const (
	// DefaultMaxOpenConns is the default maximum number of open connections
	DefaultMaxOpenConns = 20
	// DefaultMaxIdleConns is the default maximum number of idle connections
	DefaultMaxIdleConns = 10
	// DefaultConnMaxLifetime is how long a connection may be reused
	DefaultConnMaxLifetime = time.Hour
)

// DB wraps the sql connection pool
type DB struct {
	*sql.DB
}

// New connects to the database and verifies the connection
func New(databaseURL string) (*DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// WithTx runs fn inside a transaction, committing on nil error and rolling
// back otherwise.
func (db *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Migrate creates the schema if it does not exist
func (db *DB) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS user_profiles (
			id BIGSERIAL PRIMARY KEY,
			user_id VARCHAR(64) UNIQUE NOT NULL CHECK (LENGTH(user_id) > 0),
			preferences JSONB NOT NULL DEFAULT '{}',
			statistics JSONB NOT NULL DEFAULT '{}',
			knowledge_graph JSONB NOT NULL DEFAULT '{}',
			interests JSONB NOT NULL DEFAULT '[]',
			weak_points JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS session_summaries (
			id UUID PRIMARY KEY,
			session_id VARCHAR(64) UNIQUE NOT NULL CHECK (LENGTH(session_id) > 0),
			user_id VARCHAR(64) NOT NULL CHECK (LENGTH(user_id) > 0),
			core_topic TEXT NOT NULL CHECK (LENGTH(core_topic) > 0),
			key_points JSONB NOT NULL DEFAULT '[]',
			resolved_questions JSONB NOT NULL DEFAULT '[]',
			unresolved_questions JSONB NOT NULL DEFAULT '[]',
			user_preferences JSONB NOT NULL DEFAULT '{}',
			weak_points JSONB NOT NULL DEFAULT '[]',
			subject VARCHAR(50),
			topic VARCHAR(100),
			difficulty VARCHAR(20),
			recent_messages JSONB NOT NULL DEFAULT '[]',
			message_count INTEGER NOT NULL DEFAULT 0,
			token_count INTEGER NOT NULL DEFAULT 0,
			summary_quality JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_session_summaries_user_created
			ON session_summaries (user_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS memory_embeddings (
			id UUID PRIMARY KEY,
			memory_id UUID NOT NULL,
			user_id VARCHAR(64) NOT NULL,
			session_id VARCHAR(64),
			embedding JSONB NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_embeddings_user_created
			ON memory_embeddings (user_id, created_at DESC)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}
