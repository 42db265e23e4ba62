// Package session provides SessionStore implementations that mirror task
// outcomes durably.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Dev-pucci/webscraping-app/internal/scrape"
)

// PostgresConfig controls the Postgres connection pool.
type PostgresConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// PostgresStore mirrors session rows into the scrape_sessions table. Rows are
// advisory history; the in-memory task store stays authoritative, so every
// write is fire-and-forget from the task's perspective.
type PostgresStore struct {
	pool execCloser
}

// NewPostgresStore connects a pool and returns the store.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("sessions.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewPostgresStoreWithPool(pool execCloser) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// CreateSession inserts the initial row. A duplicate id is ignored so a
// replayed create never errors.
func (s *PostgresStore) CreateSession(ctx context.Context, summary scrape.SessionSummary) error {
	query := `
INSERT INTO scrape_sessions (
	task_id, kind, query, category_url, status, progress, message,
	pages, record_count, error_text, started_at, completed_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (task_id) DO NOTHING`
	if _, err := s.pool.Exec(ctx, query, args(summary)...); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// UpdateSession refreshes the mutable columns for a running task.
func (s *PostgresStore) UpdateSession(ctx context.Context, summary scrape.SessionSummary) error {
	query := `
UPDATE scrape_sessions
SET status = $2, progress = $3, message = $4, record_count = $5
WHERE task_id = $1`
	if _, err := s.pool.Exec(ctx, query,
		summary.TaskID, string(summary.Status), summary.Progress, summary.Message, summary.RecordCount,
	); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// CompleteSession writes the terminal columns.
func (s *PostgresStore) CompleteSession(ctx context.Context, summary scrape.SessionSummary) error {
	query := `
UPDATE scrape_sessions
SET status = $2, progress = $3, message = $4, record_count = $5,
	error_text = $6, completed_at = $7
WHERE task_id = $1`
	if _, err := s.pool.Exec(ctx, query,
		summary.TaskID, string(summary.Status), summary.Progress, summary.Message,
		summary.RecordCount, summary.ErrorText, summary.CompletedAt,
	); err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	return nil
}

func args(summary scrape.SessionSummary) []any {
	return []any{
		summary.TaskID,
		string(summary.Kind),
		summary.Query,
		summary.CategoryURL,
		string(summary.Status),
		summary.Progress,
		summary.Message,
		summary.Pages,
		summary.RecordCount,
		summary.ErrorText,
		summary.StartedAt,
		summary.CompletedAt,
	}
}
