// Package storage is the Storage Gateway: the single component that talks to
// Postgres. Schema bootstrap and connection handling live here; message
// history, search, and scheduling-adjacent tables each get their own file.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jpetree331/stateful-agent/internal/apperror"
)

// Gateway wraps a pgx connection pool and exposes the conversation log,
// core-memory, archival, cron, and daily-summary operations the rest of the
// runtime needs. A single Gateway is shared process-wide.
type Gateway struct {
	pool *pgxpool.Pool
}

// Open establishes the connection pool, retrying the initial ping the same
// way the original Python gateway retried psycopg.connect on OperationalError.
func Open(ctx context.Context, dsn string) (*Gateway, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL is required: %w", apperror.ErrConfiguration)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MinConns = 0
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 5 * time.Minute

	const retries = 2
	const delay = 2 * time.Second

	var pool *pgxpool.Pool
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		pool, lastErr = pgxpool.NewWithConfig(ctx, cfg)
		if lastErr == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			lastErr = pool.Ping(pingCtx)
			cancel()
			if lastErr == nil {
				return &Gateway{pool: pool}, nil
			}
			pool.Close()
		}
		if attempt < retries {
			slog.Warn("database connection failed, retrying", "attempt", attempt+1, "of", retries+1, "error", lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("open database after %d attempts: %w", retries+1, lastErr)
}

// Close releases the pool.
func (g *Gateway) Close() {
	g.pool.Close()
}

// CheckConnection verifies the pool can still reach Postgres.
func (g *Gateway) CheckConnection(ctx context.Context) error {
	var one int
	return g.pool.QueryRow(ctx, "SELECT 1").Scan(&one)
}

// schemaStatements is the idempotent bootstrap, run once at startup. Order
// matters: archival's schema must exist before its table, and the cron_jobs
// migration ALTERs must follow the CREATE TABLE they patch.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS messages (
		id SERIAL PRIMARY KEY,
		thread_id TEXT NOT NULL,
		idx INTEGER NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('user', 'assistant', 'tool')),
		content TEXT NOT NULL,
		reasoning TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		metadata JSONB DEFAULT '{}',
		UNIQUE(thread_id, idx)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id)`,
	`ALTER TABLE messages ADD COLUMN IF NOT EXISTS reasoning TEXT`,
	`ALTER TABLE messages DROP CONSTRAINT IF EXISTS messages_role_check`,
	`ALTER TABLE messages ADD CONSTRAINT messages_role_check
		CHECK (role IN ('user', 'assistant', 'tool'))`,
	`CREATE TABLE IF NOT EXISTS core_memory (
		block_type TEXT PRIMARY KEY CHECK (block_type IN ('user', 'identity', 'ideaspace')),
		content TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS core_memory_history (
		id SERIAL PRIMARY KEY,
		block_type TEXT NOT NULL,
		content TEXT NOT NULL,
		version INTEGER NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS system_instructions (
		id INTEGER PRIMARY KEY DEFAULT 1 CHECK (id = 1),
		content TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`INSERT INTO system_instructions (id, content) VALUES (1, '') ON CONFLICT (id) DO NOTHING`,
	`CREATE SCHEMA IF NOT EXISTS archival`,
	`CREATE TABLE IF NOT EXISTS archival.facts (
		id SERIAL PRIMARY KEY,
		content TEXT NOT NULL,
		category TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		metadata JSONB DEFAULT '{}'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_archival_facts_category ON archival.facts(category)`,
	`CREATE INDEX IF NOT EXISTS idx_archival_facts_created ON archival.facts(created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS cron_jobs (
		id SERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		instructions TEXT NOT NULL,
		timezone TEXT NOT NULL DEFAULT 'America/New_York',
		schedule_days INTEGER[],
		schedule_time TEXT,
		run_date DATE,
		is_one_time BOOLEAN NOT NULL DEFAULT FALSE,
		status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'paused')),
		created_by TEXT NOT NULL DEFAULT 'user' CHECK (created_by IN ('user', 'agent')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_run_at TIMESTAMPTZ,
		last_run_status TEXT CHECK (last_run_status IN ('success', 'error', 'skipped', 'aborted')),
		last_run_error TEXT,
		run_count INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cron_jobs_status ON cron_jobs(status)`,
	`ALTER TABLE cron_jobs ADD COLUMN IF NOT EXISTS run_date DATE`,
	`ALTER TABLE cron_jobs ADD COLUMN IF NOT EXISTS is_one_time BOOLEAN NOT NULL DEFAULT FALSE`,
	`ALTER TABLE cron_jobs ALTER COLUMN schedule_days DROP NOT NULL`,
	`ALTER TABLE cron_jobs ALTER COLUMN schedule_time DROP NOT NULL`,
	`CREATE TABLE IF NOT EXISTS daily_summaries (
		id SERIAL PRIMARY KEY,
		summary_date DATE NOT NULL UNIQUE,
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// SetupSchema runs the full idempotent bootstrap. Safe to call on every
// startup.
func (g *Gateway) SetupSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := g.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema bootstrap: %w", err)
		}
	}
	return nil
}
