// Package repository persists filter runs and their accepted references to Postgres.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS sieve_runs (
	run_id      UUID PRIMARY KEY,
	source      TEXT NOT NULL,
	groups      TEXT NOT NULL,
	max_metric  INTEGER NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	ended_at    TIMESTAMPTZ,
	read_count  INTEGER,
	accepted    INTEGER
);
CREATE TABLE IF NOT EXISTS sieve_accepted (
	run_id     UUID NOT NULL REFERENCES sieve_runs(run_id),
	ordinal    INTEGER NOT NULL,
	line       INTEGER NOT NULL,
	reference  TEXT NOT NULL,
	metric     INTEGER NOT NULL,
	PRIMARY KEY (run_id, ordinal)
);`

type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Repository) EnsureSchema(ctx context.Context) error {
	if r == nil || r.db == nil {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// StartRun registers a run and returns its id. A nil repository still hands out ids so
// callers can log them.
func (r *Repository) StartRun(ctx context.Context, source, groups string, maxMetric int) (string, error) {
	id := uuid.NewString()
	if r == nil || r.db == nil {
		return id, nil
	}
	const q = `INSERT INTO sieve_runs (run_id, source, groups, max_metric, started_at) VALUES ($1,$2,$3,$4,$5)`
	if _, err := r.db.ExecContext(ctx, q, id, source, groups, maxMetric, time.Now()); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// SaveAccepted stores one accepted reference. Re-saving the same ordinal overwrites it.
func (r *Repository) SaveAccepted(ctx context.Context, runID string, ordinal, line int, reference string, metric int) error {
	if r == nil || r.db == nil {
		return nil
	}
	const q = `INSERT INTO sieve_accepted (run_id, ordinal, line, reference, metric)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (run_id, ordinal) DO UPDATE SET
			line=EXCLUDED.line,
			reference=EXCLUDED.reference,
			metric=EXCLUDED.metric`
	if _, err := r.db.ExecContext(ctx, q, runID, ordinal, line, reference, metric); err != nil {
		return fmt.Errorf("insert accepted: %w", err)
	}
	return nil
}

func (r *Repository) FinishRun(ctx context.Context, runID string, read, accepted int) error {
	if r == nil || r.db == nil {
		return nil
	}
	const q = `UPDATE sieve_runs SET ended_at=$2, read_count=$3, accepted=$4 WHERE run_id=$1`
	if _, err := r.db.ExecContext(ctx, q, runID, time.Now(), read, accepted); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}
