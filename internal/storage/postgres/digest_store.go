// Package postgres provides Postgres-backed persistence for emitted digests.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/research-digest/internal/digest"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// DigestStoreConfig controls the Postgres connection pool used for digest rows.
type DigestStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type txBeginner interface {
	Begin(context.Context) (pgx.Tx, error)
	Close()
}

// DigestStore writes one row per digest item, replacing rows from an earlier run on the same date.
type DigestStore struct {
	pool  txBeginner
	table string
}

// NewDigestStore creates a Postgres-backed DigestStore using the provided config.
func NewDigestStore(ctx context.Context, cfg DigestStoreConfig) (*DigestStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewDigestStoreWithPool(pool, cfg.Table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewDigestStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewDigestStoreWithPool(pool txBeginner, table string) (*DigestStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "digest_items"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &DigestStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *DigestStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// StoreDigest replaces the rows for d.Date with d.Items in rank order.
func (s *DigestStore) StoreDigest(ctx context.Context, d digest.Digest) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("digest store is not configured")
	}
	if d.Date == "" {
		return fmt.Errorf("digest date is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	deleteQuery := fmt.Sprintf(`DELETE FROM %s WHERE run_date = $1`, s.table)
	if _, err := tx.Exec(ctx, deleteQuery, d.Date); err != nil {
		return rollback(ctx, tx, fmt.Errorf("clear previous run: %w", err))
	}

	insertQuery := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	run_date,
	rank,
	title,
	url,
	source,
	published,
	score,
	abstract,
	generated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)`, s.table)

	for i, item := range d.Items {
		args := []any{
			d.RunID,
			d.Date,
			i + 1,
			item.Title,
			item.URL,
			string(item.Source),
			nullable(item.Date),
			item.Score,
			item.Abstract,
			d.GeneratedAt,
		}
		if _, err := tx.Exec(ctx, insertQuery, args...); err != nil {
			return rollback(ctx, tx, fmt.Errorf("insert item %d: %w", i+1, err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit digest: %w", err)
	}
	return nil
}

func rollback(ctx context.Context, tx pgx.Tx, cause error) error {
	if err := tx.Rollback(ctx); err != nil {
		return fmt.Errorf("%w (rollback: %v)", cause, err)
	}
	return cause
}

// nullable stores unknown publish dates as NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
