package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"ProSocialFlow/internal/domain"
)

const createTopicHistory = `CREATE TABLE IF NOT EXISTS topic_history (
    category      TEXT PRIMARY KEY,
    recent_topics TEXT[] NOT NULL DEFAULT '{}',
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// PostgresRepository persists topic history into Postgres, one row per category.
type PostgresRepository struct {
	db    *sql.DB
	limit int
	now   func() time.Time
	psql  sq.StatementBuilderType
}

var _ Backend = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB, limit int) *PostgresRepository {
	if limit <= 0 {
		limit = domain.TopicHistoryLimit
	}
	return &PostgresRepository{
		db:    db,
		limit: limit,
		now:   time.Now,
		psql:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// OpenPostgres connects with lib/pq.
func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

// EnsureSchema creates the history table when missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createTopicHistory); err != nil {
		return &domain.StoreError{Op: "create schema", Err: err}
	}
	return nil
}

// Read returns the category's topics, most recent first.
func (r *PostgresRepository) Read(ctx context.Context, category domain.Category) ([]string, error) {
	query, args, err := r.psql.
		Select("recent_topics").
		From(Collection).
		Where(sq.Eq{"category": category}).
		ToSql()
	if err != nil {
		return nil, &domain.StoreError{Op: "build read", Category: category, Err: err}
	}

	var topics pq.StringArray
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&topics); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []string{}, nil
		}
		return nil, &domain.StoreError{Op: "read history", Category: category, Err: err}
	}
	if topics == nil {
		return []string{}, nil
	}
	return []string(topics), nil
}

// Record merges topic into the category's row under a row lock.
func (r *PostgresRepository) Record(ctx context.Context, category domain.Category, topic string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &domain.StoreError{Op: "begin record", Category: category, Err: err}
	}

	if err := r.recordTx(ctx, tx, category, topic); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return &domain.StoreError{Op: "commit record", Category: category, Err: err}
	}
	return nil
}

// recordTx seeds an empty row first so FOR UPDATE always has a row to lock;
// two first writers for a category then serialize instead of racing the insert.
func (r *PostgresRepository) recordTx(ctx context.Context, tx *sql.Tx, category domain.Category, topic string) error {
	now := r.now().UTC()

	seed, args, err := r.psql.
		Insert(Collection).
		Columns("category", "recent_topics", "updated_at").
		Values(category, pq.Array([]string{}), now).
		Suffix("ON CONFLICT (category) DO NOTHING").
		ToSql()
	if err != nil {
		return &domain.StoreError{Op: "build seed", Category: category, Err: err}
	}
	if _, err := tx.ExecContext(ctx, seed, args...); err != nil {
		return &domain.StoreError{Op: "seed history", Category: category, Err: err}
	}

	query, args, err := r.psql.
		Select("recent_topics").
		From(Collection).
		Where(sq.Eq{"category": category}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return &domain.StoreError{Op: "build record", Category: category, Err: err}
	}

	var current pq.StringArray
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&current); err != nil {
		return &domain.StoreError{Op: "lock history", Category: category, Err: err}
	}

	merged := domain.MergeTopic(current, topic, r.limit)

	update, args, err := r.psql.
		Update(Collection).
		Set("recent_topics", pq.Array(merged)).
		Set("updated_at", now).
		Where(sq.Eq{"category": category}).
		ToSql()
	if err != nil {
		return &domain.StoreError{Op: "build update", Category: category, Err: err}
	}

	if _, err := tx.ExecContext(ctx, update, args...); err != nil {
		return &domain.StoreError{Op: "update history", Category: category, Err: err}
	}
	return nil
}

// ReadAll enumerates every category row.
func (r *PostgresRepository) ReadAll(ctx context.Context) (map[domain.Category][]string, error) {
	query, args, err := r.psql.
		Select("category", "recent_topics").
		From(Collection).
		OrderBy("category").
		ToSql()
	if err != nil {
		return nil, &domain.StoreError{Op: "build read all", Err: err}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &domain.StoreError{Op: "read all history", Err: err}
	}

	result := make(map[domain.Category][]string)
	for rows.Next() {
		var (
			category string
			topics   pq.StringArray
		)
		if err := rows.Scan(&category, &topics); err != nil {
			_ = rows.Close()
			return nil, &domain.StoreError{Op: "scan history", Err: err}
		}
		if topics == nil {
			topics = pq.StringArray{}
		}
		result[category] = []string(topics)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, &domain.StoreError{Op: "iterate history", Err: rowsErr}
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, &domain.StoreError{Op: "close rows", Err: closeErr}
	}

	return result, nil
}

// Ping checks connectivity.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return &domain.StoreError{Op: "ping postgres", Err: err}
	}
	return nil
}

// Close releases the pool.
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}
