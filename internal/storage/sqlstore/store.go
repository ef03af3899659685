// Package sqlstore is the mutation gateway and query engine shared by the
// SQLite and PostgreSQL backends. It is the only writer of the database: every
// mutation validates, enforces cross-row invariants, applies the full delete
// closure in one transaction and then publishes the touched tables.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/julianstephens/lectern/internal/live"
	"github.com/julianstephens/lectern/internal/logger"
	"github.com/julianstephens/lectern/internal/models"
	"github.com/julianstephens/lectern/internal/recurrence"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db       *sql.DB
	dialect  Dialect
	mu       sync.RWMutex
	hub      *live.Hub
	now      func() time.Time
	expander recurrence.Expander
	log      *log.Logger
}

type Option func(*Store)

// WithClock replaces the clock used for created_at and updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithMaxOccurrences bounds a single template expansion.
func WithMaxOccurrences(n int) Option {
	return func(s *Store) { s.expander.MaxOccurrences = n }
}

// New wraps an open, migrated database. The caller keeps ownership of db.
func New(db *sql.DB, dialect Dialect, opts ...Option) *Store {
	s := &Store{
		db:      db,
		dialect: dialect,
		hub:     live.NewHub(),
		now:     time.Now,
		log:     logger.With("component", "store", "backend", dialect.Name),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Close stops every subscription. It does not close the database.
func (s *Store) Close() {
	s.hub.Close()
}

// withTx runs fn in a transaction, committing when it returns nil.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) exec(ctx context.Context, q querier, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, s.dialect.Rebind(query), args...)
}

// selectRows decodes every row of t matching where. The result set is fully
// drained before returning so a single-connection pool stays usable.
func (s *Store) selectRows(ctx context.Context, q querier, t *table, where string, args ...any) ([]models.Row, error) {
	query := "SELECT " + t.selectList() + " FROM " + string(t.entity)
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY " + t.orderBy
	return s.scanAll(ctx, q, t, query, args...)
}

func (s *Store) scanAll(ctx context.Context, q querier, t *table, query string, args ...any) ([]models.Row, error) {
	rows, err := q.QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", t.entity, err)
	}
	defer rows.Close()

	var out []models.Row
	for rows.Next() {
		row, err := t.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", t.entity, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", t.entity, err)
	}
	return out, nil
}

// findRow returns the row with id, or nil when there is none.
func (s *Store) findRow(ctx context.Context, q querier, entity models.Entity, id int64) (models.Row, error) {
	t, err := tableFor(entity)
	if err != nil {
		return nil, err
	}
	rows, err := s.selectRows(ctx, q, t, "id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (s *Store) exists(ctx context.Context, q querier, entity models.Entity, id int64) (bool, error) {
	var n int
	query := s.dialect.Rebind("SELECT COUNT(*) FROM " + string(entity) + " WHERE id = ?")
	if err := q.QueryRowContext(ctx, query, id).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to look up %s #%d: %w", entity, id, err)
	}
	return n > 0, nil
}

func (s *Store) ids(ctx context.Context, q querier, query string, args ...any) ([]int64, error) {
	rows, err := q.QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Store) publish(tables ...models.Entity) {
	s.log.Debug("commit", "tables", tables)
	s.hub.Publish(tables...)
}
