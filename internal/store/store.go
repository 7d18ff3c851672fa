package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"closet-service/internal/repository"
	"closet-service/internal/util"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Postgres error codes.
const (
	pqForeignKeyViolation       = "23503"
	pqInvalidTextRepresentation = "22P02"
)

// Store implements repository.Repository on PostgreSQL. A Store returned by
// NewStore runs statements on the pool; the Store handed to a WithTx callback
// runs them on that transaction.
type Store struct {
	db *sqlx.DB
	q  sqlx.ExtContext
	tx *sqlx.Tx
}

var _ repository.Repository = (*Store)(nil)

// NewStore creates a new database store
func NewStore(databaseURL string, maxOpen, maxIdle int) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return New(db), nil
}

// New wraps an open handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, q: db}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTx runs fn in a transaction. Nested calls join the outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(repository.Repository) error) error {
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&Store{db: s.db, q: tx, tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			util.GetLogger().Error("Failed to roll back transaction",
				zap.Error(rbErr),
				zap.NamedError("cause", err))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// mapError translates driver errors into repository sentinels. An id that
// does not parse as the column type cannot match a row, so it is not found.
func mapError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case pqForeignKeyViolation:
		return fmt.Errorf("%w: %s", repository.ErrReferenced, pqErr.Constraint)
	case pqInvalidTextRepresentation:
		return fmt.Errorf("%w: %s", repository.ErrNotFound, pqErr.Message)
	}
	return err
}

// execAffected runs an update or delete and reports ErrNotFound when no row matched.
func (s *Store) execAffected(ctx context.Context, query string, args ...any) error {
	res, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// execCount runs a bulk statement and returns the number of affected rows.
func (s *Store) execCount(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapError(err)
	}
	return res.RowsAffected()
}
