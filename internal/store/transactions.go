package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"closet-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const txColumns = `id, order_id, item_id, item_name, count, onyen, actor,
	COALESCE(staff_onyen, '') AS staff_onyen, status, return_date, created_at`

const txSelect = `SELECT ` + txColumns + ` FROM transactions`

// CreateTransaction inserts a ledger row and fills in ID and CreatedAt.
func (s *Store) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	query := `
		INSERT INTO transactions (order_id, item_id, item_name, count, onyen, actor, staff_onyen, status, return_date)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)
		RETURNING id, created_at`

	row := s.q.QueryRowxContext(ctx, query,
		t.OrderID, t.ItemID, t.ItemName, t.Count, t.Onyen, t.Actor, t.StaffOnyen, t.Status, t.ReturnDate)
	if err := row.Scan(&t.ID, &t.CreatedAt); err != nil {
		return fmt.Errorf("creating transaction: %w", mapError(err))
	}
	return nil
}

// GetTransaction retrieves a transaction by ID, or nil when it does not exist.
func (s *Store) GetTransaction(ctx context.Context, id int64) (*models.Transaction, error) {
	return s.getTransaction(ctx, txSelect+` WHERE id = $1`, id)
}

// LockTransaction is GetTransaction with a row lock held until the transaction ends.
func (s *Store) LockTransaction(ctx context.Context, id int64) (*models.Transaction, error) {
	return s.getTransaction(ctx, txSelect+` WHERE id = $1 FOR UPDATE`, id)
}

func (s *Store) getTransaction(ctx context.Context, query string, id int64) (*models.Transaction, error) {
	var t models.Transaction
	err := sqlx.GetContext(ctx, s.q, &t, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting transaction: %w", err)
	}
	return &t, nil
}

// UpdateTransactionStatus updates status, keeping staff_onyen and return_date
// when the new values are empty.
func (s *Store) UpdateTransactionStatus(ctx context.Context, id int64, status models.TransactionStatus, staffOnyen string, returnDate *time.Time) error {
	return s.execAffected(ctx, `
		UPDATE transactions
		SET status = $1,
		    staff_onyen = COALESCE(NULLIF($2, ''), staff_onyen),
		    return_date = COALESCE($3, return_date)
		WHERE id = $4`,
		status, staffOnyen, returnDate, id)
}

// DeleteTransaction deletes one ledger row.
func (s *Store) DeleteTransaction(ctx context.Context, id int64) error {
	return s.execAffected(ctx, `DELETE FROM transactions WHERE id = $1`, id)
}

// ListTransactions returns the whole ledger, newest first.
func (s *Store) ListTransactions(ctx context.Context) ([]models.Transaction, error) {
	var txs []models.Transaction
	if err := sqlx.SelectContext(ctx, s.q, &txs, txSelect+` ORDER BY created_at DESC, id DESC`); err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	return txs, nil
}

// DeleteAllTransactions clears the ledger together with the order rows it grouped.
func (s *Store) DeleteAllTransactions(ctx context.Context) (int64, error) {
	n, err := s.execCount(ctx, `DELETE FROM transactions`)
	if err != nil {
		return 0, err
	}
	if _, err := s.execCount(ctx, `DELETE FROM orders`); err != nil {
		return 0, err
	}
	return n, nil
}
