package store

import (
	"context"
	"fmt"
	"time"

	"closet-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// CreateOrder creates a new order. CreatedAt is filled from the database.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (id)
		VALUES ($1)
		RETURNING created_at`

	if err := sqlx.GetContext(ctx, s.q, &order.CreatedAt, query, order.ID); err != nil {
		return fmt.Errorf("creating order: %w", err)
	}
	return nil
}

// ListOrderTransactions returns order-workflow rows in any of statuses, newest first.
func (s *Store) ListOrderTransactions(ctx context.Context, statuses []models.TransactionStatus, onyen string) ([]models.Transaction, error) {
	query := txSelect + `
		WHERE actor = $1 AND status = ANY($2) AND ($3::text = '' OR onyen = $3)
		ORDER BY created_at DESC, id DESC`

	var txs []models.Transaction
	if err := sqlx.SelectContext(ctx, s.q, &txs, query,
		models.ActorOrder, pq.Array(statusStrings(statuses)), onyen); err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return txs, nil
}

// HasOutstandingOrder reports whether onyen holds an order row that is in use or late.
func (s *Store) HasOutstandingOrder(ctx context.Context, onyen string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, s.q, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM transactions
			WHERE actor = $1 AND onyen = $2 AND status = ANY($3)
		)`,
		models.ActorOrder, onyen, pq.Array(statusStrings(models.OutstandingStatuses)))
	if err != nil {
		return false, fmt.Errorf("checking outstanding orders: %w", err)
	}
	return exists, nil
}

// MarkLateOrders promotes every in-use order row whose return date is before
// now and returns the promoted rows.
func (s *Store) MarkLateOrders(ctx context.Context, now time.Time) ([]models.Transaction, error) {
	query := `
		UPDATE transactions SET status = $1
		WHERE actor = $2 AND status = $3 AND return_date < $4
		RETURNING ` + txColumns

	var txs []models.Transaction
	if err := sqlx.SelectContext(ctx, s.q, &txs, query,
		models.StatusLate, models.ActorOrder, models.StatusInUse, now); err != nil {
		return nil, fmt.Errorf("marking late orders: %w", err)
	}
	return txs, nil
}

func statusStrings(statuses []models.TransactionStatus) []string {
	out := make([]string, len(statuses))
	for i, st := range statuses {
		out[i] = string(st)
	}
	return out
}
