package store

import (
	"context"
	"fmt"

	"closet-service/internal/models"
	"closet-service/internal/repository"

	"github.com/jmoiron/sqlx"
)

var _ repository.AuditRepository = (*Store)(nil)

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, s.q, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// RecordAudit stores the projection of one event and marks it processed, both
// in a single transaction.
func (s *Store) RecordAudit(ctx context.Context, entry *models.AuditEntry) error {
	return s.WithTx(ctx, func(r repository.Repository) error {
		tx := r.(*Store)
		if _, err := tx.q.ExecContext(ctx, `
			INSERT INTO ledger_audit (event_id, event_type, order_id, onyen, staff_onyen, units, occurred_at)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
			ON CONFLICT (event_id) DO NOTHING`,
			entry.EventID, entry.EventType, entry.OrderID, entry.Onyen, entry.StaffOnyen,
			entry.Units, entry.OccurredAt); err != nil {
			return fmt.Errorf("recording audit entry: %w", err)
		}
		if _, err := tx.q.ExecContext(ctx,
			"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
			entry.EventID, entry.EventType); err != nil {
			return fmt.Errorf("marking event processed: %w", err)
		}
		return nil
	})
}

// ListAudit returns the latest audit entries, optionally for one onyen.
func (s *Store) ListAudit(ctx context.Context, onyen string, limit int) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	err := sqlx.SelectContext(ctx, s.q, &entries, `
		SELECT event_id, event_type, order_id, onyen, COALESCE(staff_onyen, '') AS staff_onyen, units, occurred_at
		FROM ledger_audit
		WHERE ($1::text = '' OR onyen = $1)
		ORDER BY occurred_at DESC
		LIMIT $2`,
		onyen, limit)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}
	return entries, nil
}
