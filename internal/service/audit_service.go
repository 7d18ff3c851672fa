package service

import (
	"context"
	"fmt"

	"closet-service/internal/models"
	"closet-service/internal/repository"
	"closet-service/internal/util"

	"go.uber.org/zap"
)

const defaultAuditLimit = 100

// AuditService projects ledger events into the audit trail.
type AuditService struct {
	repo   repository.AuditRepository
	logger *zap.Logger
}

// NewAuditService creates a new audit service
func NewAuditService(repo repository.AuditRepository) *AuditService {
	return &AuditService{repo: repo, logger: util.GetLogger()}
}

// HandleLedgerEvent stores one audit entry per event. Redelivered events are
// skipped.
func (as *AuditService) HandleLedgerEvent(ctx context.Context, event *models.LedgerEvent) error {
	ctx, span := util.StartSpan(ctx, "AuditService.HandleLedgerEvent")
	defer span.End()

	processed, err := as.repo.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		as.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	units := 0
	for _, l := range event.Lines {
		units += l.Count
	}

	entry := &models.AuditEntry{
		EventID:    event.EventID,
		EventType:  event.EventType,
		OrderID:    event.OrderID,
		Onyen:      event.Onyen,
		StaffOnyen: event.StaffOnyen,
		Units:      units,
		OccurredAt: event.Timestamp,
	}
	if err := as.repo.RecordAudit(ctx, entry); err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}

	as.logger.Debug("Audit entry recorded",
		zap.String("event_id", event.EventID),
		zap.String("event_type", event.EventType),
		zap.String("order_id", event.OrderID))
	return nil
}

// ListAudit returns the most recent entries, for one onyen when it is set.
func (as *AuditService) ListAudit(ctx context.Context, onyen string, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = defaultAuditLimit
	}
	entries, err := as.repo.ListAudit(ctx, onyen, limit)
	if err != nil {
		return nil, storeError("A problem occurred when reading the audit trail", err)
	}
	return entries, nil
}
