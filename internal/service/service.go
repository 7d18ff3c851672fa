package service

import (
	"context"
	"errors"
	"time"

	"closet-service/internal/apperr"
	"closet-service/internal/models"
	"closet-service/internal/repository"
	"closet-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Publisher sends ledger events after their changes are committed.
type Publisher interface {
	PublishLedgerEvent(ctx context.Context, event *models.LedgerEvent) error
}

// IdempotencyStore remembers the result of a request by client key.
type IdempotencyStore interface {
	GetIdempotencyKey(ctx context.Context, key string) (string, bool, error)
	SetIdempotencyKey(ctx context.Context, key, value string, ttl time.Duration) error
}

// Locker hands out named, expiring locks shared by every instance.
type Locker interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, name, token string) error
}

// ErrReservedUser is returned when a caller tries to change the system user.
var ErrReservedUser error = apperr.BadRequest("the %s user is reserved and cannot be modified", models.SystemOnyen)

func newLedgerEvent(eventType string, t *models.Transaction, now time.Time) *models.LedgerEvent {
	return &models.LedgerEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: eventType,
			Timestamp: now,
		},
		OrderID:       t.OrderID,
		TransactionID: t.ID,
		Onyen:         t.Onyen,
		StaffOnyen:    t.StaffOnyen,
		Status:        t.Status,
		Lines:         []models.LedgerLine{{ItemID: t.ItemID, ItemName: t.ItemName, Count: t.Count}},
	}
}

// publish sends event if a publisher is configured. The change it describes
// is already committed, so a failure is only logged.
func publish(ctx context.Context, pub Publisher, logger *zap.Logger, event *models.LedgerEvent) {
	if pub == nil {
		return
	}
	if err := pub.PublishLedgerEvent(ctx, event); err != nil {
		util.EventsPublishFailedTotal.WithLabelValues(event.EventType).Inc()
		logger.Error("Failed to publish ledger event",
			zap.String("event_type", event.EventType),
			zap.String("order_id", event.OrderID),
			zap.Error(err))
	}
}

// storeError turns a repository failure into a domain error. Domain errors
// pass through untouched.
func storeError(msg string, err error) error {
	var de *apperr.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, repository.ErrReferenced):
		return apperr.Referential(msg+": back up and delete the dependent records first", err)
	case errors.Is(err, repository.ErrNotFound):
		return apperr.BadRequestWrap(err, msg)
	default:
		return apperr.Internal(msg, err)
	}
}
