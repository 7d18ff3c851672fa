package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"closet-service/internal/apperr"
	"closet-service/internal/models"
	"closet-service/internal/repository"
	"closet-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LedgerService records staff give and take transactions.
type LedgerService struct {
	repo      repository.Repository
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewLedgerService creates a new ledger service. publisher may be nil.
func NewLedgerService(repo repository.Repository, publisher Publisher) *LedgerService {
	return &LedgerService{
		repo:      repo,
		publisher: publisher,
		logger:    util.GetLogger(),
		now:       time.Now,
	}
}

// CreateTransaction records a signed stock change for itemID on behalf of
// onyen. The item row is locked for the duration, so the count can never go
// below zero.
func (s *LedgerService) CreateTransaction(ctx context.Context, itemID string, quantity int, onyen, staffOnyen string) (*models.Transaction, error) {
	var t *models.Transaction
	err := s.repo.WithTx(ctx, func(r repository.Repository) error {
		var err error
		t, err = s.record(ctx, r, itemID, quantity, onyen, staffOnyen)
		return err
	})
	if err != nil {
		return nil, storeError("A problem occurred when recording the transaction", err)
	}
	s.committed(ctx, t)
	return t, nil
}

// AddItems returns or donates quantity units of an item.
func (s *LedgerService) AddItems(ctx context.Context, itemID string, quantity int, onyen, staffOnyen string) (*models.Transaction, error) {
	if quantity <= 0 {
		return nil, apperr.BadRequest("quantity must be greater than zero")
	}
	return s.CreateTransaction(ctx, itemID, quantity, onyen, staffOnyen)
}

// RemoveItems hands quantity units of an item to onyen, registering the
// recipient on first contact and updating their tally.
func (s *LedgerService) RemoveItems(ctx context.Context, itemID string, quantity int, onyen, staffOnyen string) (*models.Transaction, error) {
	if quantity <= 0 {
		return nil, apperr.BadRequest("quantity must be greater than zero")
	}

	var t *models.Transaction
	err := s.repo.WithTx(ctx, func(r repository.Repository) error {
		var err error
		if t, err = s.record(ctx, r, itemID, -quantity, onyen, staffOnyen); err != nil {
			return err
		}
		if err := r.EnsureUser(ctx, t.Onyen); err != nil {
			return err
		}
		return r.RecordItemsReceived(ctx, t.Onyen, quantity, t.CreatedAt)
	})
	if err != nil {
		return nil, storeError("A problem occurred when removing items", err)
	}
	s.committed(ctx, t)
	return t, nil
}

func (s *LedgerService) record(ctx context.Context, r repository.Repository, itemID string, quantity int, onyen, staffOnyen string) (*models.Transaction, error) {
	onyen = strings.TrimSpace(onyen)
	if onyen == "" {
		return nil, apperr.BadRequest("onyen is required")
	}
	if onyen == models.SystemOnyen {
		return nil, ErrReservedUser
	}
	if quantity == 0 {
		return nil, apperr.BadRequest("quantity must not be zero")
	}

	item, err := r.LockItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, apperr.BadRequest("item %s could not be retrieved", itemID)
	}
	if quantity < 0 && -quantity > item.Count {
		return nil, apperr.BadRequest("Not enough %s in stock: requested %d, only %d available", item.Name, -quantity, item.Count)
	}

	order := &models.Order{ID: uuid.New().String()}
	if err := r.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	t := &models.Transaction{
		OrderID:    order.ID,
		ItemID:     item.ID,
		ItemName:   item.Name,
		Count:      quantity,
		Onyen:      onyen,
		Actor:      models.ActorStaff,
		StaffOnyen: staffOnyen,
		Status:     models.StatusComplete,
	}
	if err := r.CreateTransaction(ctx, t); err != nil {
		return nil, err
	}

	if _, err := r.AdjustItemCount(ctx, item.ID, quantity); err != nil {
		if errors.Is(err, repository.ErrInsufficientStock) {
			return nil, apperr.BadRequest("Not enough %s in stock", item.Name)
		}
		return nil, err
	}
	return t, nil
}

func (s *LedgerService) committed(ctx context.Context, t *models.Transaction) {
	eventType, direction := models.EventTypeItemsAdded, "in"
	units := t.Count
	if t.Count < 0 {
		eventType, direction = models.EventTypeItemsRemoved, "out"
		units = -t.Count
	}

	util.TransactionsRecordedTotal.WithLabelValues(direction).Inc()
	util.ItemsMovedTotal.WithLabelValues(direction).Add(float64(units))

	s.logger.Info("Transaction recorded",
		zap.Int64("transaction_id", t.ID),
		zap.String("item_id", t.ItemID),
		zap.Int("count", t.Count),
		zap.String("onyen", t.Onyen),
		zap.String("staff_onyen", t.StaffOnyen))

	publish(ctx, s.publisher, s.logger, newLedgerEvent(eventType, t, s.now()))
}

// ListTransactions returns the whole ledger, newest first.
func (s *LedgerService) ListTransactions(ctx context.Context) ([]models.Transaction, error) {
	txs, err := s.repo.ListTransactions(ctx)
	if err != nil {
		return nil, storeError("A problem occurred when listing transactions", err)
	}
	return txs, nil
}

// DeleteAllTransactions clears the ledger.
func (s *LedgerService) DeleteAllTransactions(ctx context.Context) (int64, error) {
	var n int64
	err := s.repo.WithTx(ctx, func(r repository.Repository) error {
		var err error
		n, err = r.DeleteAllTransactions(ctx)
		return err
	})
	if err != nil {
		return 0, storeError("A problem occurred when deleting all transactions", err)
	}
	s.logger.Warn("All transactions deleted", zap.Int64("count", n))
	return n, nil
}
