package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"closet-service/internal/apperr"
	"closet-service/internal/models"
	"closet-service/internal/repository"
	"closet-service/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// OrderConfig holds the business settings of the order workflow.
type OrderConfig struct {
	ReturnWindow   time.Duration
	IdempotencyTTL time.Duration
}

// OrderService handles order business logic
type OrderService struct {
	repo        repository.Repository
	idempotency IdempotencyStore
	publisher   Publisher
	cfg         OrderConfig
	logger      *zap.Logger
	now         func() time.Time
}

// NewOrderService creates a new order service. idempotency and publisher may be nil.
func NewOrderService(
	repo repository.Repository,
	idempotency IdempotencyStore,
	publisher Publisher,
	cfg OrderConfig,
) *OrderService {
	return &OrderService{
		repo:        repo,
		idempotency: idempotency,
		publisher:   publisher,
		cfg:         cfg,
		logger:      util.GetLogger(),
		now:         time.Now,
	}
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	Onyen          string            `json:"onyen"`
	Items          []models.CartLine `json:"items" binding:"required,min=1,dive"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
}

// CreateOrderResponse represents the response after creating an order
type CreateOrderResponse struct {
	OrderID      string               `json:"order_id"`
	Transactions []models.Transaction `json:"transactions,omitempty"`
	Replayed     bool                 `json:"replayed,omitempty"`
}

// coalesceCart sums quantities per item and drops lines that end up empty.
// Lines come back sorted by item id so concurrent carts lock rows in the
// same order.
func coalesceCart(cart []models.CartLine) ([]models.CartLine, error) {
	totals := make(map[string]int, len(cart))
	for _, line := range cart {
		id := strings.TrimSpace(line.ItemID)
		if id == "" {
			return nil, apperr.BadRequest("every cart line needs an item id")
		}
		totals[id] += line.Quantity
	}

	lines := make([]models.CartLine, 0, len(totals))
	for id, qty := range totals {
		if qty > 0 {
			lines = append(lines, models.CartLine{ItemID: id, Quantity: qty})
		}
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ItemID < lines[j].ItemID })

	if len(lines) == 0 {
		return nil, apperr.BadRequest("the cart is empty")
	}
	return lines, nil
}

// CreateOrder reserves every line of the cart for req.Onyen. Either every
// line is reserved or nothing is: the order, its transactions and the stock
// decrements share one database transaction.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	start := time.Now()
	defer func() {
		util.OrderCreateLatency.Observe(time.Since(start).Seconds())
	}()

	onyen := strings.TrimSpace(req.Onyen)
	if onyen == "" {
		return nil, apperr.BadRequest("onyen is required")
	}
	if onyen == models.SystemOnyen {
		return nil, ErrReservedUser
	}

	lines, err := coalesceCart(req.Items)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_cart").Inc()
		return nil, err
	}

	if req.IdempotencyKey != "" && s.idempotency != nil {
		orderID, ok, err := s.idempotency.GetIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			s.logger.Warn("Idempotency lookup failed", zap.Error(err))
		} else if ok {
			s.logger.Info("Duplicate order request detected",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.String("order_id", orderID))
			return &CreateOrderResponse{OrderID: orderID, Replayed: true}, nil
		}
	}

	order := &models.Order{ID: uuid.New().String()}
	var txs []models.Transaction

	err = s.repo.WithTx(ctx, func(r repository.Repository) error {
		txs = txs[:0]

		if err := r.EnsureUser(ctx, onyen); err != nil {
			return err
		}
		if _, err := r.LockUser(ctx, onyen); err != nil {
			return err
		}

		outstanding, err := r.HasOutstandingOrder(ctx, onyen)
		if err != nil {
			return err
		}
		if outstanding {
			return apperr.BadRequest("%s already has items checked out; return your outstanding items before placing a new order", onyen)
		}

		if err := r.CreateOrder(ctx, order); err != nil {
			return err
		}

		for _, line := range lines {
			t, err := s.reserveLine(ctx, r, order.ID, onyen, line)
			if err != nil {
				return err
			}
			txs = append(txs, *t)
		}
		return nil
	})
	if err != nil {
		reason := "store_error"
		if apperr.IsBadRequest(err) {
			reason = "rejected"
		}
		util.OrdersFailedTotal.WithLabelValues(reason).Inc()
		s.logger.Info("Order rejected", zap.String("onyen", onyen), zap.Error(err))
		return nil, storeError("A problem occurred when creating the order", err)
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("onyen", onyen),
		zap.Int("lines", len(txs)))

	if req.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.SetIdempotencyKey(ctx, req.IdempotencyKey, order.ID, s.cfg.IdempotencyTTL); err != nil {
			s.logger.Warn("Failed to store idempotency key", zap.Error(err))
		}
	}

	publish(ctx, s.publisher, s.logger, s.orderCreatedEvent(order.ID, onyen, txs))

	return &CreateOrderResponse{OrderID: order.ID, Transactions: txs}, nil
}

func (s *OrderService) reserveLine(ctx context.Context, r repository.Repository, orderID, onyen string, line models.CartLine) (*models.Transaction, error) {
	item, err := r.LockItem(ctx, line.ItemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, apperr.BadRequest("item %s could not be retrieved", line.ItemID)
	}
	if line.Quantity > item.Count {
		return nil, apperr.BadRequest("Not enough %s in stock: requested %d, only %d available (short by %d)",
			item.Name, line.Quantity, item.Count, line.Quantity-item.Count)
	}

	t := &models.Transaction{
		OrderID:  orderID,
		ItemID:   item.ID,
		ItemName: item.Name,
		Count:    -line.Quantity,
		Onyen:    onyen,
		Actor:    models.ActorOrder,
		Status:   models.StatusPending,
	}
	if err := r.CreateTransaction(ctx, t); err != nil {
		return nil, err
	}

	if _, err := r.AdjustItemCount(ctx, item.ID, -line.Quantity); err != nil {
		if errors.Is(err, repository.ErrInsufficientStock) {
			return nil, apperr.BadRequest("Not enough %s in stock", item.Name)
		}
		return nil, err
	}
	return t, nil
}

func (s *OrderService) orderCreatedEvent(orderID, onyen string, txs []models.Transaction) *models.LedgerEvent {
	lines := make([]models.LedgerLine, 0, len(txs))
	for _, t := range txs {
		lines = append(lines, models.LedgerLine{ItemID: t.ItemID, ItemName: t.ItemName, Count: t.Count})
	}
	return &models.LedgerEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCreated,
			Timestamp: s.now(),
		},
		OrderID: orderID,
		Onyen:   onyen,
		Status:  models.StatusPending,
		Lines:   lines,
	}
}

// GetOrder returns the order row with id.
func (s *OrderService) GetOrder(ctx context.Context, id int64) (*models.Transaction, error) {
	t, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return nil, storeError("A problem occurred when retrieving the order", err)
	}
	if t == nil || t.Actor != models.ActorOrder {
		return nil, apperr.BadRequest("order %d could not be retrieved", id)
	}
	return t, nil
}

// transition describes one edge of the order state machine.
type transition struct {
	name      string
	from      []models.TransactionStatus
	to        models.TransactionStatus
	eventType string
	restock   bool
}

var (
	executeTransition = transition{
		name:      "ExecuteOrder",
		from:      []models.TransactionStatus{models.StatusPending},
		to:        models.StatusInUse,
		eventType: models.EventTypeOrderExecuted,
	}
	lateTransition = transition{
		name:      "MarkOrderLate",
		from:      []models.TransactionStatus{models.StatusInUse},
		to:        models.StatusLate,
		eventType: models.EventTypeOrderLate,
	}
	completeTransition = transition{
		name:      "CompleteOrder",
		from:      models.ActiveOrderStatuses,
		to:        models.StatusComplete,
		eventType: models.EventTypeOrderCompleted,
	}
	cancelTransition = transition{
		name:      "CancelOrder",
		from:      models.ActiveOrderStatuses,
		to:        models.StatusCancelled,
		eventType: models.EventTypeOrderCancelled,
		restock:   true,
	}
)

func (tr transition) allows(st models.TransactionStatus) bool {
	for _, f := range tr.from {
		if f == st {
			return true
		}
	}
	return false
}

// ExecuteOrder hands a pending order to its requester and starts the return clock.
func (s *OrderService) ExecuteOrder(ctx context.Context, id int64) (*models.Transaction, error) {
	due := s.now().Add(s.cfg.ReturnWindow)
	return s.apply(ctx, id, executeTransition, "", &due)
}

// MarkOrderLate flags an in-use order as late.
func (s *OrderService) MarkOrderLate(ctx context.Context, id int64) (*models.Transaction, error) {
	return s.apply(ctx, id, lateTransition, "", nil)
}

// CompleteOrder closes an order as returned or kept.
func (s *OrderService) CompleteOrder(ctx context.Context, id int64, adminOnyen string) (*models.Transaction, error) {
	if strings.TrimSpace(adminOnyen) == "" {
		return nil, apperr.BadRequest("the closing admin is required")
	}
	return s.apply(ctx, id, completeTransition, adminOnyen, nil)
}

// CancelOrder closes an order and puts its reserved units back in stock.
func (s *OrderService) CancelOrder(ctx context.Context, id int64, adminOnyen string) (*models.Transaction, error) {
	if strings.TrimSpace(adminOnyen) == "" {
		return nil, apperr.BadRequest("the closing admin is required")
	}
	return s.apply(ctx, id, cancelTransition, adminOnyen, nil)
}

func (s *OrderService) apply(ctx context.Context, id int64, tr transition, staffOnyen string, returnDate *time.Time) (t *models.Transaction, err error) {
	ctx, span := util.StartSpan(ctx, "OrderService."+tr.name, attribute.Int64("transaction_id", id))
	defer func() { util.EndSpan(span, err) }()

	err = s.repo.WithTx(ctx, func(r repository.Repository) error {
		var err error
		t, err = r.LockTransaction(ctx, id)
		if err != nil {
			return err
		}
		if t == nil || t.Actor != models.ActorOrder {
			return apperr.BadRequest("order %d could not be retrieved", id)
		}
		if !tr.allows(t.Status) {
			return apperr.BadRequest("order %d is %s and cannot be marked %s", id, t.Status, tr.to)
		}

		if err := r.UpdateTransactionStatus(ctx, id, tr.to, staffOnyen, returnDate); err != nil {
			return err
		}
		if tr.restock {
			if _, err := r.AdjustItemCount(ctx, t.ItemID, -t.Count); err != nil {
				return err
			}
		}

		t.Status = tr.to
		if staffOnyen != "" {
			t.StaffOnyen = staffOnyen
		}
		if returnDate != nil {
			t.ReturnDate = returnDate
		}
		return nil
	})
	if err != nil {
		return nil, storeError("A problem occurred when updating the order", err)
	}

	util.OrderTransitionsTotal.WithLabelValues(string(tr.to)).Inc()
	s.logger.Info("Order updated",
		zap.Int64("transaction_id", t.ID),
		zap.String("order_id", t.OrderID),
		zap.String("status", string(t.Status)))

	publish(ctx, s.publisher, s.logger, newLedgerEvent(tr.eventType, t, s.now()))
	return t, nil
}

// DeleteOrder hard-deletes one order row.
func (s *OrderService) DeleteOrder(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(r repository.Repository) error {
		t, err := r.LockTransaction(ctx, id)
		if err != nil {
			return err
		}
		if t == nil || t.Actor != models.ActorOrder {
			return apperr.BadRequest("order %d could not be retrieved", id)
		}
		return r.DeleteTransaction(ctx, id)
	})
	if err != nil {
		return storeError("A problem occurred when deleting the order", err)
	}
	s.logger.Info("Order deleted", zap.Int64("transaction_id", id))
	return nil
}

// PromoteLateOrders marks every in-use order row past its return date as
// late and returns how many were promoted.
func (s *OrderService) PromoteLateOrders(ctx context.Context) (int, error) {
	promoted, err := s.repo.MarkLateOrders(ctx, s.now())
	if err != nil {
		return 0, storeError("A problem occurred when checking for late orders", err)
	}
	if len(promoted) == 0 {
		return 0, nil
	}

	util.OrdersMarkedLateTotal.Add(float64(len(promoted)))
	s.logger.Info("Orders marked late", zap.Int("count", len(promoted)))
	for i := range promoted {
		publish(ctx, s.publisher, s.logger, newLedgerEvent(models.EventTypeOrderLate, &promoted[i], s.now()))
	}
	return len(promoted), nil
}

// ListActiveOrders returns every pending, in-use or late order row. Overdue
// rows are promoted to late first, so they are reported as late.
func (s *OrderService) ListActiveOrders(ctx context.Context) ([]models.Transaction, error) {
	if _, err := s.PromoteLateOrders(ctx); err != nil {
		return nil, err
	}
	txs, err := s.repo.ListOrderTransactions(ctx, models.ActiveOrderStatuses, "")
	if err != nil {
		return nil, storeError("A problem occurred when listing orders", err)
	}
	return txs, nil
}

// ListUserOrders returns every order row placed by onyen.
func (s *OrderService) ListUserOrders(ctx context.Context, onyen string) ([]models.Transaction, error) {
	if strings.TrimSpace(onyen) == "" {
		return nil, apperr.BadRequest("onyen is required")
	}
	if _, err := s.PromoteLateOrders(ctx); err != nil {
		return nil, err
	}
	all := []models.TransactionStatus{
		models.StatusPending, models.StatusInUse, models.StatusLate,
		models.StatusComplete, models.StatusCancelled,
	}
	txs, err := s.repo.ListOrderTransactions(ctx, all, onyen)
	if err != nil {
		return nil, storeError("A problem occurred when listing orders", err)
	}
	return txs, nil
}
