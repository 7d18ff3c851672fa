package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"closet-service/internal/models"
	"closet-service/internal/repository"

	"github.com/stretchr/testify/mock"
)

// memRepo is an in-memory repository.Repository. WithTx snapshots the whole
// state and restores it when the callback fails.
type memRepo struct {
	items    map[string]models.Item
	orders   map[string]models.Order
	txs      map[int64]models.Transaction
	users    map[string]models.User
	nextTxID int64
	inTx     bool

	// failAdjust makes AdjustItemCount fail for the given item id.
	failAdjust map[string]error
}

var _ repository.Repository = (*memRepo)(nil)

func newMemRepo() *memRepo {
	return &memRepo{
		items:  map[string]models.Item{},
		orders: map[string]models.Order{},
		txs:    map[int64]models.Transaction{},
		users: map[string]models.User{
			models.SystemOnyen: {Onyen: models.SystemOnyen, Role: models.RoleAdmin, System: true},
		},
		failAdjust: map[string]error{},
	}
}

type memState struct {
	items    map[string]models.Item
	orders   map[string]models.Order
	txs      map[int64]models.Transaction
	users    map[string]models.User
	nextTxID int64
}

func (m *memRepo) snapshot() memState {
	st := memState{
		items:    make(map[string]models.Item, len(m.items)),
		orders:   make(map[string]models.Order, len(m.orders)),
		txs:      make(map[int64]models.Transaction, len(m.txs)),
		users:    make(map[string]models.User, len(m.users)),
		nextTxID: m.nextTxID,
	}
	for k, v := range m.items {
		st.items[k] = v
	}
	for k, v := range m.orders {
		st.orders[k] = v
	}
	for k, v := range m.txs {
		st.txs[k] = v
	}
	for k, v := range m.users {
		st.users[k] = v
	}
	return st
}

func (m *memRepo) WithTx(_ context.Context, fn func(repository.Repository) error) error {
	if m.inTx {
		return fn(m)
	}
	st := m.snapshot()
	m.inTx = true
	err := fn(m)
	m.inTx = false
	if err != nil {
		m.items, m.orders, m.txs, m.users, m.nextTxID = st.items, st.orders, st.txs, st.users, st.nextTxID
	}
	return err
}

func (m *memRepo) addItem(id, name string, c models.Category, count int) {
	var size models.Size
	switch c {
	case models.CategoryShirt:
		size = models.ShirtSize{Value: "M"}
	case models.CategoryShoe:
		size = models.ShoeSize{Value: "9"}
	case models.CategoryPant:
		size = models.PantSize{Waist: 32, Length: 30}
	case models.CategorySuit:
		size = models.SuitSize{Chest: 40, Sleeve: 33}
	}
	m.items[id] = models.Item{ID: id, Name: name, Category: c, Gender: "U", Color: "black", Count: count, Size: size}
}

func (m *memRepo) count(id string) int {
	return m.items[id].Count
}

// items

func (m *memRepo) GetItem(_ context.Context, id string) (*models.Item, error) {
	it, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	return &it, nil
}

func (m *memRepo) LockItem(ctx context.Context, id string) (*models.Item, error) {
	return m.GetItem(ctx, id)
}

func matches(it models.Item, f models.ItemFilter) bool {
	if f.Name != "" && it.Name != f.Name {
		return false
	}
	if f.Category != "" && it.Category != f.Category {
		return false
	}
	if f.Gender != "" && it.Gender != f.Gender {
		return false
	}
	if f.Brand != "" && it.Brand != f.Brand {
		return false
	}
	if len(f.Colors) > 0 {
		found := false
		for _, c := range f.Colors {
			if c == it.Color {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	if f.Size != nil && it.Size != f.Size {
		return false
	}
	return true
}

func (m *memRepo) sortedItems(keep func(models.Item) bool) []models.Item {
	out := []models.Item{}
	for _, it := range m.items {
		if keep(it) {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *memRepo) FindItem(_ context.Context, f models.ItemFilter) (*models.Item, error) {
	items := m.sortedItems(func(it models.Item) bool { return matches(it, f) })
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (m *memRepo) ListItems(_ context.Context, f models.ItemFilter) ([]models.Item, error) {
	return m.sortedItems(func(it models.Item) bool { return matches(it, f) }), nil
}

func (m *memRepo) SearchItems(_ context.Context, term string) ([]models.Item, error) {
	t := strings.ToLower(term)
	return m.sortedItems(func(it models.Item) bool {
		return it.ID == term ||
			strings.Contains(strings.ToLower(it.Name), t) ||
			strings.Contains(strings.ToLower(it.Brand), t) ||
			strings.Contains(strings.ToLower(it.Color), t)
	}), nil
}

func (m *memRepo) CreateItem(_ context.Context, item *models.Item) error {
	if item.Size == nil || item.Size.Category() != item.Category {
		return fmt.Errorf("item %s has no %s size", item.ID, item.Category)
	}
	if _, ok := m.items[item.ID]; ok {
		return fmt.Errorf("duplicate key %s", item.ID)
	}
	m.items[item.ID] = *item
	return nil
}

func (m *memRepo) UpdateItem(_ context.Context, id string, upd models.ItemUpdate) error {
	it, ok := m.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	it.Name, it.Gender, it.Image, it.Brand, it.Color = upd.Name, upd.Gender, upd.Image, upd.Brand, upd.Color
	m.items[id] = it
	return nil
}

func (m *memRepo) AdjustItemCount(_ context.Context, id string, delta int) (int, error) {
	if err := m.failAdjust[id]; err != nil {
		return 0, err
	}
	it, ok := m.items[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	if it.Count+delta < 0 {
		return 0, repository.ErrInsufficientStock
	}
	it.Count += delta
	m.items[id] = it
	return it.Count, nil
}

func (m *memRepo) referenced(itemID string) bool {
	for _, t := range m.txs {
		if t.ItemID == itemID {
			return true
		}
	}
	return false
}

func (m *memRepo) DeleteItem(_ context.Context, id string) error {
	if _, ok := m.items[id]; !ok {
		return repository.ErrNotFound
	}
	if m.referenced(id) {
		return fmt.Errorf("%w: transactions_item_id_fkey", repository.ErrReferenced)
	}
	delete(m.items, id)
	return nil
}

func (m *memRepo) deleteItemsWhere(keep func(models.Item) bool) (int64, error) {
	var ids []string
	for id, it := range m.items {
		if !keep(it) {
			if m.referenced(id) {
				return 0, fmt.Errorf("%w: transactions_item_id_fkey", repository.ErrReferenced)
			}
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		delete(m.items, id)
	}
	return int64(len(ids)), nil
}

func (m *memRepo) DeleteAllItems(_ context.Context) (int64, error) {
	return m.deleteItemsWhere(func(models.Item) bool { return false })
}

func (m *memRepo) DeleteOutOfStockItems(_ context.Context) (int64, error) {
	return m.deleteItemsWhere(func(it models.Item) bool { return it.Count > 0 })
}

// ledger

func (m *memRepo) CreateOrder(_ context.Context, order *models.Order) error {
	order.CreatedAt = time.Now()
	m.orders[order.ID] = *order
	return nil
}

func (m *memRepo) CreateTransaction(_ context.Context, t *models.Transaction) error {
	if _, ok := m.orders[t.OrderID]; !ok {
		return fmt.Errorf("%w: transactions_order_id_fkey", repository.ErrReferenced)
	}
	if _, ok := m.items[t.ItemID]; !ok {
		return fmt.Errorf("%w: transactions_item_id_fkey", repository.ErrReferenced)
	}
	m.nextTxID++
	t.ID = m.nextTxID
	t.CreatedAt = time.Now()
	m.txs[t.ID] = *t
	return nil
}

func (m *memRepo) GetTransaction(_ context.Context, id int64) (*models.Transaction, error) {
	t, ok := m.txs[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *memRepo) LockTransaction(ctx context.Context, id int64) (*models.Transaction, error) {
	return m.GetTransaction(ctx, id)
}

func (m *memRepo) UpdateTransactionStatus(_ context.Context, id int64, status models.TransactionStatus, staffOnyen string, returnDate *time.Time) error {
	t, ok := m.txs[id]
	if !ok {
		return repository.ErrNotFound
	}
	t.Status = status
	if staffOnyen != "" {
		t.StaffOnyen = staffOnyen
	}
	if returnDate != nil {
		d := *returnDate
		t.ReturnDate = &d
	}
	m.txs[id] = t
	return nil
}

func (m *memRepo) DeleteTransaction(_ context.Context, id int64) error {
	if _, ok := m.txs[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.txs, id)
	return nil
}

func (m *memRepo) sortedTxs(keep func(models.Transaction) bool) []models.Transaction {
	out := []models.Transaction{}
	for _, t := range m.txs {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (m *memRepo) ListTransactions(_ context.Context) ([]models.Transaction, error) {
	return m.sortedTxs(func(models.Transaction) bool { return true }), nil
}

func hasStatus(st models.TransactionStatus, statuses []models.TransactionStatus) bool {
	for _, s := range statuses {
		if s == st {
			return true
		}
	}
	return false
}

func (m *memRepo) ListOrderTransactions(_ context.Context, statuses []models.TransactionStatus, onyen string) ([]models.Transaction, error) {
	return m.sortedTxs(func(t models.Transaction) bool {
		return t.Actor == models.ActorOrder && hasStatus(t.Status, statuses) && (onyen == "" || t.Onyen == onyen)
	}), nil
}

func (m *memRepo) HasOutstandingOrder(_ context.Context, onyen string) (bool, error) {
	for _, t := range m.txs {
		if t.Actor == models.ActorOrder && t.Onyen == onyen && hasStatus(t.Status, models.OutstandingStatuses) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) MarkLateOrders(_ context.Context, now time.Time) ([]models.Transaction, error) {
	var promoted []models.Transaction
	for id, t := range m.txs {
		if t.Actor == models.ActorOrder && t.Overdue(now) {
			t.Status = models.StatusLate
			m.txs[id] = t
			promoted = append(promoted, t)
		}
	}
	return promoted, nil
}

func (m *memRepo) DeleteAllTransactions(_ context.Context) (int64, error) {
	n := int64(len(m.txs))
	m.txs = map[int64]models.Transaction{}
	m.orders = map[string]models.Order{}
	return n, nil
}

// users

func (m *memRepo) GetUser(_ context.Context, onyen string) (*models.User, error) {
	u, ok := m.users[onyen]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *memRepo) LockUser(ctx context.Context, onyen string) (*models.User, error) {
	return m.GetUser(ctx, onyen)
}

func (m *memRepo) ListUsers(_ context.Context) ([]models.User, error) {
	out := []models.User{}
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Onyen < out[j].Onyen })
	return out, nil
}

func (m *memRepo) CreateUser(_ context.Context, u *models.User) error {
	if _, ok := m.users[u.Onyen]; ok {
		return fmt.Errorf("duplicate key %s", u.Onyen)
	}
	m.users[u.Onyen] = *u
	return nil
}

func (m *memRepo) EnsureUser(_ context.Context, onyen string) error {
	if _, ok := m.users[onyen]; !ok {
		m.users[onyen] = models.User{Onyen: onyen, Role: models.RoleUser}
	}
	return nil
}

func (m *memRepo) UpdateUser(_ context.Context, u *models.User) error {
	cur, ok := m.users[u.Onyen]
	if !ok || cur.System {
		return repository.ErrNotFound
	}
	cur.Role, cur.PID, cur.Email = u.Role, u.PID, u.Email
	m.users[u.Onyen] = cur
	return nil
}

func (m *memRepo) DeleteUser(_ context.Context, onyen string) error {
	cur, ok := m.users[onyen]
	if !ok || cur.System {
		return repository.ErrNotFound
	}
	delete(m.users, onyen)
	return nil
}

func (m *memRepo) CountAdmins(_ context.Context) (int, error) {
	n := 0
	for _, u := range m.users {
		if u.Role == models.RoleAdmin && !u.System {
			n++
		}
	}
	return n, nil
}

func (m *memRepo) RecordItemsReceived(_ context.Context, onyen string, quantity int, at time.Time) error {
	u, ok := m.users[onyen]
	if !ok {
		return repository.ErrNotFound
	}
	u.ItemsReceived += quantity
	if u.FirstItemDate == nil {
		d := at
		u.FirstItemDate = &d
	}
	m.users[onyen] = u
	return nil
}

func (m *memRepo) DeleteNonAdminUsers(_ context.Context) (int64, error) {
	var n int64
	for onyen, u := range m.users {
		if u.Role != models.RoleAdmin && !u.System {
			delete(m.users, onyen)
			n++
		}
	}
	return n, nil
}

// memAudit is an in-memory repository.AuditRepository.
type memAudit struct {
	entries   []models.AuditEntry
	processed map[string]bool
	failWith  error
}

func newMemAudit() *memAudit {
	return &memAudit{processed: map[string]bool{}}
}

func (a *memAudit) IsEventProcessed(_ context.Context, eventID string) (bool, error) {
	return a.processed[eventID], nil
}

func (a *memAudit) RecordAudit(_ context.Context, entry *models.AuditEntry) error {
	if a.failWith != nil {
		return a.failWith
	}
	a.entries = append(a.entries, *entry)
	a.processed[entry.EventID] = true
	return nil
}

func (a *memAudit) ListAudit(_ context.Context, onyen string, limit int) ([]models.AuditEntry, error) {
	var out []models.AuditEntry
	for i := len(a.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if onyen == "" || a.entries[i].Onyen == onyen {
			out = append(out, a.entries[i])
		}
	}
	return out, nil
}

// stubExporter writes a fixed body for any table.
type stubExporter struct {
	tables []string
	err    error
}

func (e *stubExporter) ExportCSV(_ context.Context, w io.Writer, table string) error {
	if e.err != nil {
		return e.err
	}
	e.tables = append(e.tables, table)
	_, err := io.WriteString(w, "id\n1\n")
	return err
}

// mocks

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishLedgerEvent(ctx context.Context, event *models.LedgerEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type mockIdempotency struct {
	mock.Mock
}

func (m *mockIdempotency) GetIdempotencyKey(ctx context.Context, key string) (string, bool, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *mockIdempotency) SetIdempotencyKey(ctx context.Context, key, value string, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

type mockLocker struct {
	mock.Mock
}

func (m *mockLocker) AcquireLock(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	args := m.Called(ctx, name, ttl)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *mockLocker) ReleaseLock(ctx context.Context, name, token string) error {
	args := m.Called(ctx, name, token)
	return args.Error(0)
}

var errStoreDown = errors.New("connection refused")

func eventOfType(eventType string) interface{} {
	return mock.MatchedBy(func(e *models.LedgerEvent) bool { return e.EventType == eventType })
}
