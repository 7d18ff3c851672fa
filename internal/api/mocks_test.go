package api

import (
	"context"
	"io"

	"closet-service/internal/models"
	"closet-service/internal/service"

	"github.com/stretchr/testify/mock"
)

type mockItems struct{ mock.Mock }

func (m *mockItems) GetItem(ctx context.Context, id string) (*models.Item, error) {
	args := m.Called(ctx, id)
	item, _ := args.Get(0).(*models.Item)
	return item, args.Error(1)
}

func (m *mockItems) ListItems(ctx context.Context, filter models.ItemFilter) ([]models.Item, error) {
	args := m.Called(ctx, filter)
	items, _ := args.Get(0).([]models.Item)
	return items, args.Error(1)
}

func (m *mockItems) Search(ctx context.Context, term string) ([]models.Item, error) {
	args := m.Called(ctx, term)
	items, _ := args.Get(0).([]models.Item)
	return items, args.Error(1)
}

func (m *mockItems) CreateItem(ctx context.Context, in service.CreateItemInput) (*models.Item, error) {
	args := m.Called(ctx, in)
	item, _ := args.Get(0).(*models.Item)
	return item, args.Error(1)
}

func (m *mockItems) EditItem(ctx context.Context, id string, upd models.ItemUpdate) (*models.Item, error) {
	args := m.Called(ctx, id, upd)
	item, _ := args.Get(0).(*models.Item)
	return item, args.Error(1)
}

func (m *mockItems) DeleteItem(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockItems) DeleteAllItems(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockItems) DeleteOutOfStock(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockItems) ImportCSV(ctx context.Context, data []byte, opts service.ImportOptions) (int, error) {
	args := m.Called(ctx, data, opts)
	return args.Int(0), args.Error(1)
}

type mockLedger struct{ mock.Mock }

func (m *mockLedger) AddItems(ctx context.Context, itemID string, quantity int, onyen, staffOnyen string) (*models.Transaction, error) {
	args := m.Called(ctx, itemID, quantity, onyen, staffOnyen)
	t, _ := args.Get(0).(*models.Transaction)
	return t, args.Error(1)
}

func (m *mockLedger) RemoveItems(ctx context.Context, itemID string, quantity int, onyen, staffOnyen string) (*models.Transaction, error) {
	args := m.Called(ctx, itemID, quantity, onyen, staffOnyen)
	t, _ := args.Get(0).(*models.Transaction)
	return t, args.Error(1)
}

func (m *mockLedger) ListTransactions(ctx context.Context) ([]models.Transaction, error) {
	args := m.Called(ctx)
	txs, _ := args.Get(0).([]models.Transaction)
	return txs, args.Error(1)
}

func (m *mockLedger) DeleteAllTransactions(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type mockOrders struct{ mock.Mock }

func (m *mockOrders) CreateOrder(ctx context.Context, req *service.CreateOrderRequest) (*service.CreateOrderResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*service.CreateOrderResponse)
	return resp, args.Error(1)
}

func (m *mockOrders) GetOrder(ctx context.Context, id int64) (*models.Transaction, error) {
	args := m.Called(ctx, id)
	t, _ := args.Get(0).(*models.Transaction)
	return t, args.Error(1)
}

func (m *mockOrders) ExecuteOrder(ctx context.Context, id int64) (*models.Transaction, error) {
	args := m.Called(ctx, id)
	t, _ := args.Get(0).(*models.Transaction)
	return t, args.Error(1)
}

func (m *mockOrders) MarkOrderLate(ctx context.Context, id int64) (*models.Transaction, error) {
	args := m.Called(ctx, id)
	t, _ := args.Get(0).(*models.Transaction)
	return t, args.Error(1)
}

func (m *mockOrders) CompleteOrder(ctx context.Context, id int64, adminOnyen string) (*models.Transaction, error) {
	args := m.Called(ctx, id, adminOnyen)
	t, _ := args.Get(0).(*models.Transaction)
	return t, args.Error(1)
}

func (m *mockOrders) CancelOrder(ctx context.Context, id int64, adminOnyen string) (*models.Transaction, error) {
	args := m.Called(ctx, id, adminOnyen)
	t, _ := args.Get(0).(*models.Transaction)
	return t, args.Error(1)
}

func (m *mockOrders) DeleteOrder(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockOrders) ListActiveOrders(ctx context.Context) ([]models.Transaction, error) {
	args := m.Called(ctx)
	txs, _ := args.Get(0).([]models.Transaction)
	return txs, args.Error(1)
}

func (m *mockOrders) ListUserOrders(ctx context.Context, onyen string) ([]models.Transaction, error) {
	args := m.Called(ctx, onyen)
	txs, _ := args.Get(0).([]models.Transaction)
	return txs, args.Error(1)
}

type mockUsers struct{ mock.Mock }

func (m *mockUsers) Role(ctx context.Context, onyen string) (models.Role, error) {
	args := m.Called(ctx, onyen)
	return args.Get(0).(models.Role), args.Error(1)
}

func (m *mockUsers) GetUser(ctx context.Context, onyen string) (*models.User, error) {
	args := m.Called(ctx, onyen)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *mockUsers) ListUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]models.User)
	return users, args.Error(1)
}

func (m *mockUsers) CreateUser(ctx context.Context, in service.UserInput) (*models.User, error) {
	args := m.Called(ctx, in)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *mockUsers) EditUser(ctx context.Context, in service.UserInput) (*models.User, error) {
	args := m.Called(ctx, in)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *mockUsers) DeleteUser(ctx context.Context, onyen string) error {
	return m.Called(ctx, onyen).Error(0)
}

func (m *mockUsers) ImportUsersCSV(ctx context.Context, data []byte, hasHeader bool) (int, error) {
	args := m.Called(ctx, data, hasHeader)
	return args.Int(0), args.Error(1)
}

func (m *mockUsers) ClearUsers(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type mockBackup struct{ mock.Mock }

func (m *mockBackup) FileName(table string) string {
	return m.Called(table).String(0)
}

func (m *mockBackup) Export(ctx context.Context, w io.Writer, table string) error {
	args := m.Called(ctx, w, table)
	if body := args.String(0); body != "" {
		_, _ = io.WriteString(w, body)
	}
	return args.Error(1)
}

type mockAudit struct{ mock.Mock }

func (m *mockAudit) ListAudit(ctx context.Context, onyen string, limit int) ([]models.AuditEntry, error) {
	args := m.Called(ctx, onyen, limit)
	entries, _ := args.Get(0).([]models.AuditEntry)
	return entries, args.Error(1)
}
