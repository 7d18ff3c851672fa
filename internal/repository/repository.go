package repository

import (
	"context"
	"errors"
	"io"
	"time"

	"closet-service/internal/models"
)

var (
	// ErrNotFound is returned by updates and deletes that matched no row.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientStock is returned when a stock change would go below zero.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrReferenced is returned when a delete is blocked by dependent rows.
	ErrReferenced = errors.New("referenced by dependent rows")
)

// ItemRepository stores items and their size rows. Lookups return nil, nil
// when nothing matches.
type ItemRepository interface {
	GetItem(ctx context.Context, id string) (*models.Item, error)
	LockItem(ctx context.Context, id string) (*models.Item, error)
	FindItem(ctx context.Context, filter models.ItemFilter) (*models.Item, error)
	ListItems(ctx context.Context, filter models.ItemFilter) ([]models.Item, error)
	SearchItems(ctx context.Context, term string) ([]models.Item, error)
	CreateItem(ctx context.Context, item *models.Item) error
	UpdateItem(ctx context.Context, id string, upd models.ItemUpdate) error
	AdjustItemCount(ctx context.Context, id string, delta int) (int, error)
	DeleteItem(ctx context.Context, id string) error
	DeleteAllItems(ctx context.Context) (int64, error)
	DeleteOutOfStockItems(ctx context.Context) (int64, error)
}

// LedgerRepository stores orders and their transactions.
type LedgerRepository interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateTransaction(ctx context.Context, t *models.Transaction) error
	GetTransaction(ctx context.Context, id int64) (*models.Transaction, error)
	LockTransaction(ctx context.Context, id int64) (*models.Transaction, error)
	// UpdateTransactionStatus sets status. An empty staffOnyen or nil
	// returnDate leaves the stored value unchanged.
	UpdateTransactionStatus(ctx context.Context, id int64, status models.TransactionStatus, staffOnyen string, returnDate *time.Time) error
	DeleteTransaction(ctx context.Context, id int64) error
	ListTransactions(ctx context.Context) ([]models.Transaction, error)
	// ListOrderTransactions returns order-workflow rows in any of statuses,
	// restricted to onyen when it is non-empty.
	ListOrderTransactions(ctx context.Context, statuses []models.TransactionStatus, onyen string) ([]models.Transaction, error)
	HasOutstandingOrder(ctx context.Context, onyen string) (bool, error)
	MarkLateOrders(ctx context.Context, now time.Time) ([]models.Transaction, error)
	DeleteAllTransactions(ctx context.Context) (int64, error)
}

// UserRepository stores users.
type UserRepository interface {
	GetUser(ctx context.Context, onyen string) (*models.User, error)
	LockUser(ctx context.Context, onyen string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
	// EnsureUser creates onyen with role user unless it already exists.
	EnsureUser(ctx context.Context, onyen string) error
	UpdateUser(ctx context.Context, u *models.User) error
	DeleteUser(ctx context.Context, onyen string) error
	// CountAdmins counts human admins; the system user is excluded.
	CountAdmins(ctx context.Context) (int, error)
	RecordItemsReceived(ctx context.Context, onyen string, quantity int, at time.Time) error
	DeleteNonAdminUsers(ctx context.Context) (int64, error)
}

// Repository is the persistence handle services work against.
type Repository interface {
	ItemRepository
	LedgerRepository
	UserRepository
	// WithTx runs fn inside one database transaction. The transaction is
	// committed when fn returns nil and rolled back otherwise.
	WithTx(ctx context.Context, fn func(Repository) error) error
}

// Export tables
const (
	ExportShirts       = "shirts"
	ExportPants        = "pants"
	ExportShoes        = "shoes"
	ExportSuits        = "suits"
	ExportTransactions = "transactions"
	ExportUsers        = "users"
)

// Exporter streams a table dump as CSV with a header row.
type Exporter interface {
	ExportCSV(ctx context.Context, w io.Writer, table string) error
}

// AuditRepository persists the projection built by the audit worker.
type AuditRepository interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	RecordAudit(ctx context.Context, entry *models.AuditEntry) error
	ListAudit(ctx context.Context, onyen string, limit int) ([]models.AuditEntry, error)
}
