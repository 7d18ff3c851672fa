package models

import "time"

// Event types
const (
	EventTypeItemsAdded     = "ITEMS_ADDED"
	EventTypeItemsRemoved   = "ITEMS_REMOVED"
	EventTypeOrderCreated   = "ORDER_CREATED"
	EventTypeOrderExecuted  = "ORDER_EXECUTED"
	EventTypeOrderLate      = "ORDER_LATE"
	EventTypeOrderCompleted = "ORDER_COMPLETED"
	EventTypeOrderCancelled = "ORDER_CANCELLED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// LedgerEvent is published after a committed stock movement or order status change.
type LedgerEvent struct {
	BaseEvent
	OrderID       string            `json:"order_id"`
	TransactionID int64             `json:"transaction_id,omitempty"`
	Onyen         string            `json:"onyen"`
	StaffOnyen    string            `json:"staff_onyen,omitempty"`
	Status        TransactionStatus `json:"status,omitempty"`
	Lines         []LedgerLine      `json:"lines,omitempty"`
}

// LedgerLine represents one item movement inside an event.
type LedgerLine struct {
	ItemID   string `json:"item_id"`
	ItemName string `json:"item_name"`
	Count    int    `json:"count"`
}

// AuditEntry is the projection of a ledger event kept by the audit worker.
type AuditEntry struct {
	EventID    string    `db:"event_id" json:"event_id"`
	EventType  string    `db:"event_type" json:"event_type"`
	OrderID    string    `db:"order_id" json:"order_id"`
	Onyen      string    `db:"onyen" json:"onyen"`
	StaffOnyen string    `db:"staff_onyen" json:"staff_onyen,omitempty"`
	Units      int       `db:"units" json:"units"`
	OccurredAt time.Time `db:"occurred_at" json:"occurred_at"`
}
