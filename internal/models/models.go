package models

import (
	"fmt"
	"strings"
	"time"
)

// Category is the kind of clothing an item is. It selects the item's size variant.
type Category string

const (
	CategoryShirt Category = "shirt"
	CategoryPant  Category = "pant"
	CategoryShoe  Category = "shoe"
	CategorySuit  Category = "suit"
)

// Categories lists every known category in display order.
var Categories = []Category{CategoryShirt, CategoryPant, CategoryShoe, CategorySuit}

// ParseCategory accepts the singular names and the plural spellings used by
// older CSV exports ("shirts", "pants", ...).
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "shirt", "shirts":
		return CategoryShirt, nil
	case "pant", "pants":
		return CategoryPant, nil
	case "shoe", "shoes":
		return CategoryShoe, nil
	case "suit", "suits":
		return CategorySuit, nil
	}
	return "", fmt.Errorf("unknown item category %q", s)
}

// Plural returns the table-style plural used in backup file names.
func (c Category) Plural() string {
	return string(c) + "s"
}

// Item represents a donated clothing item and its current stock.
type Item struct {
	ID       string   `db:"id" json:"id"`
	Name     string   `db:"name" json:"name"`
	Category Category `db:"category" json:"category"`
	Gender   string   `db:"gender" json:"gender"`
	Image    string   `db:"image" json:"image,omitempty"`
	Brand    string   `db:"brand" json:"brand"`
	Color    string   `db:"color" json:"color"`
	Count    int      `db:"count" json:"count"`
	Size     Size     `db:"-" json:"size"`
}

// ItemFilter selects items. Zero-valued fields do not constrain the match.
type ItemFilter struct {
	Name     string
	Category Category
	Gender   string
	Brand    string
	Colors   []string
	Size     Size
}

// ItemUpdate holds the item fields that may be edited directly. Stock count is
// deliberately absent: it only changes through transactions.
type ItemUpdate struct {
	Name   string `json:"name" binding:"required"`
	Gender string `json:"gender" binding:"required"`
	Image  string `json:"image"`
	Brand  string `json:"brand"`
	Color  string `json:"color" binding:"required"`
}

// Order groups the ledger transactions of one checkout.
type Order struct {
	ID        string    `db:"id" json:"id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Actor says who produced a transaction.
type Actor string

const (
	// ActorStaff marks give/take entries recorded by a person at the desk.
	ActorStaff Actor = "staff"
	// ActorOrder marks reservations created by the order workflow.
	ActorOrder Actor = "order"
)

// TransactionStatus values
type TransactionStatus string

const (
	StatusComplete  TransactionStatus = "complete"
	StatusPending   TransactionStatus = "pending"
	StatusInUse     TransactionStatus = "inUse"
	StatusLate      TransactionStatus = "late"
	StatusCancelled TransactionStatus = "cancelled"
)

// ActiveOrderStatuses are the statuses an order row has while it still holds stock.
var ActiveOrderStatuses = []TransactionStatus{StatusPending, StatusInUse, StatusLate}

// OutstandingStatuses are the statuses that block a user from placing another order.
var OutstandingStatuses = []TransactionStatus{StatusInUse, StatusLate}

// Transaction is a signed stock adjustment tied to an item and an order.
// Positive counts return stock, negative counts take it.
type Transaction struct {
	ID         int64             `db:"id" json:"id"`
	OrderID    string            `db:"order_id" json:"order_id"`
	ItemID     string            `db:"item_id" json:"item_id"`
	ItemName   string            `db:"item_name" json:"item_name"`
	Count      int               `db:"count" json:"count"`
	Onyen      string            `db:"onyen" json:"onyen"`
	Actor      Actor             `db:"actor" json:"actor"`
	StaffOnyen string            `db:"staff_onyen" json:"staff_onyen,omitempty"`
	Status     TransactionStatus `db:"status" json:"status"`
	ReturnDate *time.Time        `db:"return_date" json:"return_date,omitempty"`
	CreatedAt  time.Time         `db:"created_at" json:"created_at"`
}

// Overdue reports whether an in-use order row has passed its return date.
func (t *Transaction) Overdue(now time.Time) bool {
	return t.Status == StatusInUse && t.ReturnDate != nil && t.ReturnDate.Before(now)
}

// CartLine is one requested item in an order.
type CartLine struct {
	ItemID   string `json:"item_id" binding:"required"`
	Quantity int    `json:"quantity" binding:"required"`
}

// Role is a user's access level.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleUser      Role = "user"
	RoleVolunteer Role = "volunteer"
	RoleDisabled  Role = "disabled"
)

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleAdmin, RoleUser, RoleVolunteer, RoleDisabled:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// SystemOnyen is the reserved identity of the order workflow.
const SystemOnyen = "ORDER"

// User is a person known to the closet: staff or recipient.
type User struct {
	Onyen         string     `db:"onyen" json:"onyen"`
	Role          Role       `db:"role" json:"role"`
	PID           string     `db:"pid" json:"pid,omitempty"`
	Email         string     `db:"email" json:"email,omitempty"`
	FirstItemDate *time.Time `db:"first_item_date" json:"first_item_date,omitempty"`
	ItemsReceived int        `db:"items_received" json:"items_received"`
	System        bool       `db:"system" json:"system"`
}

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
