package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ItemStatus represents the preparation state of an order item
type ItemStatus string

const (
	StatusPending    ItemStatus = "PENDING"
	StatusInProgress ItemStatus = "IN_PROGRESS"
	StatusReady      ItemStatus = "READY"
	StatusServed     ItemStatus = "SERVED"
	StatusCancelled  ItemStatus = "CANCELLED"
)

// Valid reports whether s is a known item status
func (s ItemStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusReady, StatusServed, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible from s
func (s ItemStatus) Terminal() bool {
	return s == StatusServed || s == StatusCancelled
}

// PrepCategory decides which station prepares an item
type PrepCategory string

const (
	PrepKitchen PrepCategory = "kitchen"
	PrepBar     PrepCategory = "bar"
)

// Valid reports whether c names a preparation station
func (c PrepCategory) Valid() bool {
	return c == PrepKitchen || c == PrepBar
}

// PaymentMethod is how a table was settled
type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentCard PaymentMethod = "card"
)

// Valid reports whether m is an accepted payment method
func (m PaymentMethod) Valid() bool {
	return m == PaymentCash || m == PaymentCard
}

// OrderItem represents a single line of an order
type OrderItem struct {
	ID              string          `json:"id"`
	MenuItemID      string          `json:"menuItemId"`
	MenuItemName    string          `json:"menuItemName"`
	Quantity        int             `json:"quantity"`
	Price           decimal.Decimal `json:"price"`
	Category        PrepCategory    `json:"category"`
	Status          ItemStatus      `json:"status"`
	CancelledReason string          `json:"cancelledReason,omitempty"`
}

// LineTotal returns price times quantity
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Payment is the settlement record attached to every order of a paid table
type Payment struct {
	ID          string          `json:"id"`
	Method      PaymentMethod   `json:"method"`
	Amount      decimal.Decimal `json:"amount"`
	Discount    decimal.Decimal `json:"discount"`
	FinalAmount decimal.Decimal `json:"finalAmount"`
	PaidAt      time.Time       `json:"paidAt"`
	CashierID   string          `json:"cashierId"`
	CashierName string          `json:"cashierName"`
}

// Order represents a waiter ticket for one table
type Order struct {
	ID          string          `json:"id"`
	WaiterID    string          `json:"waiterId"`
	WaiterName  string          `json:"waiterName"`
	TableNumber int             `json:"tableNumber,omitempty"`
	Items       []OrderItem     `json:"items"`
	CreatedAt   time.Time       `json:"createdAt"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	IsPaid      bool            `json:"isPaid"`
	Payment     *Payment        `json:"payment,omitempty"`
	Branch      string          `json:"branchId"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// Clone returns a deep copy so callers may mutate items without touching the source
func (o Order) Clone() Order {
	c := o
	c.Items = append([]OrderItem(nil), o.Items...)
	if o.Payment != nil {
		p := *o.Payment
		c.Payment = &p
	}
	if o.CompletedAt != nil {
		t := *o.CompletedAt
		c.CompletedAt = &t
	}
	return c
}

// ItemByID returns the index of the item with the given id, or -1
func (o Order) ItemByID(id string) int {
	for i := range o.Items {
		if o.Items[i].ID == id {
			return i
		}
	}
	return -1
}

// CartLine is one entry of a waiter submission
type CartLine struct {
	MenuItemID string `json:"menuItemId"`
	Quantity   int    `json:"quantity"`
}

// CreateOrderRequest represents a waiter submission
type CreateOrderRequest struct {
	TableNumber int        `json:"tableNumber"`
	Items       []CartLine `json:"items"`
}

// Validate checks the shape of the request before any catalog lookup
func (r *CreateOrderRequest) Validate() error {
	if len(r.Items) == 0 {
		return &ValidationError{Field: "items", Message: "order must contain at least one item"}
	}
	if r.TableNumber < 1 {
		return &ValidationError{Field: "tableNumber", Message: "table number must be at least 1"}
	}
	for i, line := range r.Items {
		if line.MenuItemID == "" {
			return &ValidationError{Field: itemField(i, "menuItemId"), Message: "menu item id is required"}
		}
		if line.Quantity < 1 {
			return &ValidationError{Field: itemField(i, "quantity"), Message: "quantity must be at least 1"}
		}
	}
	return nil
}

// TransitionRequest asks for an item status change
type TransitionRequest struct {
	OrderID         string     `json:"-"`
	ItemID          string     `json:"-"`
	Status          ItemStatus `json:"status"`
	CancelledReason string     `json:"cancelledReason,omitempty"`
}

// PayRequest settles every unpaid order of a table
type PayRequest struct {
	TableNumber int             `json:"tableNumber"`
	Method      PaymentMethod   `json:"paymentMethod"`
	Discount    decimal.Decimal `json:"discount"`
}

// TableLedger is the derived view of a table's unpaid orders
type TableLedger struct {
	TableNumber int             `json:"tableNumber"`
	Orders      []Order         `json:"orders"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	ItemCount   int             `json:"itemCount"`
	OrderCount  int             `json:"orderCount"`
}
