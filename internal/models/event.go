package models

import "time"

// EventType names a real-time notification
type EventType string

const (
	EventNewOrder         EventType = "NEW_ORDER"
	EventOrderUpdated     EventType = "ORDER_UPDATED"
	EventOrdersMoved      EventType = "ORDERS_MOVED_TO_COMPLETED"
	EventPaymentCompleted EventType = "PAYMENT_COMPLETED"
	EventDayReset         EventType = "DAY_RESET"
	EventMenuUpdated      EventType = "MENU_UPDATED"
	EventUserCreated      EventType = "USER_CREATED"
	EventUserDeleted      EventType = "USER_DELETED"
)

// Event is the payload pushed to listeners of a branch
type Event struct {
	Type        EventType  `json:"type"`
	Branch      string     `json:"branchId"`
	Timestamp   time.Time  `json:"timestamp"`
	Order       *Order     `json:"order,omitempty"`
	Orders      []Order    `json:"orders,omitempty"`
	TableNumber int        `json:"tableNumber,omitempty"`
	Count       int        `json:"count,omitempty"`
	Menu        []MenuItem `json:"menu,omitempty"`
	User        *User      `json:"user,omitempty"`
	UserID      string     `json:"userId,omitempty"`
}

// NewOrderEvent announces a freshly created order
func NewOrderEvent(o Order) Event {
	return Event{Type: EventNewOrder, Order: &o}
}

// OrderUpdatedEvent announces an in-place order mutation
func OrderUpdatedEvent(o Order) Event {
	return Event{Type: EventOrderUpdated, Order: &o}
}

// OrdersMovedEvent announces an archive migration
func OrdersMovedEvent(count int) Event {
	return Event{Type: EventOrdersMoved, Count: count}
}

// PaymentCompletedEvent announces a settled table
func PaymentCompletedEvent(table int, orders []Order) Event {
	return Event{Type: EventPaymentCompleted, TableNumber: table, Orders: orders}
}

// DayResetEvent announces that the archive was cleared
func DayResetEvent() Event {
	return Event{Type: EventDayReset}
}

// MenuUpdatedEvent carries the full menu after a change
func MenuUpdatedEvent(menu []MenuItem) Event {
	return Event{Type: EventMenuUpdated, Menu: menu}
}

// UserCreatedEvent announces a new staff member
func UserCreatedEvent(u User) Event {
	u = u.Public()
	return Event{Type: EventUserCreated, User: &u}
}

// UserDeletedEvent announces a removed staff member
func UserDeletedEvent(id string) Event {
	return Event{Type: EventUserDeleted, UserID: id}
}
