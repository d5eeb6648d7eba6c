package models

import "time"

// Notification event types
const (
	EventTypeOrderPlaced = "ORDER_PLACED"
	EventTypeOrderPaid   = "ORDER_PAID"
)

// BaseEvent contains common fields for all notification events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent is published after an order is persisted. The notification
// worker turns it into an order-confirmation email.
type OrderPlacedEvent struct {
	BaseEvent
	OrderID    string  `json:"order_id"`
	Username   string  `json:"username"`
	Email      string  `json:"email"`
	TotalPrice float64 `json:"total_price"`
	ItemCount  int     `json:"item_count"`
}

// OrderPaidEvent is published after a verified webhook settles an order. The
// notification worker turns it into a payment-confirmation email.
type OrderPaidEvent struct {
	BaseEvent
	OrderID       string  `json:"order_id"`
	Username      string  `json:"username"`
	Email         string  `json:"email"`
	TotalPrice    float64 `json:"total_price"`
	TransactionID string  `json:"transaction_id"`
}
