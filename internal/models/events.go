package models

import "time"

// Event types
const (
	EventTypeOrderReserved  = "ORDER_RESERVED"
	EventTypeStockApplied   = "STOCK_APPLIED"
	EventTypeOrderPaid      = "ORDER_PAID"
	EventTypeOrderCancelled = "ORDER_CANCELLED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderEventItem represents line-item data carried in events
type OrderEventItem struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

// OrderReservedEvent published when an order is created in Reserved status
type OrderReservedEvent struct {
	BaseEvent
	OrderID    string           `json:"order_id"`
	TotalCents int64            `json:"total_cents"`
	Items      []OrderEventItem `json:"items"`
}

// StockAppliedEvent published after inventory was deducted for an order
type StockAppliedEvent struct {
	BaseEvent
	OrderID  string           `json:"order_id"`
	Items    []OrderEventItem `json:"items"`
	LowStock []LowStock       `json:"low_stock,omitempty"`
}

// OrderPaidEvent published when an order settles
type OrderPaidEvent struct {
	BaseEvent
	OrderID    string `json:"order_id"`
	TotalCents int64  `json:"total_cents"`
}

// OrderCancelledEvent published when an order is cancelled, manually or
// by the expiry sweeper
type OrderCancelledEvent struct {
	BaseEvent
	OrderID       string           `json:"order_id"`
	AutoCancelled bool             `json:"auto_cancelled"`
	StockRestored bool             `json:"stock_restored"`
	Items         []OrderEventItem `json:"items"`
}
