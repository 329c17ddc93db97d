package models

import "time"

// Product represents a product in the catalog. Qty is mutated only by
// the stock application and cancellation-restore flows.
type Product struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	PriceCents  int64     `db:"price_cents" json:"price_cents"`
	Qty         int       `db:"qty" json:"qty"`
	Image       string    `db:"image" json:"image,omitempty"`
	Category    string    `db:"category" json:"category,omitempty"`
	Brand       string    `db:"brand" json:"brand,omitempty"`
	WeightGrams int       `db:"weight_grams" json:"weight_grams,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Customer holds the contact details captured with an order. The
// postgres store aliases customer_* columns into the nested struct
// (customer_name AS "customer.name").
type Customer struct {
	Name    string `db:"name" json:"name"`
	Phone   string `db:"phone" json:"phone"`
	Email   string `db:"email" json:"email"`
	Address string `db:"address" json:"address,omitempty"`
	Note    string `db:"note" json:"note,omitempty"`
}

// OrderItem is a line item with the product name and unit price
// captured at reservation time.
type OrderItem struct {
	OrderID        string `db:"order_id" json:"-"`
	ProductID      string `db:"product_id" json:"product_id"`
	Name           string `db:"name" json:"name"`
	UnitPriceCents int64  `db:"unit_price_cents" json:"unit_price_cents"`
	Qty            int    `db:"qty" json:"qty"`
}

// Order represents a customer order. The readable ID is produced from a
// per-day counter at reservation time (e.g. R-20260827-001).
type Order struct {
	ID              string      `db:"id" json:"id"`
	Status          OrderStatus `db:"status" json:"status"`
	Items           []OrderItem `db:"-" json:"items"`
	SubtotalCents   int64       `db:"subtotal_cents" json:"subtotal_cents"`
	DeliveryCents   int64       `db:"delivery_cents" json:"delivery_cents"`
	TotalCents      int64       `db:"total_cents" json:"total_cents"`
	Customer        Customer    `db:"customer" json:"customer"`
	DeliveryType    string      `db:"delivery_type" json:"delivery_type"`
	StockApplied    bool        `db:"stock_applied" json:"stock_applied"`
	StockAppliedAt  *time.Time  `db:"stock_applied_at" json:"stock_applied_at,omitempty"`
	StockRestored   bool        `db:"stock_restored" json:"stock_restored"`
	StockRestoredAt *time.Time  `db:"stock_restored_at" json:"stock_restored_at,omitempty"`
	AutoCancelled   bool        `db:"auto_cancelled" json:"auto_cancelled"`
	ReservedAt      time.Time   `db:"reserved_at" json:"reserved_at"`
	PaidAt          *time.Time  `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at" json:"updated_at"`
}

// Delivery types
const (
	DeliveryTypePickup   = "pickup"
	DeliveryTypeDelivery = "delivery"
)

// LowStock names a product left at or below the low-stock threshold
// after a stock application.
type LowStock struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Qty       int    `json:"qty"`
}
