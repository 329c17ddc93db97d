package store

import (
	"context"
	"errors"
	"time"

	"storefront-service/internal/models"
)

// ErrNotFound is returned when a referenced order or product does not
// exist at read time.
var ErrNotFound = errors.New("not found")

// Tx is the atomic read-check-write unit every inventory-affecting
// transition runs inside. Either everything a flow does through a Tx
// commits, or none of it does. Reads through a Tx return authoritative
// state (row-locked on postgres), never cached snapshots.
type Tx interface {
	// GetOrder loads an order with its items, locked for the duration
	// of the transaction.
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	// GetProduct loads a product locked for the duration of the
	// transaction.
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	// UpdateProductQty writes a new quantity for a product.
	UpdateProductQty(ctx context.Context, id string, qty int) error
	// InsertOrder persists a new order and its items.
	InsertOrder(ctx context.Context, o *models.Order) error
	// MarkStockApplied sets stock_applied and its timestamp.
	MarkStockApplied(ctx context.Context, orderID string, at time.Time) error
	// MarkPaid moves the order to Paid and records paid_at.
	MarkPaid(ctx context.Context, orderID string, at time.Time) error
	// MarkCancelled moves the order to Cancelled and sets
	// stock_restored. restoredAt is nil when there was nothing to
	// restore.
	MarkCancelled(ctx context.Context, orderID string, auto bool, restoredAt *time.Time) error
	// NextOrderSeq increments and returns the per-day order counter
	// for the given date key (YYYYMMDD).
	NextOrderSeq(ctx context.Context, dateKey string) (int, error)
}

// Store is the shared order+inventory store.
type Store interface {
	// RunTx executes fn inside one atomic transaction. On postgres,
	// serialization and deadlock failures are retried transparently.
	RunTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetOrder(ctx context.Context, id string) (*models.Order, error)
	ListOrders(ctx context.Context, limit int) ([]models.Order, error)
	// ListReservedBefore returns IDs of Reserved orders whose
	// reservation is older than cutoff and which were not already
	// auto-cancelled. Used by the expiry sweeper; the cancellation
	// itself re-validates inside its own transaction.
	ListReservedBefore(ctx context.Context, cutoff time.Time) ([]string, error)

	GetProduct(ctx context.Context, id string) (*models.Product, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	// UpdateProduct persists name, price, image and metadata. Quantity
	// is deliberately excluded: only the reconciliation flows mutate it.
	UpdateProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id string) error
	SetProductImage(ctx context.Context, id, url string) error

	Close() error
}
