package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"storefront-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const orderColumns = `
	id, status, subtotal_cents, delivery_cents, total_cents,
	customer_name AS "customer.name", customer_phone AS "customer.phone",
	customer_email AS "customer.email", customer_address AS "customer.address",
	customer_note AS "customer.note",
	delivery_type, stock_applied, stock_applied_at, stock_restored,
	stock_restored_at, auto_cancelled, reserved_at, paid_at, created_at, updated_at`

// GetOrder retrieves an order with its items
func (s *Postgres) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return getOrder(ctx, s.db, id, false)
}

// ListOrders retrieves recent orders, newest first, without items
func (s *Postgres) ListOrders(ctx context.Context, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT "+orderColumns+" FROM orders ORDER BY created_at DESC LIMIT $1", limit)
	return orders, err
}

// ListReservedBefore returns IDs of stale Reserved orders
func (s *Postgres) ListReservedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `
		SELECT id FROM orders
		WHERE status = $1 AND auto_cancelled = FALSE AND reserved_at < $2
		ORDER BY reserved_at`,
		models.StatusReserved, cutoff)
	return ids, err
}

type queryer interface {
	sqlx.QueryerContext
	sqlx.ExecerContext
}

func getOrder(ctx context.Context, q queryer, id string, forUpdate bool) (*models.Order, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE id = $1"
	if forUpdate {
		query += " FOR UPDATE"
	}

	var order models.Order
	err := sqlx.GetContext(ctx, q, &order, query, id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	err = sqlx.SelectContext(ctx, q, &order.Items,
		"SELECT order_id, product_id, name, unit_price_cents, qty FROM order_items WHERE order_id = $1", id)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// pgTx implements Tx on top of a sqlx transaction. Order and product
// reads take row locks so the check-then-write of the reconciliation
// flows is serialized per row.
type pgTx struct {
	tx *sqlx.Tx
}

var _ Tx = (*pgTx)(nil)

func (t *pgTx) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return getOrder(ctx, t.tx, id, true)
}

func (t *pgTx) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := t.tx.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1 FOR UPDATE", id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (t *pgTx) UpdateProductQty(ctx context.Context, id string, qty int) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE products SET qty = $2, updated_at = NOW() WHERE id = $1", id, qty)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (t *pgTx) InsertOrder(ctx context.Context, o *models.Order) error {
	query := `
		INSERT INTO orders (
			id, status, subtotal_cents, delivery_cents, total_cents,
			customer_name, customer_phone, customer_email, customer_address, customer_note,
			delivery_type, reserved_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`

	row := t.tx.QueryRowxContext(ctx, query,
		o.ID, o.Status, o.SubtotalCents, o.DeliveryCents, o.TotalCents,
		o.Customer.Name, o.Customer.Phone, o.Customer.Email, o.Customer.Address, o.Customer.Note,
		o.DeliveryType, o.ReservedAt)
	if err := row.Scan(&o.CreatedAt, &o.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range o.Items {
		o.Items[i].OrderID = o.ID
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, name, unit_price_cents, qty)
			VALUES ($1, $2, $3, $4, $5)`,
			o.ID, o.Items[i].ProductID, o.Items[i].Name, o.Items[i].UnitPriceCents, o.Items[i].Qty)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}
	return nil
}

func (t *pgTx) MarkStockApplied(ctx context.Context, orderID string, at time.Time) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE orders
		SET stock_applied = TRUE, stock_applied_at = $2, updated_at = NOW()
		WHERE id = $1`,
		orderID, at)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (t *pgTx) MarkPaid(ctx context.Context, orderID string, at time.Time) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, paid_at = $3, updated_at = NOW()
		WHERE id = $1`,
		orderID, models.StatusPaid, at)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (t *pgTx) MarkCancelled(ctx context.Context, orderID string, auto bool, restoredAt *time.Time) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, auto_cancelled = auto_cancelled OR $3,
		    stock_restored = TRUE, stock_restored_at = COALESCE($4, stock_restored_at),
		    updated_at = NOW()
		WHERE id = $1`,
		orderID, models.StatusCancelled, auto, restoredAt)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (t *pgTx) NextOrderSeq(ctx context.Context, dateKey string) (int, error) {
	var seq int
	err := t.tx.GetContext(ctx, &seq, `
		INSERT INTO order_counters (date_key, current)
		VALUES ($1, 1)
		ON CONFLICT (date_key) DO UPDATE SET current = order_counters.current + 1
		RETURNING current`,
		dateKey)
	return seq, err
}
