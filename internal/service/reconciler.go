package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/store"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Reconciler owns the order/stock reconciliation transitions: applying
// stock for a reserved order, settling it, cancelling it, and expiring
// stale reservations. Every inventory-affecting transition runs inside
// one store transaction and re-reads authoritative state there;
// idempotency comes from the stock_applied/stock_restored flags
// checked at the start of each transaction, not from caller-side
// locking.
type Reconciler struct {
	store             store.Store
	publisher         EventPublisher
	logger            *zap.Logger
	lowStockThreshold int
	reservationTTL    time.Duration
}

// NewReconciler creates a reconciler. publisher may be nil when no
// event stream is wired (tests, one-off tools).
func NewReconciler(st store.Store, publisher EventPublisher, lowStockThreshold int, reservationTTL time.Duration) *Reconciler {
	return &Reconciler{
		store:             st,
		publisher:         publisher,
		logger:            util.GetLogger(),
		lowStockThreshold: lowStockThreshold,
		reservationTTL:    reservationTTL,
	}
}

type productUpdate struct {
	id     string
	newQty int
}

// ApplyStock atomically decrements inventory for every line item of a
// Reserved order, exactly once. Re-invocation after success is a
// silent no-op. If any product cannot cover its requested quantity the
// whole transaction aborts and no quantity changes. Returns the
// products left at or below the low-stock threshold.
func (r *Reconciler) ApplyStock(ctx context.Context, orderID string) ([]models.LowStock, error) {
	ctx, span := util.StartSpan(ctx, "Reconciler.ApplyStock")
	defer span.End()

	start := time.Now()
	defer func() {
		util.ApplyStockLatency.Observe(time.Since(start).Seconds())
	}()

	var (
		lowStock []models.LowStock
		applied  bool
		items    []models.OrderItem
	)

	err := r.store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		// reset per attempt, RunTx may retry on conflict
		lowStock = nil
		applied = false

		o, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return fmt.Errorf("order %s: %w", orderID, err)
		}
		if o.StockApplied {
			return nil
		}
		if o.Status != models.StatusReserved {
			return ErrTerminalState
		}

		need, order := aggregateNeed(o.Items)
		if len(order) == 0 {
			return fmt.Errorf("%w: order %s has no valid items", ErrInvalidInput, orderID)
		}

		// phase 1: reads and checks only
		updates := make([]productUpdate, 0, len(order))
		for _, productID := range order {
			p, err := tx.GetProduct(ctx, productID)
			if err != nil {
				return fmt.Errorf("product %s: %w", productID, err)
			}
			if p.Qty < need[productID] {
				return &InsufficientStockError{
					ProductID: p.ID,
					Name:      p.Name,
					Have:      p.Qty,
					Need:      need[productID],
				}
			}
			newQty := p.Qty - need[productID]
			updates = append(updates, productUpdate{id: p.ID, newQty: newQty})
			if newQty <= r.lowStockThreshold {
				lowStock = append(lowStock, models.LowStock{ProductID: p.ID, Name: p.Name, Qty: newQty})
			}
		}

		// phase 2: writes only
		for _, u := range updates {
			if err := tx.UpdateProductQty(ctx, u.id, u.newQty); err != nil {
				return err
			}
		}
		if err := tx.MarkStockApplied(ctx, orderID, time.Now().UTC()); err != nil {
			return err
		}
		applied = true
		items = o.Items
		return nil
	})
	if err != nil {
		var insufficient *InsufficientStockError
		switch {
		case errors.As(err, &insufficient):
			util.StockApplyFailedTotal.WithLabelValues("insufficient_stock").Inc()
		case errors.Is(err, ErrTerminalState):
			util.StockApplyFailedTotal.WithLabelValues("conflict").Inc()
		case errors.Is(err, store.ErrNotFound):
			util.StockApplyFailedTotal.WithLabelValues("not_found").Inc()
		default:
			util.StockApplyFailedTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	if applied {
		util.StockAppliedTotal.Inc()
		r.logger.Info("Stock applied",
			zap.String("order_id", orderID),
			zap.Int("low_stock_products", len(lowStock)))
		r.publishStockApplied(ctx, orderID, items, lowStock)
	}
	return lowStock, nil
}

// Settle marks an order Paid. It never touches inventory: stock must
// already have been applied, so a double-charged settlement can never
// double-deduct. Settling an already Paid order is a no-op.
func (r *Reconciler) Settle(ctx context.Context, orderID string) error {
	ctx, span := util.StartSpan(ctx, "Reconciler.Settle")
	defer span.End()

	var (
		settled bool
		total   int64
	)

	err := r.store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		settled = false

		o, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return fmt.Errorf("order %s: %w", orderID, err)
		}
		if o.Status == models.StatusPaid {
			return nil
		}
		if !models.CanTransition(o.Status, models.StatusPaid) {
			return ErrTerminalState
		}
		if !o.StockApplied {
			return ErrStockNotApplied
		}

		if err := tx.MarkPaid(ctx, orderID, time.Now().UTC()); err != nil {
			return err
		}
		settled = true
		total = o.TotalCents
		return nil
	})
	if err != nil {
		return err
	}

	if settled {
		util.OrdersPaidTotal.Inc()
		r.logger.Info("Order settled", zap.String("order_id", orderID))
		r.publishPaid(ctx, orderID, total)
	}
	return nil
}

// Cancel moves an order to Cancelled and restores inventory if and
// only if stock had been applied and not yet restored. A Paid order
// cannot be cancelled. Repeated or concurrent cancels are harmless:
// the restored flag is checked inside the transaction before any
// quantity is credited back.
func (r *Reconciler) Cancel(ctx context.Context, orderID string, auto bool) error {
	ctx, span := util.StartSpan(ctx, "Reconciler.Cancel")
	defer span.End()

	var (
		cancelled bool
		restored  bool
		items     []models.OrderItem
	)

	err := r.store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		cancelled = false
		restored = false

		o, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return fmt.Errorf("order %s: %w", orderID, err)
		}
		if o.Status == models.StatusPaid {
			return ErrTerminalState
		}
		if o.Status == models.StatusCancelled {
			return nil
		}

		items = o.Items

		if !o.StockApplied || o.StockRestored {
			// nothing to credit back, just flip the status
			cancelled = true
			return tx.MarkCancelled(ctx, orderID, auto, nil)
		}

		need, order := aggregateNeed(o.Items)
		for _, productID := range order {
			p, err := tx.GetProduct(ctx, productID)
			if err != nil {
				return fmt.Errorf("product %s: %w", productID, err)
			}
			if err := tx.UpdateProductQty(ctx, productID, p.Qty+need[productID]); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		if err := tx.MarkCancelled(ctx, orderID, auto, &now); err != nil {
			return err
		}
		cancelled = true
		restored = true
		return nil
	})
	if err != nil {
		return err
	}

	if cancelled {
		util.OrdersCancelledTotal.Inc()
		if auto {
			util.OrdersAutoCancelledTotal.Inc()
		}
		if restored {
			util.StockRestoredTotal.Inc()
		}
		r.logger.Info("Order cancelled",
			zap.String("order_id", orderID),
			zap.Bool("auto", auto),
			zap.Bool("stock_restored", restored))
		r.publishCancelled(ctx, orderID, auto, restored, items)
	}
	return nil
}

// CancelExpired cancels every Reserved order older than the
// reservation TTL, restoring stock where it had been applied. Racing
// manual settlements or cancels are fine: the per-order transaction
// re-validates and the sweep just skips the conflict.
func (r *Reconciler) CancelExpired(ctx context.Context) (int, error) {
	ctx, span := util.StartSpan(ctx, "Reconciler.CancelExpired")
	defer span.End()

	cutoff := time.Now().UTC().Add(-r.reservationTTL)
	ids, err := r.store.ListReservedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale reservations: %w", err)
	}

	cancelled := 0
	for _, id := range ids {
		if err := r.Cancel(ctx, id, true); err != nil {
			if errors.Is(err, ErrTerminalState) || errors.Is(err, store.ErrNotFound) {
				// settled or removed between the scan and the transaction
				continue
			}
			r.logger.Error("Failed to auto-cancel order",
				zap.String("order_id", id),
				zap.Error(err))
			continue
		}
		cancelled++
	}

	if cancelled > 0 {
		r.logger.Info("Expired reservations cancelled", zap.Int("count", cancelled))
	}
	return cancelled, nil
}

// aggregateNeed merges requested quantities by product. Orders
// normally reference a product once, but aggregation guards against
// duplicate lines. The returned slice gives a stable read order so
// concurrent transactions lock products in the same sequence.
func aggregateNeed(items []models.OrderItem) (map[string]int, []string) {
	need := make(map[string]int, len(items))
	for _, it := range items {
		if it.ProductID == "" || it.Qty <= 0 {
			continue
		}
		need[it.ProductID] += it.Qty
	}
	order := make([]string, 0, len(need))
	for id := range need {
		order = append(order, id)
	}
	sort.Strings(order)
	return need, order
}

func (r *Reconciler) publishStockApplied(ctx context.Context, orderID string, items []models.OrderItem, lowStock []models.LowStock) {
	if r.publisher == nil {
		return
	}
	event := &models.StockAppliedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeStockApplied,
			Timestamp: time.Now().UTC(),
		},
		OrderID:  orderID,
		Items:    eventItems(items),
		LowStock: lowStock,
	}
	if err := r.publisher.PublishStockApplied(ctx, event); err != nil {
		r.logger.Error("Failed to publish StockApplied event", zap.Error(err))
	}
}

func (r *Reconciler) publishPaid(ctx context.Context, orderID string, total int64) {
	if r.publisher == nil {
		return
	}
	event := &models.OrderPaidEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPaid,
			Timestamp: time.Now().UTC(),
		},
		OrderID:    orderID,
		TotalCents: total,
	}
	if err := r.publisher.PublishOrderPaid(ctx, event); err != nil {
		r.logger.Error("Failed to publish OrderPaid event", zap.Error(err))
	}
}

func (r *Reconciler) publishCancelled(ctx context.Context, orderID string, auto, restored bool, items []models.OrderItem) {
	if r.publisher == nil {
		return
	}
	event := &models.OrderCancelledEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCancelled,
			Timestamp: time.Now().UTC(),
		},
		OrderID:       orderID,
		AutoCancelled: auto,
		StockRestored: restored,
		Items:         eventItems(items),
	}
	if err := r.publisher.PublishOrderCancelled(ctx, event); err != nil {
		r.logger.Error("Failed to publish OrderCancelled event", zap.Error(err))
	}
}

func eventItems(items []models.OrderItem) []models.OrderEventItem {
	out := make([]models.OrderEventItem, 0, len(items))
	for _, it := range items {
		out = append(out, models.OrderEventItem{ProductID: it.ProductID, Qty: it.Qty})
	}
	return out
}
