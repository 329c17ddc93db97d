package service

import (
	"context"
	"testing"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	reserved  []*models.OrderReservedEvent
	applied   []*models.StockAppliedEvent
	paid      []*models.OrderPaidEvent
	cancelled []*models.OrderCancelledEvent
}

func (f *fakePublisher) PublishOrderReserved(ctx context.Context, e *models.OrderReservedEvent) error {
	f.reserved = append(f.reserved, e)
	return nil
}

func (f *fakePublisher) PublishStockApplied(ctx context.Context, e *models.StockAppliedEvent) error {
	f.applied = append(f.applied, e)
	return nil
}

func (f *fakePublisher) PublishOrderPaid(ctx context.Context, e *models.OrderPaidEvent) error {
	f.paid = append(f.paid, e)
	return nil
}

func (f *fakePublisher) PublishOrderCancelled(ctx context.Context, e *models.OrderCancelledEvent) error {
	f.cancelled = append(f.cancelled, e)
	return nil
}

func seedProduct(t *testing.T, st *store.Memory, id, name string, price int64, qty int) {
	t.Helper()
	err := st.CreateProduct(context.Background(), &models.Product{
		ID:         id,
		Name:       name,
		PriceCents: price,
		Qty:        qty,
	})
	require.NoError(t, err)
}

func seedReservedOrder(t *testing.T, st *store.Memory, id string, reservedAt time.Time, items ...models.OrderItem) {
	t.Helper()
	var subtotal int64
	for _, it := range items {
		subtotal += it.UnitPriceCents * int64(it.Qty)
	}
	err := st.RunTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.InsertOrder(ctx, &models.Order{
			ID:            id,
			Status:        models.StatusReserved,
			Items:         items,
			SubtotalCents: subtotal,
			TotalCents:    subtotal,
			Customer:      models.Customer{Name: "Ana", Phone: "555-0101", Email: "ana@example.com"},
			DeliveryType:  models.DeliveryTypePickup,
			ReservedAt:    reservedAt,
		})
	})
	require.NoError(t, err)
}

func productQty(t *testing.T, st *store.Memory, id string) int {
	t.Helper()
	p, err := st.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Qty
}

func getOrder(t *testing.T, st *store.Memory, id string) *models.Order {
	t.Helper()
	o, err := st.GetOrder(context.Background(), id)
	require.NoError(t, err)
	return o
}

func TestApplyStockDeductsExactlyOnce(t *testing.T) {
	st := store.NewMemory()
	pub := &fakePublisher{}
	r := NewReconciler(st, pub, 5, 24*time.Hour)

	seedProduct(t, st, "p1", "Matcha Powder", 1200, 5)
	seedReservedOrder(t, st, "R-20260827-001", time.Now().UTC(),
		models.OrderItem{ProductID: "p1", Name: "Matcha Powder", UnitPriceCents: 1200, Qty: 5})

	lowStock, err := r.ApplyStock(context.Background(), "R-20260827-001")
	require.NoError(t, err)

	assert.Equal(t, 0, productQty(t, st, "p1"))
	require.Len(t, lowStock, 1)
	assert.Equal(t, "p1", lowStock[0].ProductID)
	assert.Equal(t, 0, lowStock[0].Qty)

	o := getOrder(t, st, "R-20260827-001")
	assert.True(t, o.StockApplied)
	assert.NotNil(t, o.StockAppliedAt)
	assert.Equal(t, models.StatusReserved, o.Status)

	// re-invocation is a silent no-op
	lowStock, err = r.ApplyStock(context.Background(), "R-20260827-001")
	require.NoError(t, err)
	assert.Empty(t, lowStock)
	assert.Equal(t, 0, productQty(t, st, "p1"))
	assert.Len(t, pub.applied, 1)
}

func TestApplyStockInsufficient(t *testing.T) {
	st := store.NewMemory()
	r := NewReconciler(st, nil, 5, 24*time.Hour)

	seedProduct(t, st, "p1", "Matcha Powder", 1200, 3)
	seedReservedOrder(t, st, "R-20260827-001", time.Now().UTC(),
		models.OrderItem{ProductID: "p1", Name: "Matcha Powder", UnitPriceCents: 1200, Qty: 5})

	_, err := r.ApplyStock(context.Background(), "R-20260827-001")
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "p1", insufficient.ProductID)
	assert.Equal(t, 3, insufficient.Have)
	assert.Equal(t, 5, insufficient.Need)
	assert.Equal(t, "not enough stock for Matcha Powder (have 3, need 5)", insufficient.Error())

	assert.Equal(t, 3, productQty(t, st, "p1"))
	o := getOrder(t, st, "R-20260827-001")
	assert.False(t, o.StockApplied)
	assert.Equal(t, models.StatusReserved, o.Status)
}

func TestApplyStockAbortsWholeOrder(t *testing.T) {
	st := store.NewMemory()
	r := NewReconciler(st, nil, 5, 24*time.Hour)

	seedProduct(t, st, "p1", "Matcha Powder", 1200, 10)
	seedProduct(t, st, "p2", "Sencha Leaves", 900, 1)
	seedReservedOrder(t, st, "R-20260827-001", time.Now().UTC(),
		models.OrderItem{ProductID: "p1", Name: "Matcha Powder", UnitPriceCents: 1200, Qty: 2},
		models.OrderItem{ProductID: "p2", Name: "Sencha Leaves", UnitPriceCents: 900, Qty: 2})

	_, err := r.ApplyStock(context.Background(), "R-20260827-001")
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "p2", insufficient.ProductID)

	// neither product was touched
	assert.Equal(t, 10, productQty(t, st, "p1"))
	assert.Equal(t, 1, productQty(t, st, "p2"))
}

func TestApplyStockLowStockThreshold(t *testing.T) {
	st := store.NewMemory()
	r := NewReconciler(st, nil, 5, 24*time.Hour)

	seedProduct(t, st, "p1", "Matcha Powder", 1200, 20)
	seedProduct(t, st, "p2", "Sencha Leaves", 900, 7)
	seedReservedOrder(t, st, "R-20260827-001", time.Now().UTC(),
		models.OrderItem{ProductID: "p1", Name: "Matcha Powder", UnitPriceCents: 1200, Qty: 2},
		models.OrderItem{ProductID: "p2", Name: "Sencha Leaves", UnitPriceCents: 900, Qty: 2})

	lowStock, err := r.ApplyStock(context.Background(), "R-20260827-001")
	require.NoError(t, err)

	require.Len(t, lowStock, 1)
	assert.Equal(t, "p2", lowStock[0].ProductID)
	assert.Equal(t, 5, lowStock[0].Qty)
}

func TestApplyStockOnCancelledOrder(t *testing.T) {
	st := store.NewMemory()
	r := NewReconciler(st, nil, 5, 24*time.Hour)

	seedProduct(t, st, "p1", "Matcha Powder", 1200, 5)
	seedReservedOrder(t, st, "R-20260827-001", time.Now().UTC(),
		models.OrderItem{ProductID: "p1", Name: "Matcha Powder", UnitPriceCents: 1200, Qty: 1})

	require.NoError(t, r.Cancel(context.Background(), "R-20260827-001", false))

	_, err := r.ApplyStock(context.Background(), "R-20260827-001")
	assert.ErrorIs(t, err, ErrTerminalState)
	assert.Equal(t, 5, productQty(t, st, "p1"))
}

func TestApplyStockUnknownOrder(t *testing.T) {
	st := store.NewMemory()
	r := NewReconciler(st, nil, 5, 24*time.Hour)

	_, err := r.ApplyStock(context.Background(), "R-20260827-999")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSettleRequiresAppliedStock(t *testing.T) {
	st := store.NewMemory()
	pub := &fakePublisher{}
	r := NewReconciler(st, pub, 5, 24*time.Hour)

	seedProduct(t, st, "p1", "Matcha Powder", 1200, 5)
	seedReservedOrder(t, st, "R-20260827-001", time.Now().UTC(),
		models.OrderItem{ProductID: "p1", Name: "Matcha Powder", UnitPriceCents: 1200, Qty: 1})

	err := r.Settle(context.Background(), "R-20260827-001")
	assert.ErrorIs(t, err, ErrStockNotApplied)
	assert.Equal(t, models.StatusReserved, getOrder(t, st, "R-20260827-001").Status)

	_, err = r.ApplyStock(context.Background(), "R-20260827-001")
	require.NoError(t, err)

	require.NoError(t, r.Settle(context.Background(), "R-20260827-001"))
	o := getOrder(t, st, "R-20260827-001")
	assert.Equal(t, models.StatusPaid, o.Status)
	assert.NotNil(t, o.PaidAt)

	// settling a Paid order again is a no-op, not an error
	require.NoError(t, r.Settle(context.Background(), "R-20260827-001"))
	assert.Len(t, pub.paid, 1)
}

func TestSettleCancelledOrder(t *testing.T) {
	st := store.NewMemory()
	r := NewReconciler(st, nil, 5, 24*time.Hour)

	seedProduct(t, st, "p1", "Matcha Powder", 1200, 5)
	seedReservedOrder(t, st, "R-20260827-001", time.Now().UTC(),
		models.OrderItem{ProductID: "p1", Name: "Matcha Powder", UnitPriceCents: 1200, Qty: 1})

	require.NoError(t, r.Cancel(context.Background(), "R-20260827-001", false))

	err := r.Settle(context.Background(), "R-20260827-001")
	assert.ErrorIs(t, err, ErrTerminalState)
}

func TestCancelRestoresStockOnce(t *testing.T) {
	st := store.NewMemory()
	pub := &fakePublisher{}
	r := NewReconciler(st, pub, 5, 24*time.Hour)

	seedProduct(t, st, "p1", "Matcha Powder", 1200, 5)
	seedReservedOrder(t, st, "R-20260827-001", time.Now().UTC(),
		models.OrderItem{ProductID: "p1", Name: "Matcha Powder", UnitPriceCents: 1200, Qty: 3})

	_, err := r.ApplyStock(context.Background(), "R-20260827-001")
	require.NoError(t, err)
	require.Equal(t, 2, productQty(t, st, "p1"))

	require.NoError(t, r.Cancel(context.Background(), "R-20260827-001", false))
	assert.Equal(t, 5, productQty(t, st, "p1"))

	o := getOrder(t, st, "R-20260827-001")
	assert.Equal(t, models.StatusCancelled, o.Status)
	assert.True(t, o.StockRestored)
	assert.NotNil(t, o.StockRestoredAt)
	assert.False(t, o.AutoCancelled)

	// second cancel must not credit stock back again
	require.NoError(t, r.Cancel(context.Background(), "R-20260827-001", false))
	assert.Equal(t, 5, productQty(t, st, "p1"))

	require.Len(t, pub.cancelled, 1)
	assert.True(t, pub.cancelled[0].StockRestored)
}

func TestCancelBeforeApplyCreditsNothing(t *testing.T) {
	st := store.NewMemory()
	pub := &fakePublisher{}
	r := NewReconciler(st, pub, 5, 24*time.Hour)

	seedProduct(t, st, "p1", "Matcha Powder", 1200, 5)
	seedReservedOrder(t, st, "R-20260827-001", time.Now().UTC(),
		models.OrderItem{ProductID: "p1", Name: "Matcha Powder", UnitPriceCents: 1200, Qty: 3})

	require.NoError(t, r.Cancel(context.Background(), "R-20260827-001", false))

	assert.Equal(t, 5, productQty(t, st, "p1"))
	o := getOrder(t, st, "R-20260827-001")
	assert.Equal(t, models.StatusCancelled, o.Status)
	assert.Nil(t, o.StockRestoredAt)

	require.Len(t, pub.cancelled, 1)
	assert.False(t, pub.cancelled[0].StockRestored)
}

func TestCancelPaidOrder(t *testing.T) {
	st := store.NewMemory()
	r := NewReconciler(st, nil, 5, 24*time.Hour)

	seedProduct(t, st, "p1", "Matcha Powder", 1200, 5)
	seedReservedOrder(t, st, "R-20260827-001", time.Now().UTC(),
		models.OrderItem{ProductID: "p1", Name: "Matcha Powder", UnitPriceCents: 1200, Qty: 3})

	_, err := r.ApplyStock(context.Background(), "R-20260827-001")
	require.NoError(t, err)
	require.NoError(t, r.Settle(context.Background(), "R-20260827-001"))

	err = r.Cancel(context.Background(), "R-20260827-001", false)
	assert.ErrorIs(t, err, ErrTerminalState)

	// the deduction stands
	assert.Equal(t, 2, productQty(t, st, "p1"))
	assert.Equal(t, models.StatusPaid, getOrder(t, st, "R-20260827-001").Status)
}

func TestCancelExpired(t *testing.T) {
	st := store.NewMemory()
	pub := &fakePublisher{}
	r := NewReconciler(st, pub, 5, 24*time.Hour)

	seedProduct(t, st, "p1", "Matcha Powder", 1200, 10)
	now := time.Now().UTC()

	seedReservedOrder(t, st, "R-20260826-001", now.Add(-25*time.Hour),
		models.OrderItem{ProductID: "p1", Name: "Matcha Powder", UnitPriceCents: 1200, Qty: 4})
	seedReservedOrder(t, st, "R-20260827-001", now.Add(-1*time.Hour),
		models.OrderItem{ProductID: "p1", Name: "Matcha Powder", UnitPriceCents: 1200, Qty: 2})

	_, err := r.ApplyStock(context.Background(), "R-20260826-001")
	require.NoError(t, err)
	require.Equal(t, 6, productQty(t, st, "p1"))

	cancelled, err := r.CancelExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, cancelled)

	stale := getOrder(t, st, "R-20260826-001")
	assert.Equal(t, models.StatusCancelled, stale.Status)
	assert.True(t, stale.AutoCancelled)
	assert.True(t, stale.StockRestored)
	assert.Equal(t, 10, productQty(t, st, "p1"))

	fresh := getOrder(t, st, "R-20260827-001")
	assert.Equal(t, models.StatusReserved, fresh.Status)

	require.Len(t, pub.cancelled, 1)
	assert.True(t, pub.cancelled[0].AutoCancelled)

	// next sweep finds nothing
	cancelled, err = r.CancelExpired(context.Background())
	require.NoError(t, err)
	assert.Zero(t, cancelled)
}

func TestCancelExpiredSkipsSettledRace(t *testing.T) {
	st := store.NewMemory()
	r := NewReconciler(st, nil, 5, 24*time.Hour)

	seedProduct(t, st, "p1", "Matcha Powder", 1200, 10)
	seedReservedOrder(t, st, "R-20260826-001", time.Now().UTC().Add(-25*time.Hour),
		models.OrderItem{ProductID: "p1", Name: "Matcha Powder", UnitPriceCents: 1200, Qty: 1})

	_, err := r.ApplyStock(context.Background(), "R-20260826-001")
	require.NoError(t, err)
	require.NoError(t, r.Settle(context.Background(), "R-20260826-001"))

	cancelled, err := r.CancelExpired(context.Background())
	require.NoError(t, err)
	assert.Zero(t, cancelled)
	assert.Equal(t, models.StatusPaid, getOrder(t, st, "R-20260826-001").Status)
}
