package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"storefront-service/internal/models"
)

// Memory is an in-memory Store used by tests and local runs. A
// transaction holds the write lock for its whole duration and the
// pre-transaction state is kept aside, so an error anywhere inside
// RunTx rolls every write back.
type Memory struct {
	mu       sync.RWMutex
	products map[string]models.Product
	orders   map[string]models.Order
	counters map[string]int
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		products: make(map[string]models.Product),
		orders:   make(map[string]models.Order),
		counters: make(map[string]int),
	}
}

// RunTx serializes transactions behind the write lock and restores the
// saved maps if fn fails.
func (m *Memory) RunTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	products := copyMap(m.products)
	orders := copyMap(m.orders)
	counters := copyMap(m.counters)

	if err := fn(ctx, &memTx{store: m}); err != nil {
		m.products = products
		m.orders = orders
		m.counters = counters
		return err
	}
	return nil
}

func copyMap[V any](src map[string]V) map[string]V {
	dst := make(map[string]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (m *Memory) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return getOrderCopy(m.orders, id)
}

func (m *Memory) ListOrders(ctx context.Context, limit int) ([]models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) ListReservedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for _, o := range m.orders {
		if o.Status == models.StatusReserved && !o.AutoCancelled && o.ReservedAt.Before(cutoff) {
			ids = append(ids, o.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := p
	return &cp, nil
}

func (m *Memory) ListProducts(ctx context.Context) ([]models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *Memory) CreateProduct(ctx context.Context, p *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[p.ID]; ok {
		return fmt.Errorf("product already exists: %s", p.ID)
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	m.products[p.ID] = *p
	return nil
}

func (m *Memory) UpdateProduct(ctx context.Context, p *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.products[p.ID]
	if !ok {
		return ErrNotFound
	}
	updated := *p
	// qty is owned by the reconciliation flows
	updated.Qty = existing.Qty
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()
	m.products[p.ID] = updated
	return nil
}

func (m *Memory) DeleteProduct(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[id]; !ok {
		return ErrNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *Memory) SetProductImage(ctx context.Context, id, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[id]
	if !ok {
		return ErrNotFound
	}
	p.Image = url
	p.UpdatedAt = time.Now().UTC()
	m.products[id] = p
	return nil
}

func (m *Memory) Close() error { return nil }

func getOrderCopy(orders map[string]models.Order, id string) (*models.Order, error) {
	o, ok := orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := o
	cp.Items = append([]models.OrderItem(nil), o.Items...)
	return &cp, nil
}

// memTx runs against the locked store directly; RunTx already holds
// the write lock and handles rollback.
type memTx struct {
	store *Memory
}

var _ Tx = (*memTx)(nil)

func (t *memTx) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return getOrderCopy(t.store.orders, id)
}

func (t *memTx) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	p, ok := t.store.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := p
	return &cp, nil
}

func (t *memTx) UpdateProductQty(ctx context.Context, id string, qty int) error {
	p, ok := t.store.products[id]
	if !ok {
		return ErrNotFound
	}
	p.Qty = qty
	p.UpdatedAt = time.Now().UTC()
	t.store.products[id] = p
	return nil
}

func (t *memTx) InsertOrder(ctx context.Context, o *models.Order) error {
	if _, ok := t.store.orders[o.ID]; ok {
		return fmt.Errorf("order already exists: %s", o.ID)
	}
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now
	for i := range o.Items {
		o.Items[i].OrderID = o.ID
	}
	cp := *o
	cp.Items = append([]models.OrderItem(nil), o.Items...)
	t.store.orders[o.ID] = cp
	return nil
}

func (t *memTx) MarkStockApplied(ctx context.Context, orderID string, at time.Time) error {
	o, ok := t.store.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	o.StockApplied = true
	o.StockAppliedAt = &at
	o.UpdatedAt = time.Now().UTC()
	t.store.orders[orderID] = o
	return nil
}

func (t *memTx) MarkPaid(ctx context.Context, orderID string, at time.Time) error {
	o, ok := t.store.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	o.Status = models.StatusPaid
	o.PaidAt = &at
	o.UpdatedAt = time.Now().UTC()
	t.store.orders[orderID] = o
	return nil
}

func (t *memTx) MarkCancelled(ctx context.Context, orderID string, auto bool, restoredAt *time.Time) error {
	o, ok := t.store.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	o.Status = models.StatusCancelled
	o.AutoCancelled = o.AutoCancelled || auto
	o.StockRestored = true
	if restoredAt != nil {
		o.StockRestoredAt = restoredAt
	}
	o.UpdatedAt = time.Now().UTC()
	t.store.orders[orderID] = o
	return nil
}

func (t *memTx) NextOrderSeq(ctx context.Context, dateKey string) (int, error) {
	t.store.counters[dateKey]++
	return t.store.counters[dateKey], nil
}
