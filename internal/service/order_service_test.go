package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validReserveRequest() *CreateOrderRequest {
	return &CreateOrderRequest{
		Customer: models.Customer{
			Name:  "Ana",
			Phone: "555-0101",
			Email: "ana@example.com",
		},
		DeliveryType: models.DeliveryTypeDelivery,
		Items: []OrderItemRequest{
			{ProductID: "p1", Qty: 2},
			{ProductID: "p2", Qty: 1},
		},
	}
}

func TestReserveBuildsOrder(t *testing.T) {
	st := store.NewMemory()
	pub := &fakePublisher{}
	os := NewOrderService(st, pub, 500)

	seedProduct(t, st, "p1", "Matcha Powder", 1200, 10)
	seedProduct(t, st, "p2", "Sencha Leaves", 900, 10)

	order, err := os.Reserve(context.Background(), validReserveRequest())
	require.NoError(t, err)

	today := time.Now().UTC().Format("20060102")
	assert.Equal(t, fmt.Sprintf("R-%s-001", today), order.ID)
	assert.Equal(t, models.StatusReserved, order.Status)
	assert.False(t, order.StockApplied)

	assert.Equal(t, int64(2*1200+900), order.SubtotalCents)
	assert.Equal(t, int64(500), order.DeliveryCents)
	assert.Equal(t, int64(2*1200+900+500), order.TotalCents)

	// name and unit price come from the catalog, not the client
	require.Len(t, order.Items, 2)
	assert.Equal(t, "Matcha Powder", order.Items[0].Name)
	assert.Equal(t, int64(1200), order.Items[0].UnitPriceCents)

	// reserving never deducts inventory
	assert.Equal(t, 10, productQty(t, st, "p1"))
	assert.Equal(t, 10, productQty(t, st, "p2"))

	require.Len(t, pub.reserved, 1)
	assert.Equal(t, order.ID, pub.reserved[0].OrderID)
}

func TestReservePickupHasNoDeliveryFee(t *testing.T) {
	st := store.NewMemory()
	os := NewOrderService(st, nil, 500)

	seedProduct(t, st, "p1", "Matcha Powder", 1200, 10)

	req := &CreateOrderRequest{
		Customer: models.Customer{Name: "Ana", Phone: "555-0101", Email: "ana@example.com"},
		Items:    []OrderItemRequest{{ProductID: "p1", Qty: 1}},
	}
	order, err := os.Reserve(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, models.DeliveryTypePickup, order.DeliveryType)
	assert.Zero(t, order.DeliveryCents)
	assert.Equal(t, order.SubtotalCents, order.TotalCents)
}

func TestReserveAssignsSequentialIDs(t *testing.T) {
	st := store.NewMemory()
	os := NewOrderService(st, nil, 500)

	seedProduct(t, st, "p1", "Matcha Powder", 1200, 10)

	req := &CreateOrderRequest{
		Customer: models.Customer{Name: "Ana", Phone: "555-0101", Email: "ana@example.com"},
		Items:    []OrderItemRequest{{ProductID: "p1", Qty: 1}},
	}

	first, err := os.Reserve(context.Background(), req)
	require.NoError(t, err)
	second, err := os.Reserve(context.Background(), req)
	require.NoError(t, err)

	today := time.Now().UTC().Format("20060102")
	assert.Equal(t, fmt.Sprintf("R-%s-001", today), first.ID)
	assert.Equal(t, fmt.Sprintf("R-%s-002", today), second.ID)
}

func TestReserveUnknownProductRollsBackCounter(t *testing.T) {
	st := store.NewMemory()
	os := NewOrderService(st, nil, 500)

	seedProduct(t, st, "p1", "Matcha Powder", 1200, 10)

	bad := &CreateOrderRequest{
		Customer: models.Customer{Name: "Ana", Phone: "555-0101", Email: "ana@example.com"},
		Items:    []OrderItemRequest{{ProductID: "missing", Qty: 1}},
	}
	_, err := os.Reserve(context.Background(), bad)
	require.ErrorIs(t, err, store.ErrNotFound)

	// the failed attempt must not burn an order number
	good := &CreateOrderRequest{
		Customer: models.Customer{Name: "Ana", Phone: "555-0101", Email: "ana@example.com"},
		Items:    []OrderItemRequest{{ProductID: "p1", Qty: 1}},
	}
	order, err := os.Reserve(context.Background(), good)
	require.NoError(t, err)

	today := time.Now().UTC().Format("20060102")
	assert.Equal(t, fmt.Sprintf("R-%s-001", today), order.ID)
}

func TestReserveValidation(t *testing.T) {
	st := store.NewMemory()
	os := NewOrderService(st, nil, 500)

	tests := []struct {
		name   string
		mutate func(*CreateOrderRequest)
	}{
		{"missing customer name", func(r *CreateOrderRequest) { r.Customer.Name = "" }},
		{"missing phone", func(r *CreateOrderRequest) { r.Customer.Phone = "" }},
		{"missing email", func(r *CreateOrderRequest) { r.Customer.Email = "" }},
		{"no items", func(r *CreateOrderRequest) { r.Items = nil }},
		{"zero qty", func(r *CreateOrderRequest) { r.Items[0].Qty = 0 }},
		{"negative qty", func(r *CreateOrderRequest) { r.Items[0].Qty = -1 }},
		{"missing product id", func(r *CreateOrderRequest) { r.Items[0].ProductID = "" }},
		{"unknown delivery type", func(r *CreateOrderRequest) { r.DeliveryType = "drone" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validReserveRequest()
			tt.mutate(req)
			_, err := os.Reserve(context.Background(), req)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestReserveConcurrentIDsAreUnique(t *testing.T) {
	st := store.NewMemory()
	os := NewOrderService(st, nil, 500)

	seedProduct(t, st, "p1", "Matcha Powder", 1200, 10)

	const n = 20
	ids := make(chan string, n)
	for i := 0; i < n; i++ {
		go func() {
			req := &CreateOrderRequest{
				Customer: models.Customer{Name: "Ana", Phone: "555-0101", Email: "ana@example.com"},
				Items:    []OrderItemRequest{{ProductID: "p1", Qty: 1}},
			}
			order, err := os.Reserve(context.Background(), req)
			if err != nil {
				ids <- ""
				return
			}
			ids <- order.ID
		}()
	}

	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		id := <-ids
		require.NotEmpty(t, id)
		assert.False(t, seen[id], "duplicate order id %s", id)
		seen[id] = true
	}
}

func TestListOrdersClampsLimit(t *testing.T) {
	st := store.NewMemory()
	os := NewOrderService(st, nil, 500)

	orders, err := os.ListOrders(context.Background(), -5)
	require.NoError(t, err)
	assert.Empty(t, orders)
}
