package service

import (
	"context"
	"fmt"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/store"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderService handles order intake and reads. Reserving an order
// never touches inventory; the deduction happens later through the
// reconciler.
type OrderService struct {
	store         store.Store
	publisher     EventPublisher
	logger        *zap.Logger
	deliveryCents int64
}

// NewOrderService creates a new order service. publisher may be nil.
func NewOrderService(st store.Store, publisher EventPublisher, deliveryCents int64) *OrderService {
	return &OrderService{
		store:         st,
		publisher:     publisher,
		logger:        util.GetLogger(),
		deliveryCents: deliveryCents,
	}
}

// CreateOrderRequest represents a request to reserve an order
type CreateOrderRequest struct {
	Customer     models.Customer    `json:"customer" binding:"required"`
	DeliveryType string             `json:"delivery_type"`
	Items        []OrderItemRequest `json:"items" binding:"required,min=1"`
}

// OrderItemRequest represents an item in an order
type OrderItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Qty       int    `json:"qty" binding:"required,min=1"`
}

// Reserve validates the request, captures product names and prices,
// allocates a readable per-day order ID and creates the order in
// Reserved status — all in one transaction with the counter increment,
// so concurrent creations never collide.
func (s *OrderService) Reserve(ctx context.Context, req *CreateOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Reserve")
	defer span.End()

	if err := validateReserve(req); err != nil {
		return nil, err
	}

	deliveryType := req.DeliveryType
	if deliveryType == "" {
		deliveryType = models.DeliveryTypePickup
	}

	var order *models.Order
	err := s.store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		now := time.Now().UTC()
		dateKey := now.Format("20060102")

		seq, err := tx.NextOrderSeq(ctx, dateKey)
		if err != nil {
			return fmt.Errorf("failed to allocate order number: %w", err)
		}

		items := make([]models.OrderItem, 0, len(req.Items))
		var subtotal int64
		for _, it := range req.Items {
			// capture name and price from the product record, never
			// from the client
			p, err := tx.GetProduct(ctx, it.ProductID)
			if err != nil {
				return fmt.Errorf("product %s: %w", it.ProductID, err)
			}
			items = append(items, models.OrderItem{
				ProductID:      p.ID,
				Name:           p.Name,
				UnitPriceCents: p.PriceCents,
				Qty:            it.Qty,
			})
			subtotal += p.PriceCents * int64(it.Qty)
		}

		var deliveryFee int64
		if deliveryType == models.DeliveryTypeDelivery {
			deliveryFee = s.deliveryCents
		}

		order = &models.Order{
			ID:            fmt.Sprintf("R-%s-%03d", dateKey, seq),
			Status:        models.StatusReserved,
			Items:         items,
			SubtotalCents: subtotal,
			DeliveryCents: deliveryFee,
			TotalCents:    subtotal + deliveryFee,
			Customer:      req.Customer,
			DeliveryType:  deliveryType,
			ReservedAt:    now,
		}
		return tx.InsertOrder(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	util.OrdersReservedTotal.Inc()
	s.logger.Info("Order reserved",
		zap.String("order_id", order.ID),
		zap.Int64("total_cents", order.TotalCents))
	s.publishReserved(ctx, order)

	return order, nil
}

// GetOrder retrieves an order with its items
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	return s.store.GetOrder(ctx, orderID)
}

// ListOrders retrieves recent orders, newest first
func (s *OrderService) ListOrders(ctx context.Context, limit int) ([]models.Order, error) {
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	return s.store.ListOrders(ctx, limit)
}

func validateReserve(req *CreateOrderRequest) error {
	if req.Customer.Name == "" || req.Customer.Phone == "" || req.Customer.Email == "" {
		return fmt.Errorf("%w: customer name, phone and email are required", ErrInvalidInput)
	}
	if len(req.Items) == 0 {
		return fmt.Errorf("%w: order has no items", ErrInvalidInput)
	}
	for _, it := range req.Items {
		if it.ProductID == "" {
			return fmt.Errorf("%w: item is missing product_id", ErrInvalidInput)
		}
		if it.Qty <= 0 {
			return fmt.Errorf("%w: item qty must be positive", ErrInvalidInput)
		}
	}
	switch req.DeliveryType {
	case "", models.DeliveryTypePickup, models.DeliveryTypeDelivery:
	default:
		return fmt.Errorf("%w: unknown delivery type %q", ErrInvalidInput, req.DeliveryType)
	}
	return nil
}

func (s *OrderService) publishReserved(ctx context.Context, order *models.Order) {
	if s.publisher == nil {
		return
	}
	event := &models.OrderReservedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderReserved,
			Timestamp: time.Now().UTC(),
		},
		OrderID:    order.ID,
		TotalCents: order.TotalCents,
		Items:      eventItems(order.Items),
	}
	if err := s.publisher.PublishOrderReserved(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderReserved event", zap.Error(err))
	}
}
