package service

import (
	"context"

	"storefront-service/internal/models"
)

// EventPublisher pushes order lifecycle changes onto the event stream
// that feeds the derived read model. Implemented by broker.EventPublisher.
type EventPublisher interface {
	PublishOrderReserved(ctx context.Context, event *models.OrderReservedEvent) error
	PublishStockApplied(ctx context.Context, event *models.StockAppliedEvent) error
	PublishOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
}
