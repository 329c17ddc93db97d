package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"storefront-service/internal/broker"
	"storefront-service/internal/models"
	"storefront-service/internal/redisclient"
	"storefront-service/internal/store"
	"storefront-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ReadModelWorker keeps the Redis read model in sync with the order
// event stream: order status keys per transition, and a fresh catalog
// snapshot whenever an event implies quantities changed. The read
// model only serves rendering; invariant checks never consult it.
type ReadModelWorker struct {
	consumer *broker.Consumer
	store    store.Store
	cache    *redisclient.Client
	logger   *zap.Logger
}

// NewReadModelWorker creates a read model worker.
func NewReadModelWorker(consumer *broker.Consumer, st store.Store, cache *redisclient.Client) *ReadModelWorker {
	return &ReadModelWorker{
		consumer: consumer,
		store:    st,
		cache:    cache,
		logger:   util.GetLogger(),
	}
}

// Start consumes events until the context is cancelled.
func (w *ReadModelWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting read model worker")
	return w.consumer.StartConsuming(ctx, w.handleMessage)
}

// Stop closes the underlying consumer.
func (w *ReadModelWorker) Stop() error {
	return w.consumer.Close()
}

func (w *ReadModelWorker) handleMessage(ctx context.Context, msg kafka.Message) error {
	base, err := broker.DecodeEvent(msg)
	if err != nil {
		// malformed message, drop it rather than block the partition
		w.logger.Error("Dropping undecodable event", zap.Error(err))
		return nil
	}

	switch base.EventType {
	case models.EventTypeOrderReserved:
		var event models.OrderReservedEvent
		if err := unmarshalEvent(msg, &event); err != nil {
			return err
		}
		return w.cache.SetOrderStatus(ctx, event.OrderID, models.StatusReserved)

	case models.EventTypeStockApplied:
		var event models.StockAppliedEvent
		if err := unmarshalEvent(msg, &event); err != nil {
			return err
		}
		return w.refreshCatalog(ctx)

	case models.EventTypeOrderPaid:
		var event models.OrderPaidEvent
		if err := unmarshalEvent(msg, &event); err != nil {
			return err
		}
		return w.cache.SetOrderStatus(ctx, event.OrderID, models.StatusPaid)

	case models.EventTypeOrderCancelled:
		var event models.OrderCancelledEvent
		if err := unmarshalEvent(msg, &event); err != nil {
			return err
		}
		if err := w.cache.SetOrderStatus(ctx, event.OrderID, models.StatusCancelled); err != nil {
			return err
		}
		if event.StockRestored {
			return w.refreshCatalog(ctx)
		}
		return nil

	default:
		w.logger.Debug("Ignoring event", zap.String("type", base.EventType))
		return nil
	}
}

func unmarshalEvent(msg kafka.Message, v interface{}) error {
	if err := json.Unmarshal(msg.Value, v); err != nil {
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return nil
}

func (w *ReadModelWorker) refreshCatalog(ctx context.Context) error {
	products, err := w.store.ListProducts(ctx)
	if err != nil {
		return err
	}
	return w.cache.SetProducts(ctx, products)
}
