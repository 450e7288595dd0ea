package worker

import (
	"context"
	"errors"

	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// OrderPlacedHandler reacts to a committed order.
type OrderPlacedHandler interface {
	HandleOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
}

// CatalogWorker keeps the product cache in step with committed orders
type CatalogWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewCatalogWorker creates a new catalog worker
func NewCatalogWorker(consumer *broker.Consumer, catalog OrderPlacedHandler) *CatalogWorker {
	logger := util.GetLogger()
	eventHandler := broker.NewEventHandler()

	eventHandler.OnOrderPlaced(catalog.HandleOrderPlaced)
	eventHandler.OnOrderStatusChanged(func(_ context.Context, e *models.OrderStatusChangedEvent) error {
		logger.Info("Order status changed",
			zap.String("order_id", e.OrderID.String()),
			zap.String("from", string(e.From)),
			zap.String("to", string(e.To)))
		return nil
	})

	return &CatalogWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       logger,
	}
}

// Handler exposes the routing handler the worker consumes with
func (w *CatalogWorker) Handler() broker.MessageHandler {
	return w.eventHandler.HandleMessage
}

// Start blocks consuming order events until ctx is cancelled
func (w *CatalogWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting catalog worker")
	err := w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Stop closes the underlying consumer
func (w *CatalogWorker) Stop() error {
	w.logger.Info("Stopping catalog worker")
	return w.consumer.Close()
}
