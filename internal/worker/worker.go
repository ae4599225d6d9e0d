package worker

import (
	"context"

	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// MessageSource is the consuming side of the event bus
type MessageSource interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// ProductCache is the cache the worker keeps coherent with product events
type ProductCache interface {
	InvalidateProducts(ctx context.Context, ids ...string) error
}

// CacheWorker invalidates cached products a second time, after the product event has gone
// through Kafka. The cache is shared, so all instances join one consumer group and each event is
// handled once. This covers inline invalidations that failed while Redis was unreachable.
type CacheWorker struct {
	source       MessageSource
	cache        ProductCache
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewCacheWorker creates a new cache worker
func NewCacheWorker(source MessageSource, cache ProductCache) *CacheWorker {
	w := &CacheWorker{
		source:       source,
		cache:        cache,
		eventHandler: broker.NewEventHandler(),
		logger:       util.GetLogger(),
	}

	w.eventHandler.OnProductStockChanged(w.handleStockChanged)
	w.eventHandler.OnProductChanged(w.handleProductChanged)
	w.eventHandler.OnOrderStockFailed(w.handleOrderStockFailed)
	return w
}

// Start consumes until ctx is cancelled
func (w *CacheWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting cache worker")
	return w.source.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *CacheWorker) Stop() error {
	w.logger.Info("Stopping cache worker")
	return w.source.Close()
}

func (w *CacheWorker) handleStockChanged(ctx context.Context, event *models.ProductStockChangedEvent) error {
	if err := w.cache.InvalidateProducts(ctx, event.ProductID); err != nil {
		return err
	}
	w.logger.Debug("Product cache invalidated",
		zap.String("product_id", event.ProductID),
		zap.Int("stock", event.Stock),
		zap.String("order_id", event.OrderID))
	return nil
}

func (w *CacheWorker) handleProductChanged(ctx context.Context, event *models.ProductChangedEvent) error {
	if err := w.cache.InvalidateProducts(ctx, event.ProductID); err != nil {
		return err
	}
	w.logger.Debug("Product cache invalidated",
		zap.String("product_id", event.ProductID),
		zap.String("event_type", event.EventType))
	return nil
}

// handleOrderStockFailed only records the failure; partially placed orders are left for operators
func (w *CacheWorker) handleOrderStockFailed(_ context.Context, event *models.OrderStockFailedEvent) error {
	w.logger.Warn("Order stopped on stock",
		zap.String("order_id", event.OrderID),
		zap.String("user_id", event.UserID),
		zap.String("product_id", event.ProductID),
		zap.String("reason", event.Reason),
		zap.Bool("order_persisted", event.OrderPersisted))
	return nil
}
