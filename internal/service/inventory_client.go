package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/store"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// InventoryClient owns every stock mutation made on behalf of an order and keeps the product
// cache and the event stream in step with it
type InventoryClient struct {
	products ProductRepository
	cache    ProductCache
	events   Events
	logger   *zap.Logger
}

// NewInventoryClient creates a new inventory client
func NewInventoryClient(products ProductRepository, cache ProductCache, events Events) *InventoryClient {
	return &InventoryClient{
		products: products,
		cache:    cache,
		events:   events,
		logger:   util.GetLogger(),
	}
}

// ReserveStock looks the product up, checks it has quantity left and decrements it. The
// decrement itself is conditional, so a concurrent order that drained the stock after the
// lookup is still reported as InsufficientStock rather than driving stock negative.
func (ic *InventoryClient) ReserveStock(ctx context.Context, orderID, productID string, quantity int) (int, error) {
	ctx, span := util.StartSpan(ctx, "InventoryClient.ReserveStock")
	defer span.End()

	product, err := ic.products.GetProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			util.StockDecrementsFailed.WithLabelValues("not_found").Inc()
			return 0, NotFoundError("product", productID)
		}
		return 0, fmt.Errorf("failed to look up product %s: %w", productID, err)
	}

	if product.Stock < quantity {
		util.StockDecrementsFailed.WithLabelValues("insufficient_stock").Inc()
		return 0, InsufficientStockError(product.ID, product.Name, product.Stock, quantity)
	}

	stock, err := ic.products.DecrementStock(ctx, productID, quantity)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrInsufficientStock):
			util.StockDecrementsFailed.WithLabelValues("lost_race").Inc()
			current := product.Stock
			if fresh, lookupErr := ic.products.GetProductByID(ctx, productID); lookupErr == nil {
				current = fresh.Stock
			}
			return 0, InsufficientStockError(product.ID, product.Name, current, quantity)
		case errors.Is(err, store.ErrNotFound):
			util.StockDecrementsFailed.WithLabelValues("not_found").Inc()
			return 0, NotFoundError("product", productID)
		}
		return 0, fmt.Errorf("failed to decrement stock for product %s: %w", productID, err)
	}

	ic.StockChanged(ctx, orderID, []store.StockChange{{ProductID: productID, Quantity: quantity, Stock: stock}})
	return stock, nil
}

// StockChanged drops the cached copies of the changed products and announces the new counts.
// Failures here are logged: the database already holds the truth.
func (ic *InventoryClient) StockChanged(ctx context.Context, orderID string, changes []store.StockChange) {
	if len(changes) == 0 {
		return
	}

	ids := make([]string, len(changes))
	for i, c := range changes {
		ids[i] = c.ProductID
	}
	if err := ic.cache.InvalidateProducts(ctx, ids...); err != nil {
		ic.logger.Warn("Failed to invalidate product cache",
			zap.Strings("product_ids", ids),
			zap.Error(err))
	}

	for _, c := range changes {
		if err := ic.events.PublishProductStockChanged(ctx, c.ProductID, -c.Quantity, c.Stock, orderID); err != nil {
			ic.logger.Error("Failed to publish ProductStockChanged event",
				zap.String("product_id", c.ProductID),
				zap.String("order_id", orderID),
				zap.Error(err))
		}
	}
}
