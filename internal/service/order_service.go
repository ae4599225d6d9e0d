package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/config"
	"storefront/internal/models"
	"storefront/internal/redisclient"
	"storefront/internal/store"
	"storefront/internal/util"
	"storefront/internal/validation"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const orderCreatedMessage = "Order created and stock updated successfully"

// OrderService handles order placement and the order lifecycle
type OrderService struct {
	orders          OrderRepository
	locker          OrderLocker
	events          Events
	inventoryClient *InventoryClient
	business        config.BusinessConfig
	logger          *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	orders OrderRepository,
	locker OrderLocker,
	events Events,
	inventoryClient *InventoryClient,
	business config.BusinessConfig,
) *OrderService {
	return &OrderService{
		orders:          orders,
		locker:          locker,
		events:          events,
		inventoryClient: inventoryClient,
		business:        business,
		logger:          util.GetLogger(),
	}
}

// PlaceOrderResult is what a successful placement returns
type PlaceOrderResult struct {
	Message string        `json:"message"`
	Order   *models.Order `json:"order"`
	// Replayed is set when the idempotency key matched an earlier order
	Replayed bool `json:"-"`
}

// CreateOrder places an order. In sequential mode the order is persisted first and stock is
// reserved item by item; a failing item leaves the Pending order and earlier decrements in
// place. In atomic mode the order and every decrement commit together or not at all.
func (s *OrderService) CreateOrder(ctx context.Context, actor Actor, req *validation.CreateOrderRequest, idempotencyKey string) (result *PlaceOrderResult, err error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer func() {
		util.FailSpan(span, err)
		span.End()
	}()

	userID := req.UserID
	if userID == "" {
		userID = actor.UserID
	}
	if !actor.canAccess(userID) {
		return nil, ForbiddenError("cannot place orders for another user")
	}

	items := orderItems(req.Items)

	total, err := s.applyTotalPolicy(amount(req.Total), items)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("total_mismatch").Inc()
		return nil, err
	}

	if idempotencyKey != "" {
		lockToken, err := s.locker.AcquireOrderLock(ctx, userID, idempotencyKey)
		if err != nil {
			if errors.Is(err, redisclient.ErrLockHeld) {
				return nil, ConflictError("an order with this idempotency key is already being placed")
			}
			return nil, fmt.Errorf("failed to lock idempotency key: %w", err)
		}
		defer func() {
			if err := s.locker.ReleaseOrderLock(context.Background(), userID, idempotencyKey, lockToken); err != nil {
				s.logger.Warn("Failed to release order lock",
					zap.String("idempotency_key", idempotencyKey),
					zap.Error(err))
			}
		}()

		existing, err := s.orders.GetOrderByIdempotencyKey(ctx, userID, idempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("failed to check idempotency: %w", err)
		}
		if existing != nil {
			s.logger.Info("Duplicate order request detected",
				zap.String("idempotency_key", idempotencyKey),
				zap.String("order_id", existing.ID))
			return &PlaceOrderResult{Message: orderCreatedMessage, Order: existing, Replayed: true}, nil
		}
	}

	order := &models.Order{
		ID:        uuid.New().String(),
		UserID:    userID,
		CardID:    req.CardID,
		AddressID: req.AddressID,
		Total:     total,
		Status:    models.OrderStatusPending,
		Items:     items,
	}
	if idempotencyKey != "" {
		order.IdempotencyKey = &idempotencyKey
	}

	switch s.business.PlacementMode {
	case config.PlacementAtomic:
		err = s.placeAtomic(ctx, order)
	default:
		err = s.placeSequential(ctx, order)
	}
	if err != nil {
		return nil, err
	}

	util.OrdersPlacedTotal.WithLabelValues(s.mode()).Inc()
	s.logger.Info("Order placed",
		zap.String("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.String("mode", s.mode()),
		zap.Int("items", len(order.Items)))

	if err := s.events.PublishOrderPlaced(ctx, order, s.mode()); err != nil {
		s.logger.Error("Failed to publish OrderPlaced event", zap.Error(err))
	}

	return &PlaceOrderResult{Message: orderCreatedMessage, Order: order}, nil
}

func (s *OrderService) placeSequential(ctx context.Context, order *models.Order) error {
	if err := s.orders.CreateOrder(ctx, order); err != nil {
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		if errors.Is(err, store.ErrDuplicate) {
			return ConflictError("an order with this idempotency key already exists")
		}
		return fmt.Errorf("failed to create order: %w", err)
	}

	start := time.Now()
	defer func() {
		util.StockDecrementLatency.Observe(time.Since(start).Seconds())
	}()

	for _, item := range order.Items {
		if _, err := s.inventoryClient.ReserveStock(ctx, order.ID, item.ProductID, item.Quantity); err != nil {
			s.stockFailed(ctx, order, item.ProductID, err, true)
			return err
		}
	}
	return nil
}

func (s *OrderService) placeAtomic(ctx context.Context, order *models.Order) error {
	start := time.Now()
	changes, err := s.orders.PlaceOrderAtomic(ctx, order)
	util.StockDecrementLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		var stockErr *store.StockError
		if errors.As(err, &stockErr) {
			var domainErr error
			if errors.Is(stockErr, store.ErrNotFound) {
				domainErr = NotFoundError("product", stockErr.ProductID)
			} else {
				domainErr = InsufficientStockError(stockErr.ProductID, stockErr.ProductName, stockErr.Available, stockErr.Requested)
			}
			s.stockFailed(ctx, order, stockErr.ProductID, domainErr, false)
			return domainErr
		}
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		if errors.Is(err, store.ErrDuplicate) {
			return ConflictError("an order with this idempotency key already exists")
		}
		return fmt.Errorf("failed to place order: %w", err)
	}

	s.inventoryClient.StockChanged(ctx, order.ID, changes)
	return nil
}

// stockFailed records a placement stopped by a missing product or short stock
func (s *OrderService) stockFailed(ctx context.Context, order *models.Order, productID string, cause error, persisted bool) {
	reason := KindOf(cause).String()
	util.OrdersFailedTotal.WithLabelValues(reason).Inc()

	orderID := ""
	if persisted {
		orderID = order.ID
		util.OrdersPartiallyPersistedTotal.Inc()
	}

	s.logger.Warn("Order placement stopped",
		zap.String("order_id", order.ID),
		zap.String("product_id", productID),
		zap.Bool("order_persisted", persisted),
		zap.Error(cause))

	if err := s.events.PublishOrderStockFailed(ctx, orderID, order.UserID, productID, reason); err != nil {
		s.logger.Error("Failed to publish OrderStockFailed event", zap.Error(err))
	}
}

// applyTotalPolicy decides the stored total from the submitted one
func (s *OrderService) applyTotalPolicy(submitted decimal.Decimal, items []models.OrderItem) (decimal.Decimal, error) {
	computed := models.ItemsTotal(items)

	switch s.business.TotalPolicy {
	case config.TotalPolicyRecompute:
		return computed, nil
	case config.TotalPolicyVerify:
		if !submitted.Equal(computed) {
			return decimal.Zero, ValidationError("total does not match the sum of the items", map[string]string{
				"total": fmt.Sprintf("expected %s", computed.StringFixed(2)),
			})
		}
	}
	return submitted, nil
}

func (s *OrderService) mode() string {
	if s.business.PlacementMode == config.PlacementAtomic {
		return config.PlacementAtomic
	}
	return config.PlacementSequential
}

// GetOrder retrieves an order by ID
func (s *OrderService) GetOrder(ctx context.Context, actor Actor, id string) (*models.Order, error) {
	order, err := s.orders.GetOrderByID(ctx, id)
	if err != nil {
		return nil, fromStore(err, "order", id)
	}
	if !actor.canAccess(order.UserID) {
		return nil, ForbiddenError("order belongs to another user")
	}
	return order, nil
}

// ListOrders returns every order for admins and the caller's own orders otherwise
func (s *OrderService) ListOrders(ctx context.Context, actor Actor) ([]models.Order, error) {
	userID := actor.UserID
	if actor.IsAdmin() {
		userID = ""
	}
	orders, err := s.orders.ListOrders(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// UpdateOrder changes references, items, total or status. Stock is never adjusted and any
// status transition is accepted.
func (s *OrderService) UpdateOrder(ctx context.Context, actor Actor, id string, req *validation.UpdateOrderRequest) (*models.Order, error) {
	order, err := s.GetOrder(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if req.CardID != nil {
		order.CardID = *req.CardID
	}
	if req.AddressID != nil {
		order.AddressID = *req.AddressID
	}
	if req.Status != nil {
		if !models.ValidOrderStatus(*req.Status) {
			return nil, ValidationError("invalid order status", map[string]string{"status": "oneof"})
		}
		order.Status = *req.Status
	}

	if req.Items != nil {
		order.Items = orderItems(*req.Items)
	}

	if req.Total != nil || req.Items != nil {
		submitted := order.Total
		if req.Total != nil {
			submitted = *req.Total
		}
		total, err := s.applyTotalPolicy(submitted, order.Items)
		if err != nil {
			return nil, err
		}
		order.Total = total
	}

	// nil items keep the stored lines
	if req.Items == nil {
		order.Items = nil
	}

	if err := s.orders.UpdateOrder(ctx, order); err != nil {
		return nil, fromStore(err, "order", id)
	}

	s.logger.Info("Order updated", zap.String("order_id", order.ID), zap.String("status", order.Status))
	return order, nil
}

// DeleteOrder removes an order. Decremented stock is not restored.
func (s *OrderService) DeleteOrder(ctx context.Context, actor Actor, id string) error {
	if _, err := s.GetOrder(ctx, actor, id); err != nil {
		return err
	}
	if err := s.orders.DeleteOrder(ctx, id); err != nil {
		return fromStore(err, "order", id)
	}
	s.logger.Info("Order deleted", zap.String("order_id", id))
	return nil
}

func orderItems(reqItems []validation.OrderItemRequest) []models.OrderItem {
	items := make([]models.OrderItem, len(reqItems))
	for i, item := range reqItems {
		items[i] = models.OrderItem{ProductID: item.ProductID, Quantity: item.Quantity, Price: amount(item.Price)}
	}
	return items
}

// amount reads a validated money field; validation guarantees it is present
func amount(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
