package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Sink is where encoded events end up, *Producer in production
type Sink interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// EventPublisher builds and publishes domain events
type EventPublisher struct {
	sink   Sink
	logger *zap.Logger
}

// NewEventPublisher creates a new event publisher. A nil sink drops every event, which is how the
// service runs with Kafka disabled.
func NewEventPublisher(sink Sink) *EventPublisher {
	return &EventPublisher{sink: sink, logger: util.GetLogger()}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

func (ep *EventPublisher) publish(ctx context.Context, eventType, key string, event interface{}) error {
	if ep.sink == nil {
		return nil
	}
	if err := ep.sink.PublishEvent(ctx, key, event); err != nil {
		util.EventsPublishedTotal.WithLabelValues(eventType, "error").Inc()
		return err
	}
	util.EventsPublishedTotal.WithLabelValues(eventType, "ok").Inc()
	return nil
}

// PublishOrderPlaced publishes ORDER_PLACED
func (ep *EventPublisher) PublishOrderPlaced(ctx context.Context, order *models.Order, mode string) error {
	items := make([]models.OrderItemData, len(order.Items))
	for i, item := range order.Items {
		items[i] = models.OrderItemData{ProductID: item.ProductID, Quantity: item.Quantity, Price: item.Price}
	}
	event := &models.OrderPlacedEvent{
		BaseEvent: newBaseEvent(models.EventTypeOrderPlaced),
		OrderID:   order.ID,
		UserID:    order.UserID,
		Total:     order.Total,
		Mode:      mode,
		Items:     items,
	}
	return ep.publish(ctx, event.EventType, "order-"+order.ID, event)
}

// PublishOrderStockFailed publishes ORDER_STOCK_FAILED. orderID is empty when nothing was persisted.
func (ep *EventPublisher) PublishOrderStockFailed(ctx context.Context, orderID, userID, productID, reason string) error {
	event := &models.OrderStockFailedEvent{
		BaseEvent:      newBaseEvent(models.EventTypeOrderStockFailed),
		OrderID:        orderID,
		UserID:         userID,
		ProductID:      productID,
		Reason:         reason,
		OrderPersisted: orderID != "",
	}
	key := "order-" + orderID
	if orderID == "" {
		key = "product-" + productID
	}
	return ep.publish(ctx, event.EventType, key, event)
}

// PublishProductStockChanged publishes PRODUCT_STOCK_CHANGED
func (ep *EventPublisher) PublishProductStockChanged(ctx context.Context, productID string, delta, stock int, orderID string) error {
	event := &models.ProductStockChangedEvent{
		BaseEvent: newBaseEvent(models.EventTypeProductStockChanged),
		ProductID: productID,
		Delta:     delta,
		Stock:     stock,
		OrderID:   orderID,
	}
	return ep.publish(ctx, event.EventType, "product-"+productID, event)
}

// PublishProductChanged publishes PRODUCT_UPDATED or PRODUCT_DELETED
func (ep *EventPublisher) PublishProductChanged(ctx context.Context, eventType, productID string) error {
	event := &models.ProductChangedEvent{
		BaseEvent: newBaseEvent(eventType),
		ProductID: productID,
	}
	return ep.publish(ctx, eventType, "product-"+productID, event)
}

// EventHandler routes incoming events to registered callbacks
type EventHandler struct {
	onProductStockChanged func(context.Context, *models.ProductStockChangedEvent) error
	onProductChanged      func(context.Context, *models.ProductChangedEvent) error
	onOrderStockFailed    func(context.Context, *models.OrderStockFailedEvent) error
	logger                *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnProductStockChanged registers a handler for PRODUCT_STOCK_CHANGED events
func (eh *EventHandler) OnProductStockChanged(handler func(context.Context, *models.ProductStockChangedEvent) error) {
	eh.onProductStockChanged = handler
}

// OnProductChanged registers a handler for PRODUCT_UPDATED and PRODUCT_DELETED events
func (eh *EventHandler) OnProductChanged(handler func(context.Context, *models.ProductChangedEvent) error) {
	eh.onProductChanged = handler
}

// OnOrderStockFailed registers a handler for ORDER_STOCK_FAILED events
func (eh *EventHandler) OnOrderStockFailed(handler func(context.Context, *models.OrderStockFailedEvent) error) {
	eh.onOrderStockFailed = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeProductStockChanged:
		if eh.onProductStockChanged != nil {
			var event models.ProductStockChangedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal %s event: %w", baseEvent.EventType, err)
			}
			return eh.onProductStockChanged(ctx, &event)
		}

	case models.EventTypeProductUpdated, models.EventTypeProductDeleted:
		if eh.onProductChanged != nil {
			var event models.ProductChangedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal %s event: %w", baseEvent.EventType, err)
			}
			return eh.onProductChanged(ctx, &event)
		}

	case models.EventTypeOrderStockFailed:
		if eh.onOrderStockFailed != nil {
			var event models.OrderStockFailedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal %s event: %w", baseEvent.EventType, err)
			}
			return eh.onOrderStockFailed(ctx, &event)
		}

	case models.EventTypeOrderPlaced:
		// no consumer side effects

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
