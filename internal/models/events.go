package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderPlaced         = "ORDER_PLACED"
	EventTypeOrderStockFailed    = "ORDER_STOCK_FAILED"
	EventTypeProductStockChanged = "PRODUCT_STOCK_CHANGED"
	EventTypeProductUpdated      = "PRODUCT_UPDATED"
	EventTypeProductDeleted      = "PRODUCT_DELETED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent published when an order and all of its stock decrements succeeded
type OrderPlacedEvent struct {
	BaseEvent
	OrderID string          `json:"order_id"`
	UserID  string          `json:"user_id"`
	Total   decimal.Decimal `json:"total"`
	Mode    string          `json:"mode"`
	Items   []OrderItemData `json:"items"`
}

// OrderStockFailedEvent published when placement stopped on a missing product or short stock.
// OrderPersisted tells consumers whether a Pending order was left behind.
type OrderStockFailedEvent struct {
	BaseEvent
	OrderID        string `json:"order_id,omitempty"`
	UserID         string `json:"user_id"`
	ProductID      string `json:"product_id"`
	Reason         string `json:"reason"`
	OrderPersisted bool   `json:"order_persisted"`
}

// ProductStockChangedEvent published after every stock mutation
type ProductStockChangedEvent struct {
	BaseEvent
	ProductID string `json:"product_id"`
	Delta     int    `json:"delta"`
	Stock     int    `json:"stock"`
	OrderID   string `json:"order_id,omitempty"`
}

// ProductChangedEvent published when a product is updated or deleted by an administrator
type ProductChangedEvent struct {
	BaseEvent
	ProductID string `json:"product_id"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}
