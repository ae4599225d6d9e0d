package store

import (
	"context"
	"fmt"
	"sort"

	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const orderColumns = `id, user_id, card_id, address_id, total, status, idempotency_key, created_at, updated_at`

// StockError identifies the line item that stopped an order placement
type StockError struct {
	ProductID   string
	ProductName string
	Available   int
	Requested   int
	Err         error
}

func (e *StockError) Error() string {
	if e.Err == ErrNotFound {
		return fmt.Sprintf("product %s: %v", e.ProductID, e.Err)
	}
	return fmt.Sprintf("product %s: %v (available=%d, requested=%d)", e.ProductID, e.Err, e.Available, e.Requested)
}

func (e *StockError) Unwrap() error { return e.Err }

// StockChange records one applied decrement
type StockChange struct {
	ProductID string
	Quantity  int
	Stock     int
}

// CreateOrder persists an order and its items, nothing else
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		return insertOrder(ctx, tx, order)
	})
}

// PlaceOrderAtomic locks every referenced product, validates all items, inserts the order and
// applies every decrement in one transaction. A *StockError aborts the whole placement.
func (s *Store) PlaceOrderAtomic(ctx context.Context, order *models.Order) ([]StockChange, error) {
	var changes []StockChange

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		ids := distinctProductIDs(order.Items)

		type lockedProduct struct {
			ID    string `db:"id"`
			Name  string `db:"name"`
			Stock int    `db:"stock"`
		}
		var locked []lockedProduct
		if err := tx.SelectContext(ctx, &locked,
			`SELECT id, name, stock FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`,
			pq.Array(ids)); err != nil {
			return fmt.Errorf("lock products: %w", err)
		}

		byID := make(map[string]lockedProduct, len(locked))
		for _, p := range locked {
			byID[p.ID] = p
		}

		reserved := make(map[string]int, len(ids))
		for _, item := range order.Items {
			p, ok := byID[item.ProductID]
			if !ok {
				return &StockError{ProductID: item.ProductID, Requested: item.Quantity, Err: ErrNotFound}
			}
			available := p.Stock - reserved[p.ID]
			if available < item.Quantity {
				return &StockError{
					ProductID:   p.ID,
					ProductName: p.Name,
					Available:   available,
					Requested:   item.Quantity,
					Err:         ErrInsufficientStock,
				}
			}
			reserved[p.ID] += item.Quantity
		}

		if err := insertOrder(ctx, tx, order); err != nil {
			return err
		}

		changes = make([]StockChange, 0, len(order.Items))
		for _, item := range order.Items {
			stock, err := decrementStock(ctx, tx, item.ProductID, item.Quantity)
			if err != nil {
				return err
			}
			changes = append(changes, StockChange{ProductID: item.ProductID, Quantity: item.Quantity, Stock: stock})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}

// GetOrderByID retrieves an order with its items
func (s *Store) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := s.db.GetContext(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id); err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, classify(err))
	}

	items, err := s.orderItems(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return &order, nil
}

// GetOrderByIdempotencyKey returns nil, nil when none of userID's orders carries the key
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, userID, key string) (*models.Order, error) {
	var id string
	err := s.db.GetContext(ctx, &id,
		"SELECT id FROM orders WHERE user_id = $1 AND idempotency_key = $2", userID, key)
	if err != nil {
		if classify(err) == ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get order by idempotency key: %w", err)
	}
	return s.GetOrderByID(ctx, id)
}

// ListOrders returns orders newest first, all users when userID is empty
func (s *Store) ListOrders(ctx context.Context, userID string) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE ($1 = '' OR user_id = $1)
		ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}

	var items []models.OrderItem
	err = s.db.SelectContext(ctx, &items, `
		SELECT id, order_id, position, product_id, quantity, price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}

	byOrder := make(map[string][]models.OrderItem, len(orders))
	for _, item := range items {
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}
	for i := range orders {
		orders[i].Items = byOrder[orders[i].ID]
	}
	return orders, nil
}

// UpdateOrder overwrites the order header and, when Items is non-nil, its items.
// Stock is never touched.
func (s *Store) UpdateOrder(ctx context.Context, order *models.Order) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx, `
			UPDATE orders
			SET user_id = $2, card_id = $3, address_id = $4, total = $5, status = $6, updated_at = NOW()
			WHERE id = $1
			RETURNING created_at, updated_at`,
			order.ID, order.UserID, order.CardID, order.AddressID, order.Total, order.Status,
		).Scan(&order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update order %s: %w", order.ID, classify(err))
		}

		if order.Items == nil {
			items, err := s.orderItems(ctx, tx, order.ID)
			if err != nil {
				return err
			}
			order.Items = items
			return nil
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM order_items WHERE order_id = $1", order.ID); err != nil {
			return fmt.Errorf("clear order items: %w", err)
		}
		return insertOrderItems(ctx, tx, order)
	})
}

// DeleteOrder removes an order and its items. Stock is never restored.
func (s *Store) DeleteOrder(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "orders", id)
}

func (s *Store) orderItems(ctx context.Context, q queryer, orderID string) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	err := q.SelectContext(ctx, &items, `
		SELECT id, order_id, position, product_id, quantity, price
		FROM order_items
		WHERE order_id = $1
		ORDER BY position`, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order items %s: %w", orderID, err)
	}
	return items, nil
}

func insertOrder(ctx context.Context, tx *sqlx.Tx, order *models.Order) error {
	err := tx.QueryRowxContext(ctx, `
		INSERT INTO orders (id, user_id, card_id, address_id, total, status, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		order.ID, order.UserID, order.CardID, order.AddressID, order.Total, order.Status, order.IdempotencyKey,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create order: %w", classify(err))
	}
	return insertOrderItems(ctx, tx, order)
}

func insertOrderItems(ctx context.Context, tx *sqlx.Tx, order *models.Order) error {
	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		item.Position = i
		err := tx.QueryRowxContext(ctx, `
			INSERT INTO order_items (order_id, position, product_id, quantity, price)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			item.OrderID, item.Position, item.ProductID, item.Quantity, item.Price,
		).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("create order item: %w", classify(err))
		}
	}
	return nil
}

// distinctProductIDs returns the referenced product ids sorted, the lock order for FOR UPDATE
func distinctProductIDs(items []models.OrderItem) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	sort.Strings(ids)
	return ids
}
