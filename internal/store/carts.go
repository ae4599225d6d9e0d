package store

import (
	"context"
	"fmt"

	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// CreateCart inserts a cart with its items
func (s *Store) CreateCart(ctx context.Context, c *models.Cart) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx,
			"INSERT INTO carts (id, user_id) VALUES ($1, $2) RETURNING created_at, updated_at",
			c.ID, c.UserID,
		).Scan(&c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return fmt.Errorf("create cart: %w", classify(err))
		}
		return insertCartItems(ctx, tx, c)
	})
}

// GetCartByID retrieves a cart with its items
func (s *Store) GetCartByID(ctx context.Context, id string) (*models.Cart, error) {
	var cart models.Cart
	err := s.db.GetContext(ctx, &cart, "SELECT id, user_id, created_at, updated_at FROM carts WHERE id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("get cart %s: %w", id, classify(err))
	}

	cart.Items = []models.CartItem{}
	err = s.db.SelectContext(ctx, &cart.Items,
		"SELECT cart_id, position, product_id, quantity FROM cart_items WHERE cart_id = $1 ORDER BY position", id)
	if err != nil {
		return nil, fmt.Errorf("get cart items %s: %w", id, err)
	}
	return &cart, nil
}

// ListCartsByUser returns the carts of one user with their items
func (s *Store) ListCartsByUser(ctx context.Context, userID string) ([]models.Cart, error) {
	carts := []models.Cart{}
	err := s.db.SelectContext(ctx, &carts,
		"SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id = $1 ORDER BY created_at, id", userID)
	if err != nil {
		return nil, fmt.Errorf("list carts: %w", err)
	}
	if len(carts) == 0 {
		return carts, nil
	}

	ids := make([]string, len(carts))
	for i, c := range carts {
		ids[i] = c.ID
	}
	var items []models.CartItem
	err = s.db.SelectContext(ctx, &items,
		"SELECT cart_id, position, product_id, quantity FROM cart_items WHERE cart_id = ANY($1) ORDER BY cart_id, position",
		pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}

	byCart := make(map[string][]models.CartItem, len(carts))
	for _, item := range items {
		byCart[item.CartID] = append(byCart[item.CartID], item)
	}
	for i := range carts {
		carts[i].Items = byCart[carts[i].ID]
		if carts[i].Items == nil {
			carts[i].Items = []models.CartItem{}
		}
	}
	return carts, nil
}

// ReplaceCartItems swaps the whole item list of a cart
func (s *Store) ReplaceCartItems(ctx context.Context, c *models.Cart) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx,
			"UPDATE carts SET updated_at = NOW() WHERE id = $1 RETURNING user_id, created_at, updated_at",
			c.ID,
		).Scan(&c.UserID, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update cart %s: %w", c.ID, classify(err))
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE cart_id = $1", c.ID); err != nil {
			return fmt.Errorf("clear cart items: %w", err)
		}
		return insertCartItems(ctx, tx, c)
	})
}

// DeleteCart removes a cart and its items
func (s *Store) DeleteCart(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "carts", id)
}

func insertCartItems(ctx context.Context, tx *sqlx.Tx, c *models.Cart) error {
	for i := range c.Items {
		item := &c.Items[i]
		item.CartID = c.ID
		item.Position = i
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO cart_items (cart_id, position, product_id, quantity) VALUES ($1, $2, $3, $4)",
			item.CartID, item.Position, item.ProductID, item.Quantity); err != nil {
			return fmt.Errorf("create cart item: %w", classify(err))
		}
	}
	return nil
}
