package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/validation"

	"github.com/google/uuid"
)

// CartService manages shopping carts. Carts never touch stock.
type CartService struct {
	carts    CartRepository
	products ProductRepository
}

func NewCartService(carts CartRepository, products ProductRepository) *CartService {
	return &CartService{carts: carts, products: products}
}

func (s *CartService) CreateCart(ctx context.Context, actor Actor, req *validation.CartRequest) (*models.Cart, error) {
	items, err := s.cartItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	cart := &models.Cart{ID: uuid.New().String(), UserID: actor.UserID, Items: items}
	if err := s.carts.CreateCart(ctx, cart); err != nil {
		return nil, fromStore(err, "cart", cart.ID)
	}
	return cart, nil
}

func (s *CartService) GetCart(ctx context.Context, actor Actor, id string) (*models.Cart, error) {
	cart, err := s.carts.GetCartByID(ctx, id)
	if err != nil {
		return nil, fromStore(err, "cart", id)
	}
	if !actor.canAccess(cart.UserID) {
		return nil, ForbiddenError("cart belongs to another user")
	}
	return cart, nil
}

func (s *CartService) ListCarts(ctx context.Context, actor Actor) ([]models.Cart, error) {
	carts, err := s.carts.ListCartsByUser(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list carts: %w", err)
	}
	return carts, nil
}

// ReplaceItems swaps the cart's item list for the submitted one
func (s *CartService) ReplaceItems(ctx context.Context, actor Actor, id string, req *validation.CartRequest) (*models.Cart, error) {
	cart, err := s.GetCart(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	items, err := s.cartItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	cart.Items = items
	if err := s.carts.ReplaceCartItems(ctx, cart); err != nil {
		return nil, fromStore(err, "cart", id)
	}
	return cart, nil
}

func (s *CartService) DeleteCart(ctx context.Context, actor Actor, id string) error {
	if _, err := s.GetCart(ctx, actor, id); err != nil {
		return err
	}
	return fromStore(s.carts.DeleteCart(ctx, id), "cart", id)
}

// cartItems checks every referenced product exists
func (s *CartService) cartItems(ctx context.Context, reqItems []validation.CartItemRequest) ([]models.CartItem, error) {
	items := make([]models.CartItem, len(reqItems))
	for i, item := range reqItems {
		if _, err := s.products.GetProductByID(ctx, item.ProductID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, NotFoundError("product", item.ProductID)
			}
			return nil, fmt.Errorf("failed to look up product %s: %w", item.ProductID, err)
		}
		items[i] = models.CartItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return items, nil
}
