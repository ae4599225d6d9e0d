package store

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/models"
)

const productColumns = `id, name, description, price, stock, category, brand, image_urls, created_at, updated_at`

// ProductFilter narrows product listings
type ProductFilter struct {
	Category string
	Page     int
	PageSize int
}

// CreateProduct inserts a new product
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	if p.ImageURLs == nil {
		p.ImageURLs = []string{}
	}
	query := `
		INSERT INTO products (id, name, description, price, stock, category, brand, image_urls)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		p.ID, p.Name, p.Description, p.Price, p.Stock, p.Category, p.Brand, p.ImageURLs,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create product: %w", classify(err))
	}
	return nil
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, classify(err))
	}
	return &product, nil
}

// ListProducts returns one page of products, newest first
func (s *Store) ListProducts(ctx context.Context, f ProductFilter) (*OffsetPage, error) {
	page, pageSize, offset := normalizePage(f.Page, f.PageSize)

	var total int64
	if err := s.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM products WHERE ($1 = '' OR category = $1)", f.Category); err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products, `
		SELECT `+productColumns+`
		FROM products
		WHERE ($1 = '' OR category = $1)
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`,
		f.Category, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	return &OffsetPage{
		Items:      products,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	}, nil
}

// UpdateProduct overwrites every mutable column, stock included, and returns the stock the row
// held right before this statement. The old row is locked so a concurrent decrement lands either
// before or after it, never in between.
func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) (int, error) {
	if p.ImageURLs == nil {
		p.ImageURLs = []string{}
	}
	query := `
		UPDATE products p
		SET name = $2, description = $3, price = $4, stock = $5, category = $6,
		    brand = $7, image_urls = $8, updated_at = NOW()
		FROM (SELECT id, stock FROM products WHERE id = $1 FOR UPDATE) old
		WHERE p.id = old.id
		RETURNING old.stock, p.created_at, p.updated_at`

	var previousStock int
	err := s.db.QueryRowxContext(ctx, query,
		p.ID, p.Name, p.Description, p.Price, p.Stock, p.Category, p.Brand, p.ImageURLs,
	).Scan(&previousStock, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return 0, fmt.Errorf("update product %s: %w", p.ID, classify(err))
	}
	return previousStock, nil
}

// DeleteProduct removes a product
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "products", id)
}

// DecrementStock subtracts quantity only when enough stock is left and returns the new
// count. The check and the write are one statement, so concurrent callers cannot oversell.
func (s *Store) DecrementStock(ctx context.Context, productID string, quantity int) (int, error) {
	return decrementStock(ctx, s.db, productID, quantity)
}

func decrementStock(ctx context.Context, q queryer, productID string, quantity int) (int, error) {
	var stock int
	err := q.GetContext(ctx, &stock, `
		UPDATE products
		SET stock = stock - $1, updated_at = NOW()
		WHERE id = $2 AND stock >= $1
		RETURNING stock`,
		quantity, productID)
	if err == nil {
		return stock, nil
	}

	err = classify(err)
	if !errors.Is(err, ErrNotFound) {
		return 0, fmt.Errorf("decrement stock %s: %w", productID, err)
	}

	var exists bool
	if err := q.GetContext(ctx, &exists, "SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)", productID); err != nil {
		return 0, fmt.Errorf("check product %s: %w", productID, err)
	}
	if !exists {
		return 0, fmt.Errorf("decrement stock %s: %w", productID, ErrNotFound)
	}
	return 0, fmt.Errorf("decrement stock %s: %w", productID, ErrInsufficientStock)
}
