package service

import (
	"context"
	"fmt"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"
	"storefront/internal/validation"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProductService serves the catalog, reads go through the Redis product cache
type ProductService struct {
	products ProductRepository
	cache    ProductCache
	events   Events
	logger   *zap.Logger
}

// NewProductService creates a new product service
func NewProductService(products ProductRepository, cache ProductCache, events Events) *ProductService {
	return &ProductService{
		products: products,
		cache:    cache,
		events:   events,
		logger:   util.GetLogger(),
	}
}

// GetProduct returns a product, from cache when possible. Cache errors degrade to a database read.
func (s *ProductService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.GetProduct")
	defer span.End()

	cached, err := s.cache.GetProduct(ctx, id)
	switch {
	case err != nil:
		util.ProductCacheRequests.WithLabelValues("error").Inc()
		s.logger.Warn("Product cache read failed", zap.String("product_id", id), zap.Error(err))
	case cached != nil:
		util.ProductCacheRequests.WithLabelValues("hit").Inc()
		return cached, nil
	default:
		util.ProductCacheRequests.WithLabelValues("miss").Inc()
	}

	// An invalidation between this read and SetProduct bumps the version and the write is dropped
	version, versionErr := s.cache.ProductVersion(ctx, id)

	product, err := s.products.GetProductByID(ctx, id)
	if err != nil {
		return nil, fromStore(err, "product", id)
	}

	if versionErr != nil {
		s.logger.Warn("Product cache version read failed", zap.String("product_id", id), zap.Error(versionErr))
		return product, nil
	}
	written, err := s.cache.SetProduct(ctx, product, version)
	switch {
	case err != nil:
		s.logger.Warn("Product cache write failed", zap.String("product_id", id), zap.Error(err))
	case !written:
		util.ProductCacheRequests.WithLabelValues("stale_write_skipped").Inc()
	}
	return product, nil
}

// ListProducts returns one page of the catalog
func (s *ProductService) ListProducts(ctx context.Context, filter store.ProductFilter) (*store.OffsetPage, error) {
	page, err := s.products.ListProducts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return page, nil
}

// CreateProduct adds a product to the catalog
func (s *ProductService) CreateProduct(ctx context.Context, req *validation.ProductRequest) (*models.Product, error) {
	product := &models.Product{ID: uuid.New().String()}
	applyProductRequest(product, req)

	if err := s.products.CreateProduct(ctx, product); err != nil {
		return nil, fromStore(err, "product", product.ID)
	}

	s.logger.Info("Product created", zap.String("product_id", product.ID))
	return product, nil
}

// UpdateProduct overwrites a product, stock included. A stock change is announced like any other.
func (s *ProductService) UpdateProduct(ctx context.Context, id string, req *validation.ProductRequest) (*models.Product, error) {
	existing, err := s.products.GetProductByID(ctx, id)
	if err != nil {
		return nil, fromStore(err, "product", id)
	}

	applyProductRequest(existing, req)
	previousStock, err := s.products.UpdateProduct(ctx, existing)
	if err != nil {
		return nil, fromStore(err, "product", id)
	}

	s.invalidate(ctx, id)
	if err := s.events.PublishProductChanged(ctx, models.EventTypeProductUpdated, id); err != nil {
		s.logger.Error("Failed to publish ProductUpdated event", zap.Error(err))
	}
	if delta := existing.Stock - previousStock; delta != 0 {
		if err := s.events.PublishProductStockChanged(ctx, id, delta, existing.Stock, ""); err != nil {
			s.logger.Error("Failed to publish ProductStockChanged event", zap.Error(err))
		}
	}

	s.logger.Info("Product updated", zap.String("product_id", id), zap.Int("stock", existing.Stock))
	return existing, nil
}

// DeleteProduct removes a product. Orders referencing it keep the plain id.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.products.DeleteProduct(ctx, id); err != nil {
		return fromStore(err, "product", id)
	}

	s.invalidate(ctx, id)
	if err := s.events.PublishProductChanged(ctx, models.EventTypeProductDeleted, id); err != nil {
		s.logger.Error("Failed to publish ProductDeleted event", zap.Error(err))
	}

	s.logger.Info("Product deleted", zap.String("product_id", id))
	return nil
}

func (s *ProductService) invalidate(ctx context.Context, id string) {
	if err := s.cache.InvalidateProducts(ctx, id); err != nil {
		s.logger.Warn("Failed to invalidate product cache", zap.String("product_id", id), zap.Error(err))
	}
}

func applyProductRequest(p *models.Product, req *validation.ProductRequest) {
	p.Name = req.Name
	p.Description = req.Description
	p.Price = *req.Price
	p.Stock = req.Stock
	p.Category = req.Category
	p.Brand = req.Brand
	p.ImageURLs = req.ImageURLs
}
