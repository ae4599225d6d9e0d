package service

import (
	"context"

	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/redisclient"
	"storefront/internal/store"
)

// The repositories below are implemented by *store.Store

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	PlaceOrderAtomic(ctx context.Context, order *models.Order) ([]store.StockChange, error)
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, userID, key string) (*models.Order, error)
	ListOrders(ctx context.Context, userID string) ([]models.Order, error)
	UpdateOrder(ctx context.Context, order *models.Order) error
	DeleteOrder(ctx context.Context, id string) error
}

type ProductRepository interface {
	CreateProduct(ctx context.Context, p *models.Product) error
	GetProductByID(ctx context.Context, id string) (*models.Product, error)
	ListProducts(ctx context.Context, f store.ProductFilter) (*store.OffsetPage, error)
	UpdateProduct(ctx context.Context, p *models.Product) (int, error)
	DeleteProduct(ctx context.Context, id string) error
	DecrementStock(ctx context.Context, productID string, quantity int) (int, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
	DeleteUser(ctx context.Context, id string) error
}

type TokenRepository interface {
	CreateRefreshToken(ctx context.Context, t *models.RefreshToken) error
	GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, token string) error
}

type CardRepository interface {
	CreateCard(ctx context.Context, c *models.Card) error
	GetCardByID(ctx context.Context, id string) (*models.Card, error)
	ListCardsByUser(ctx context.Context, userID string) ([]models.Card, error)
	UpdateCard(ctx context.Context, c *models.Card) error
	SetDefaultCard(ctx context.Context, userID, id string) error
	DeleteCard(ctx context.Context, id string) error
}

type AddressRepository interface {
	CreateAddress(ctx context.Context, a *models.Address) error
	GetAddressByID(ctx context.Context, id string) (*models.Address, error)
	ListAddressesByUser(ctx context.Context, userID string) ([]models.Address, error)
	UpdateAddress(ctx context.Context, a *models.Address) error
	SetDefaultAddress(ctx context.Context, userID, id string) error
	DeleteAddress(ctx context.Context, id string) error
}

type CartRepository interface {
	CreateCart(ctx context.Context, c *models.Cart) error
	GetCartByID(ctx context.Context, id string) (*models.Cart, error)
	ListCartsByUser(ctx context.Context, userID string) ([]models.Cart, error)
	ReplaceCartItems(ctx context.Context, c *models.Cart) error
	DeleteCart(ctx context.Context, id string) error
}

// ProductCache is implemented by *redisclient.Client
type ProductCache interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	ProductVersion(ctx context.Context, id string) (int64, error)
	SetProduct(ctx context.Context, product *models.Product, version int64) (bool, error)
	InvalidateProducts(ctx context.Context, ids ...string) error
}

// OrderLocker serializes one user's placements sharing an idempotency key, implemented by *redisclient.Client
type OrderLocker interface {
	AcquireOrderLock(ctx context.Context, userID, key string) (string, error)
	ReleaseOrderLock(ctx context.Context, userID, key, token string) error
}

// Events is implemented by *broker.EventPublisher
type Events interface {
	PublishOrderPlaced(ctx context.Context, order *models.Order, mode string) error
	PublishOrderStockFailed(ctx context.Context, orderID, userID, productID, reason string) error
	PublishProductStockChanged(ctx context.Context, productID string, delta, stock int, orderID string) error
	PublishProductChanged(ctx context.Context, eventType, productID string) error
}

// Actor is the authenticated caller of a service operation
type Actor struct {
	UserID string
	Role   string
}

// IsAdmin reports whether the actor may act on other users' records
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// canAccess reports whether the actor owns ownerID's records or is an admin
func (a Actor) canAccess(ownerID string) bool {
	return a.IsAdmin() || a.UserID == ownerID
}

var (
	_ OrderRepository   = (*store.Store)(nil)
	_ ProductRepository = (*store.Store)(nil)
	_ UserRepository    = (*store.Store)(nil)
	_ TokenRepository   = (*store.Store)(nil)
	_ CardRepository    = (*store.Store)(nil)
	_ AddressRepository = (*store.Store)(nil)
	_ CartRepository    = (*store.Store)(nil)
	_ ProductCache      = (*redisclient.Client)(nil)
	_ OrderLocker       = (*redisclient.Client)(nil)
	_ Events            = (*broker.EventPublisher)(nil)
)
