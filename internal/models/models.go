package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// User roles
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
	RoleGuest = "guest"
)

// User represents a registered customer or administrator
type User struct {
	ID           string         `db:"id" json:"id"`
	Name         string         `db:"name" json:"name"`
	Email        string         `db:"email" json:"email"`
	PasswordHash string         `db:"password_hash" json:"-"`
	Role         string         `db:"role" json:"role"`
	Permissions  pq.StringArray `db:"permissions" json:"permissions"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// RefreshToken is a persisted, long lived token that can be exchanged for an access token
type RefreshToken struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Token     string    `db:"token" json:"-"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Product represents a catalog entry and its stock count
type Product struct {
	ID          string          `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Description string          `db:"description" json:"description"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Stock       int             `db:"stock" json:"stock"`
	Category    string          `db:"category" json:"category"`
	Brand       string          `db:"brand" json:"brand"`
	ImageURLs   pq.StringArray  `db:"image_urls" json:"image_urls"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// Order statuses
const (
	OrderStatusPending   = "Pending"
	OrderStatusCompleted = "Completed"
	OrderStatusCancelled = "Cancelled"
)

// ValidOrderStatus reports whether s is a known order status
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// Order represents a placed purchase order
type Order struct {
	ID             string          `db:"id" json:"id"`
	UserID         string          `db:"user_id" json:"user_id"`
	CardID         string          `db:"card_id" json:"card_id"`
	AddressID      string          `db:"address_id" json:"address_id"`
	Total          decimal.Decimal `db:"total" json:"total"`
	Status         string          `db:"status" json:"status"`
	IdempotencyKey *string         `db:"idempotency_key" json:"-"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
	Items          []OrderItem     `db:"-" json:"items"`
}

// OrderItem is one line of an order
type OrderItem struct {
	ID        int64           `db:"id" json:"-"`
	OrderID   string          `db:"order_id" json:"-"`
	Position  int             `db:"position" json:"-"`
	ProductID string          `db:"product_id" json:"product_id"`
	Quantity  int             `db:"quantity" json:"quantity"`
	Price     decimal.Decimal `db:"price" json:"price"`
}

// Subtotal returns quantity x price
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ItemsTotal sums the subtotal of every line
func ItemsTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// Card is a stored payment card
type Card struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	Number     string    `db:"number" json:"number"`
	HolderName string    `db:"holder_name" json:"holder_name"`
	Expiry     string    `db:"expiry" json:"expiry"`
	CVV        string    `db:"cvv" json:"-"`
	IsDefault  bool      `db:"is_default" json:"is_default"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Address is a shipping address
type Address struct {
	ID             string    `db:"id" json:"id"`
	UserID         string    `db:"user_id" json:"user_id"`
	Street         string    `db:"street" json:"street"`
	City           string    `db:"city" json:"city"`
	State          string    `db:"state" json:"state"`
	Neighborhood   string    `db:"neighborhood" json:"neighborhood"`
	PostalCode     string    `db:"postal_code" json:"postal_code"`
	ExteriorNumber string    `db:"exterior_number" json:"exterior_number"`
	InteriorNumber string    `db:"interior_number" json:"interior_number,omitempty"`
	IsDefault      bool      `db:"is_default" json:"is_default"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Cart is a user's shopping cart
type Cart struct {
	ID        string     `db:"id" json:"id"`
	UserID    string     `db:"user_id" json:"user_id"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	Items     []CartItem `db:"-" json:"items"`
}

// CartItem is one product line in a cart
type CartItem struct {
	CartID    string `db:"cart_id" json:"-"`
	Position  int    `db:"position" json:"-"`
	ProductID string `db:"product_id" json:"product_id"`
	Quantity  int    `db:"quantity" json:"quantity"`
}
