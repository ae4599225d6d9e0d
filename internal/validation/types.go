package validation

import "github.com/shopspring/decimal"

// RegisterRequest is the payload for POST /auth/register
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// LoginRequest is the payload for POST /auth/login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshTokenRequest is the payload for POST /auth/refresh-token and /auth/logout
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// OrderItemRequest is one line of an order
type OrderItemRequest struct {
	ProductID string          `json:"product_id" validate:"required"`
	Quantity  int              `json:"quantity" validate:"required,min=1,max=2147483647"`
	Price     *decimal.Decimal `json:"price" validate:"required,gte=0"`
}

// CreateOrderRequest is the payload for POST /orders. Status is accepted but orders always
// start Pending.
type CreateOrderRequest struct {
	UserID    string             `json:"user_id" validate:"omitempty"`
	CardID    string             `json:"card_id" validate:"required"`
	AddressID string             `json:"address_id" validate:"required"`
	Items     []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
	Total     *decimal.Decimal   `json:"total" validate:"required,gte=0"`
	Status    string             `json:"status" validate:"omitempty,oneof=Pending Completed Cancelled"`
}

// UpdateOrderRequest is the payload for PUT /orders/:id, absent fields are left unchanged
type UpdateOrderRequest struct {
	CardID    *string             `json:"card_id" validate:"omitempty,min=1"`
	AddressID *string             `json:"address_id" validate:"omitempty,min=1"`
	Items     *[]OrderItemRequest `json:"items" validate:"omitempty,min=1,dive"`
	Total     *decimal.Decimal    `json:"total" validate:"omitempty,gte=0"`
	Status    *string             `json:"status" validate:"omitempty,oneof=Pending Completed Cancelled"`
}

// ProductRequest is the payload for POST /products and PUT /products/:id
type ProductRequest struct {
	Name        string           `json:"name" validate:"required,max=200"`
	Description string           `json:"description" validate:"required"`
	Price       *decimal.Decimal `json:"price" validate:"required,gte=0"`
	Stock       int              `json:"stock" validate:"gte=0,max=2147483647"`
	Category    string           `json:"category" validate:"required"`
	Brand       string           `json:"brand" validate:"required"`
	ImageURLs   []string         `json:"image_urls" validate:"omitempty,dive,url"`
}

// CardRequest is the payload for POST /cards and PUT /cards/:id
type CardRequest struct {
	Number     string `json:"number" validate:"required,numeric,min=12,max=19"`
	HolderName string `json:"holder_name" validate:"required"`
	Expiry     string `json:"expiry" validate:"required,card_expiry"`
	CVV        string `json:"cvv" validate:"required,numeric,min=3,max=4"`
	IsDefault  bool   `json:"is_default"`
}

// AddressRequest is the payload for POST /addresses and PUT /addresses/:id
type AddressRequest struct {
	Street         string `json:"street" validate:"required"`
	City           string `json:"city" validate:"required"`
	State          string `json:"state" validate:"required"`
	Neighborhood   string `json:"neighborhood" validate:"required"`
	PostalCode     string `json:"postal_code" validate:"required,max=12"`
	ExteriorNumber string `json:"exterior_number" validate:"required"`
	InteriorNumber string `json:"interior_number"`
	IsDefault      bool   `json:"is_default"`
}

// CartItemRequest is one line of a cart
type CartItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=2147483647"`
}

// CartRequest is the payload for POST /carts and PUT /carts/:id
type CartRequest struct {
	Items []CartItemRequest `json:"items" validate:"required,dive"`
}

// CreateUserRequest is the payload for POST /users
type CreateUserRequest struct {
	Name        string   `json:"name" validate:"required,max=120"`
	Email       string   `json:"email" validate:"required,email"`
	Password    string   `json:"password" validate:"required,min=6,max=72"`
	Role        string   `json:"role" validate:"omitempty,oneof=admin user guest"`
	Permissions []string `json:"permissions"`
}

// UpdateUserRequest is the payload for PUT /users/:id, absent fields are left unchanged
type UpdateUserRequest struct {
	Name        *string   `json:"name" validate:"omitempty,min=1,max=120"`
	Email       *string   `json:"email" validate:"omitempty,email"`
	Role        *string   `json:"role" validate:"omitempty,oneof=admin user guest"`
	Permissions *[]string `json:"permissions"`
}
