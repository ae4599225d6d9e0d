package service

import (
	"errors"
	"fmt"

	"storefront/internal/store"
)

// Kind classifies a service error; the api layer maps each kind to one HTTP status
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindInsufficientStock
	KindInvalidCredentials
	KindInvalidRefreshToken
	KindUnauthorized
	KindForbidden
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindInvalidRefreshToken:
		return "invalid_refresh_token"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	}
	return "internal"
}

// Error is a domain error safe to show to clients
type Error struct {
	Kind    Kind
	Message string
	// ID names the offending record when there is one
	ID     string
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, KindInternal for anything that is not an *Error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func ValidationError(message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

func NotFoundError(resource, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %s not found", resource, id), ID: id}
}

func InsufficientStockError(productID, name string, available, requested int) *Error {
	label := productID
	if name != "" {
		label = fmt.Sprintf("%s (%s)", name, productID)
	}
	return &Error{
		Kind:    KindInsufficientStock,
		Message: fmt.Sprintf("insufficient stock for product %s: available %d, requested %d", label, available, requested),
		ID:      productID,
	}
}

func ConflictError(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

func ForbiddenError(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

func UnauthorizedError(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

var (
	ErrInvalidCredentials  = &Error{Kind: KindInvalidCredentials, Message: "invalid credentials"}
	ErrInvalidRefreshToken = &Error{Kind: KindInvalidRefreshToken, Message: "invalid refresh token"}
)

// fromStore translates store sentinels into domain errors for resource/id and wraps the rest
func fromStore(err error, resource, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return NotFoundError(resource, id)
	case errors.Is(err, store.ErrDefaultExists):
		return ConflictError(fmt.Sprintf("user already has a default %s", resource))
	case errors.Is(err, store.ErrDuplicate):
		return ConflictError(fmt.Sprintf("%s already exists", resource))
	case errors.Is(err, store.ErrInsufficientStock):
		return InsufficientStockError(id, "", 0, 0)
	}
	return fmt.Errorf("%s %s: %w", resource, id, err)
}
