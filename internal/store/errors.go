package store

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrDuplicate         = errors.New("duplicate record")
	ErrDefaultExists     = errors.New("another default record exists")
)

// Postgres error codes the store reacts to
const (
	codeUniqueViolation = "23505"
	codeCheckViolation  = "23514"
)

// Constraint names that signal a second default card or address
const (
	constraintCardDefault    = "uq_cards_default_per_user"
	constraintAddressDefault = "uq_addresses_default_per_user"
	constraintProductStock   = "products_stock_check"
)

// classify maps driver errors onto the store sentinels, leaving others untouched
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeUniqueViolation:
			if pqErr.Constraint == constraintCardDefault || pqErr.Constraint == constraintAddressDefault {
				return ErrDefaultExists
			}
			return ErrDuplicate
		case codeCheckViolation:
			if pqErr.Constraint == constraintProductStock {
				return ErrInsufficientStock
			}
		}
	}
	return err
}
