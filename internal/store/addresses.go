package store

import (
	"context"
	"fmt"

	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
)

const addressColumns = `id, user_id, street, city, state, neighborhood, postal_code, exterior_number,
	interior_number, is_default, created_at, updated_at`

// CreateAddress inserts an address, a second default for the same user yields ErrDefaultExists
func (s *Store) CreateAddress(ctx context.Context, a *models.Address) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if a.IsDefault {
			if err := ensureNoOtherDefault(ctx, tx, tableAddresses, a.UserID, a.ID); err != nil {
				return err
			}
		}
		err := tx.QueryRowxContext(ctx, `
			INSERT INTO addresses (id, user_id, street, city, state, neighborhood, postal_code,
				exterior_number, interior_number, is_default)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING created_at, updated_at`,
			a.ID, a.UserID, a.Street, a.City, a.State, a.Neighborhood, a.PostalCode,
			a.ExteriorNumber, a.InteriorNumber, a.IsDefault,
		).Scan(&a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return fmt.Errorf("create address: %w", classify(err))
		}
		return nil
	})
}

// GetAddressByID retrieves an address by ID
func (s *Store) GetAddressByID(ctx context.Context, id string) (*models.Address, error) {
	var address models.Address
	if err := s.db.GetContext(ctx, &address, "SELECT "+addressColumns+" FROM addresses WHERE id = $1", id); err != nil {
		return nil, fmt.Errorf("get address %s: %w", id, classify(err))
	}
	return &address, nil
}

// ListAddressesByUser returns the addresses of one user, default first
func (s *Store) ListAddressesByUser(ctx context.Context, userID string) ([]models.Address, error) {
	addresses := []models.Address{}
	err := s.db.SelectContext(ctx, &addresses,
		"SELECT "+addressColumns+" FROM addresses WHERE user_id = $1 ORDER BY is_default DESC, created_at", userID)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	return addresses, nil
}

// UpdateAddress overwrites an address with the same default rule as CreateAddress
func (s *Store) UpdateAddress(ctx context.Context, a *models.Address) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if a.IsDefault {
			if err := ensureNoOtherDefault(ctx, tx, tableAddresses, a.UserID, a.ID); err != nil {
				return err
			}
		}
		err := tx.QueryRowxContext(ctx, `
			UPDATE addresses
			SET street = $2, city = $3, state = $4, neighborhood = $5, postal_code = $6,
			    exterior_number = $7, interior_number = $8, is_default = $9, updated_at = NOW()
			WHERE id = $1
			RETURNING created_at, updated_at`,
			a.ID, a.Street, a.City, a.State, a.Neighborhood, a.PostalCode,
			a.ExteriorNumber, a.InteriorNumber, a.IsDefault,
		).Scan(&a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update address %s: %w", a.ID, classify(err))
		}
		return nil
	})
}

// SetDefaultAddress makes id the only default address of userID
func (s *Store) SetDefaultAddress(ctx context.Context, userID, id string) error {
	return s.setDefault(ctx, tableAddresses, userID, id)
}

// DeleteAddress removes an address
func (s *Store) DeleteAddress(ctx context.Context, id string) error {
	return s.deleteByID(ctx, tableAddresses, id)
}
