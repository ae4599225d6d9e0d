package store

import (
	"context"
	"fmt"

	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
)

const cardColumns = `id, user_id, number, holder_name, expiry, cvv, is_default, created_at, updated_at`

// CreateCard inserts a card. A second default for the same user yields ErrDefaultExists and a
// repeated number yields ErrDuplicate.
func (s *Store) CreateCard(ctx context.Context, c *models.Card) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if c.IsDefault {
			if err := ensureNoOtherDefault(ctx, tx, tableCards, c.UserID, c.ID); err != nil {
				return err
			}
		}
		err := tx.QueryRowxContext(ctx, `
			INSERT INTO cards (id, user_id, number, holder_name, expiry, cvv, is_default)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at, updated_at`,
			c.ID, c.UserID, c.Number, c.HolderName, c.Expiry, c.CVV, c.IsDefault,
		).Scan(&c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return fmt.Errorf("create card: %w", classify(err))
		}
		return nil
	})
}

// GetCardByID retrieves a card by ID
func (s *Store) GetCardByID(ctx context.Context, id string) (*models.Card, error) {
	var card models.Card
	if err := s.db.GetContext(ctx, &card, "SELECT "+cardColumns+" FROM cards WHERE id = $1", id); err != nil {
		return nil, fmt.Errorf("get card %s: %w", id, classify(err))
	}
	return &card, nil
}

// ListCardsByUser returns the cards of one user, default first
func (s *Store) ListCardsByUser(ctx context.Context, userID string) ([]models.Card, error) {
	cards := []models.Card{}
	err := s.db.SelectContext(ctx, &cards,
		"SELECT "+cardColumns+" FROM cards WHERE user_id = $1 ORDER BY is_default DESC, created_at", userID)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	return cards, nil
}

// UpdateCard overwrites a card with the same default rule as CreateCard
func (s *Store) UpdateCard(ctx context.Context, c *models.Card) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if c.IsDefault {
			if err := ensureNoOtherDefault(ctx, tx, tableCards, c.UserID, c.ID); err != nil {
				return err
			}
		}
		err := tx.QueryRowxContext(ctx, `
			UPDATE cards
			SET number = $2, holder_name = $3, expiry = $4, cvv = $5, is_default = $6, updated_at = NOW()
			WHERE id = $1
			RETURNING created_at, updated_at`,
			c.ID, c.Number, c.HolderName, c.Expiry, c.CVV, c.IsDefault,
		).Scan(&c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update card %s: %w", c.ID, classify(err))
		}
		return nil
	})
}

// SetDefaultCard makes id the only default card of userID
func (s *Store) SetDefaultCard(ctx context.Context, userID, id string) error {
	return s.setDefault(ctx, tableCards, userID, id)
}

// DeleteCard removes a card
func (s *Store) DeleteCard(ctx context.Context, id string) error {
	return s.deleteByID(ctx, tableCards, id)
}
