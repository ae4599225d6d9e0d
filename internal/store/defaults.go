package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Tables carrying a per-user is_default flag
const (
	tableCards     = "cards"
	tableAddresses = "addresses"
)

// ensureNoOtherDefault fails with ErrDefaultExists when userID already has a default row in
// table other than exceptID. The partial unique index catches whatever slips past this check.
func ensureNoOtherDefault(ctx context.Context, tx *sqlx.Tx, table, userID, exceptID string) error {
	var exists bool
	err := tx.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM "+table+" WHERE user_id = $1 AND is_default AND id <> $2)",
		userID, exceptID)
	if err != nil {
		return fmt.Errorf("check default %s: %w", table, err)
	}
	if exists {
		return ErrDefaultExists
	}
	return nil
}

// setDefault moves the default flag of userID to id in one transaction
func (s *Store) setDefault(ctx context.Context, table, userID, id string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var owner string
		err := tx.GetContext(ctx, &owner, "SELECT user_id FROM "+table+" WHERE id = $1 FOR UPDATE", id)
		if err != nil {
			return fmt.Errorf("get %s %s: %w", table, id, classify(err))
		}
		if owner != userID {
			return fmt.Errorf("get %s %s: %w", table, id, ErrNotFound)
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE "+table+" SET is_default = FALSE, updated_at = NOW() WHERE user_id = $1 AND is_default AND id <> $2",
			userID, id); err != nil {
			return fmt.Errorf("clear default %s: %w", table, err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE "+table+" SET is_default = TRUE, updated_at = NOW() WHERE id = $1", id); err != nil {
			return fmt.Errorf("set default %s: %w", table, classify(err))
		}
		return nil
	})
}
