package store

import (
	"context"
	"fmt"

	"storefront/internal/models"
)

// CreateRefreshToken persists an issued refresh token
func (s *Store) CreateRefreshToken(ctx context.Context, t *models.RefreshToken) error {
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		t.ID, t.UserID, t.Token, t.ExpiresAt,
	).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("create refresh token: %w", classify(err))
	}
	return nil
}

// GetRefreshToken looks a refresh token up by its token string
func (s *Store) GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var t models.RefreshToken
	err := s.db.GetContext(ctx, &t,
		"SELECT id, user_id, token, expires_at, created_at FROM refresh_tokens WHERE token = $1", token)
	if err != nil {
		return nil, fmt.Errorf("get refresh token: %w", classify(err))
	}
	return &t, nil
}

// DeleteRefreshToken removes a refresh token by its token string
func (s *Store) DeleteRefreshToken(ctx context.Context, token string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE token = $1", token)
	if err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return expectRow(res, "refresh token")
}

// DeleteExpiredRefreshTokens purges tokens past their expiry and reports how many went
func (s *Store) DeleteExpiredRefreshTokens(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE expires_at < NOW()")
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	return res.RowsAffected()
}
