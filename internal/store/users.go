package store

import (
	"context"
	"fmt"

	"storefront/internal/models"
)

const userColumns = `id, name, email, password_hash, role, permissions, created_at, updated_at`

// CreateUser inserts a new user, a taken email yields ErrDuplicate
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if u.Permissions == nil {
		u.Permissions = []string{}
	}
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, permissions)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.Permissions,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", classify(err))
	}
	return nil
}

// GetUserByID retrieves a user by ID
func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.GetContext(ctx, &user, "SELECT "+userColumns+" FROM users WHERE id = $1", id); err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, classify(err))
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.GetContext(ctx, &user, "SELECT "+userColumns+" FROM users WHERE email = $1", email); err != nil {
		return nil, fmt.Errorf("get user by email: %w", classify(err))
	}
	return &user, nil
}

// ListUsers returns every user ordered by creation
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	if err := s.db.SelectContext(ctx, &users, "SELECT "+userColumns+" FROM users ORDER BY created_at, id"); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// UpdateUser overwrites name, email, role and permissions
func (s *Store) UpdateUser(ctx context.Context, u *models.User) error {
	if u.Permissions == nil {
		u.Permissions = []string{}
	}
	err := s.db.QueryRowxContext(ctx, `
		UPDATE users
		SET name = $2, email = $3, role = $4, permissions = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		u.ID, u.Name, u.Email, u.Role, u.Permissions,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update user %s: %w", u.ID, classify(err))
	}
	return nil
}

// DeleteUser removes a user, refresh tokens go with it
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "users", id)
}
