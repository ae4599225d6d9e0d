package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/config"
	"storefront/internal/auth"
	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"
	"storefront/internal/validation"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UserService is the administrative user CRUD plus the caller's own profile
type UserService struct {
	users      UserRepository
	bcryptCost int
	logger     *zap.Logger
}

func NewUserService(users UserRepository, cfg config.AuthConfig) *UserService {
	return &UserService{users: users, bcryptCost: cfg.BcryptCost, logger: util.GetLogger()}
}

func (s *UserService) CreateUser(ctx context.Context, req *validation.CreateUserRequest) (*models.User, error) {
	hash, err := auth.HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	role := req.Role
	if role == "" {
		role = models.RoleUser
	}
	user := &models.User{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Email:        normalizeEmail(req.Email),
		PasswordHash: hash,
		Role:         role,
		Permissions:  req.Permissions,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ConflictError("user already exists")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User created", zap.String("user_id", user.ID), zap.String("role", role))
	return user, nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fromStore(err, "user", id)
	}
	return user, nil
}

// UpdateUser applies the fields present in req
func (s *UserService) UpdateUser(ctx context.Context, id string, req *validation.UpdateUserRequest) (*models.User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Email != nil {
		user.Email = normalizeEmail(*req.Email)
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if req.Permissions != nil {
		user.Permissions = *req.Permissions
	}

	if err := s.users.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ConflictError("email already in use")
		}
		return nil, fromStore(err, "user", id)
	}
	return user, nil
}

func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	if err := s.users.DeleteUser(ctx, id); err != nil {
		return fromStore(err, "user", id)
	}
	s.logger.Info("User deleted", zap.String("user_id", id))
	return nil
}
