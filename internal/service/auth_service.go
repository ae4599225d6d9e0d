package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/config"
	"storefront/internal/auth"
	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"
	"storefront/internal/validation"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TokenPair is returned by login and refresh
type TokenPair struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

// AuthService handles registration, login and refresh token rotation
type AuthService struct {
	users      UserRepository
	tokens     TokenRepository
	manager    *auth.TokenManager
	bcryptCost int
	now        func() time.Time
	logger     *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(users UserRepository, tokens TokenRepository, manager *auth.TokenManager, cfg config.AuthConfig) *AuthService {
	return &AuthService{
		users:      users,
		tokens:     tokens,
		manager:    manager,
		bcryptCost: cfg.BcryptCost,
		now:        time.Now,
		logger:     util.GetLogger(),
	}
}

// Register creates a user with role user
func (s *AuthService) Register(ctx context.Context, req *validation.RegisterRequest) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.Register")
	defer span.End()

	email := normalizeEmail(req.Email)
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, ConflictError("user already exists")
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to check user: %w", err)
	}

	hash, err := auth.HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleUser,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ConflictError("user already exists")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User registered", zap.String("user_id", user.ID))
	return user, nil
}

// Login checks the credentials and issues an access and a refresh token
func (s *AuthService) Login(ctx context.Context, req *validation.LoginRequest) (*TokenPair, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.Login")
	defer span.End()

	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			util.AuthAttemptsTotal.WithLabelValues("login", "invalid_credentials").Inc()
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	ok, err := auth.CheckPassword(user.PasswordHash, req.Password)
	if err != nil {
		return nil, err
	}
	if !ok {
		util.AuthAttemptsTotal.WithLabelValues("login", "invalid_credentials").Inc()
		return nil, ErrInvalidCredentials
	}

	pair, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}

	util.AuthAttemptsTotal.WithLabelValues("login", "success").Inc()
	return pair, nil
}

// Refresh exchanges a persisted refresh token for a new pair. The old record is removed on a
// best-effort basis.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.Refresh")
	defer span.End()

	record, err := s.tokens.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			util.AuthAttemptsTotal.WithLabelValues("refresh", "invalid_token").Inc()
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("failed to load refresh token: %w", err)
	}

	userID, err := s.manager.ParseRefreshToken(refreshToken)
	if err != nil || userID != record.UserID || s.now().After(record.ExpiresAt) {
		util.AuthAttemptsTotal.WithLabelValues("refresh", "invalid_token").Inc()
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	pair, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}

	if err := s.tokens.DeleteRefreshToken(ctx, refreshToken); err != nil {
		s.logger.Warn("Failed to delete rotated refresh token",
			zap.String("user_id", user.ID),
			zap.Error(err))
	}

	util.AuthAttemptsTotal.WithLabelValues("refresh", "success").Inc()
	return pair, nil
}

// Logout forgets a refresh token, unknown tokens are ignored
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.tokens.DeleteRefreshToken(ctx, refreshToken); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}
	return nil
}

// Authenticate verifies an access token and returns the caller it identifies
func (s *AuthService) Authenticate(token string) (Actor, error) {
	claims, err := s.manager.ParseAccessToken(token)
	if err != nil {
		return Actor{}, UnauthorizedError("invalid or expired token")
	}
	return Actor{UserID: claims.UserID, Role: claims.Role}, nil
}

func (s *AuthService) issue(ctx context.Context, user *models.User) (*TokenPair, error) {
	access, err := s.manager.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}

	refresh, expiresAt, err := s.manager.IssueRefreshToken(user.ID)
	if err != nil {
		return nil, err
	}

	record := &models.RefreshToken{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Token:     refresh,
		ExpiresAt: expiresAt,
	}
	if err := s.tokens.CreateRefreshToken(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to persist refresh token: %w", err)
	}

	return &TokenPair{Token: access, RefreshToken: refresh}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
