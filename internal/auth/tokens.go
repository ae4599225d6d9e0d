package auth

import (
	"errors"
	"fmt"
	"time"

	"storefront/config"
	"storefront/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken covers bad signatures, wrong algorithms, malformed and expired tokens
var ErrInvalidToken = errors.New("invalid token")

// AccessClaims is the payload of an access token
type AccessClaims struct {
	UserID string `json:"uid"`
	Role   string `json:"role"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies access and refresh tokens with separate HS256 secrets
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenManager creates a token manager from the auth config
func NewTokenManager(cfg config.AuthConfig) *TokenManager {
	return &TokenManager{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTokenTTL,
		refreshTTL:    cfg.RefreshTokenTTL,
		now:           time.Now,
	}
}

// IssueAccessToken signs a short lived token carrying the user's identity and role
func (m *TokenManager) IssueAccessToken(user *models.User) (string, error) {
	now := m.now()
	claims := AccessClaims{
		UserID: user.ID,
		Role:   user.Role,
		Name:   user.Name,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.accessSecret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// IssueRefreshToken signs a long lived token for userID and returns it with its expiry.
// Every token carries a fresh jti so two issued in the same second never collide.
func (m *TokenManager) IssueRefreshToken(userID string) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(m.refreshTTL)
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.refreshSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, expiresAt, nil
}

// ParseAccessToken verifies an access token and returns its claims
func (m *TokenManager) ParseAccessToken(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := m.parse(token, claims, m.accessSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

// ParseRefreshToken verifies a refresh token and returns the user id it was issued to
func (m *TokenManager) ParseRefreshToken(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	if err := m.parse(token, claims, m.refreshSecret); err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (m *TokenManager) parse(token string, claims jwt.Claims, secret []byte) error {
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !parsed.Valid {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return nil
}
