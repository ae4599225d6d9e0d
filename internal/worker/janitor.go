package worker

import (
	"context"
	"time"

	"storefront/internal/util"

	"go.uber.org/zap"
)

// TokenStore is the refresh token storage the janitor sweeps
type TokenStore interface {
	DeleteExpiredRefreshTokens(ctx context.Context) (int64, error)
}

// TokenJanitor periodically removes expired refresh token records
type TokenJanitor struct {
	tokens   TokenStore
	interval time.Duration
	logger   *zap.Logger
}

// NewTokenJanitor creates a janitor sweeping every interval
func NewTokenJanitor(tokens TokenStore, interval time.Duration) *TokenJanitor {
	if interval <= 0 {
		interval = time.Hour
	}
	return &TokenJanitor{tokens: tokens, interval: interval, logger: util.GetLogger()}
}

// Start sweeps once immediately and then on every tick until ctx is cancelled
func (j *TokenJanitor) Start(ctx context.Context) error {
	j.logger.Info("Starting token janitor", zap.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		j.sweep(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (j *TokenJanitor) sweep(ctx context.Context) {
	removed, err := j.tokens.DeleteExpiredRefreshTokens(ctx)
	if err != nil {
		if ctx.Err() == nil {
			j.logger.Error("Failed to delete expired refresh tokens", zap.Error(err))
		}
		return
	}
	if removed > 0 {
		j.logger.Info("Expired refresh tokens deleted", zap.Int64("count", removed))
	}
}
