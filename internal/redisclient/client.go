package redisclient

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/config"
	"storefront/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

//go:embed scripts/release_lock.lua
var releaseLockScript string

//go:embed scripts/set_if_version.lua
var setIfVersionScript string

// ErrLockHeld is returned when another caller owns the lock
var ErrLockHeld = errors.New("lock held by another request")

type Client struct {
	rdb           *redis.Client
	releaseScript *redis.Script
	setScript     *redis.Script
	productTTL    time.Duration
	lockTTL       time.Duration
}

// NewClient creates a new Redis client with the unlock script loaded
func NewClient(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:           rdb,
		releaseScript: redis.NewScript(releaseLockScript),
		setScript:     redis.NewScript(setIfVersionScript),
		productTTL:    cfg.ProductCacheTTL,
		lockTTL:       cfg.OrderLockTTL,
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Ping checks the Redis connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func productKey(id string) string {
	return fmt.Sprintf("product:%s", id)
}

func productVersionKey(id string) string {
	return fmt.Sprintf("product:version:%s", id)
}

func lockKey(userID, key string) string {
	return fmt.Sprintf("lock:order:%s:%s", userID, key)
}

// GetProduct returns the cached product, nil on a miss
func (c *Client) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	raw, err := c.rdb.Get(ctx, productKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cached product %s: %w", id, err)
	}

	var product models.Product
	if err := json.Unmarshal(raw, &product); err != nil {
		return nil, fmt.Errorf("decode cached product %s: %w", id, err)
	}
	return &product, nil
}

// ProductVersion returns the invalidation counter of a product, 0 when it was never invalidated.
// Read it before loading the product from the database and hand it to SetProduct.
func (c *Client) ProductVersion(ctx context.Context, id string) (int64, error) {
	version, err := c.rdb.Get(ctx, productVersionKey(id)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("get product version %s: %w", id, err)
	}
	return version, nil
}

// SetProduct caches a product for the configured TTL unless the product was invalidated after
// version was read. It reports whether the entry was written.
func (c *Client) SetProduct(ctx context.Context, product *models.Product, version int64) (bool, error) {
	raw, err := json.Marshal(product)
	if err != nil {
		return false, fmt.Errorf("encode product %s: %w", product.ID, err)
	}
	written, err := c.setScript.Run(ctx, c.rdb,
		[]string{productKey(product.ID), productVersionKey(product.ID)},
		raw, version, c.productTTL.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("set product script failed: %w", err)
	}
	return written == 1, nil
}

// InvalidateProducts drops cached entries for the given ids and bumps their versions, so a
// read that started before the invalidation cannot write its copy back
func (c *Client) InvalidateProducts(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Del(ctx, productKey(id))
			pipe.Incr(ctx, productVersionKey(id))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidate products: %w", err)
	}
	return nil
}

// AcquireOrderLock takes the placement lock for one user's idempotency key. The returned token
// must be handed back to ReleaseOrderLock. ErrLockHeld means a request with the same key is in flight.
func (c *Client) AcquireOrderLock(ctx context.Context, userID, key string) (string, error) {
	token := uuid.NewString()
	ok, err := c.rdb.SetNX(ctx, lockKey(userID, key), token, c.lockTTL).Result()
	if err != nil {
		return "", fmt.Errorf("acquire order lock: %w", err)
	}
	if !ok {
		return "", ErrLockHeld
	}
	return token, nil
}

// ReleaseOrderLock deletes the lock only if token still owns it
func (c *Client) ReleaseOrderLock(ctx context.Context, userID, key, token string) error {
	if _, err := c.releaseScript.Run(ctx, c.rdb, []string{lockKey(userID, key)}, token).Result(); err != nil {
		return fmt.Errorf("release lock script failed: %w", err)
	}
	return nil
}
