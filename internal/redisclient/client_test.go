package redisclient

import (
	"context"
	"fmt"
	"testing"
	"time"

	"storefront/config"
	"storefront/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestClient(t *testing.T) *Client {
	t.Helper()
	if testing.Short() {
		t.Skip("Integration test - requires docker")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client, err := NewClient(config.RedisConfig{
		Addr:            fmt.Sprintf("%s:%s", host, port.Port()),
		ProductCacheTTL: time.Minute,
		OrderLockTTL:    5 * time.Second,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		client.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})
	return client
}

func TestProductCache(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	miss, err := client.GetProduct(ctx, "p-1")
	require.NoError(t, err)
	assert.Nil(t, miss)

	product := &models.Product{ID: "p-1", Name: "Mouse", Price: decimal.RequireFromString("19.99"), Stock: 7}
	version, err := client.ProductVersion(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), version)
	written, err := client.SetProduct(ctx, product, version)
	require.NoError(t, err)
	assert.True(t, written)

	hit, err := client.GetProduct(ctx, "p-1")
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, 7, hit.Stock)
	assert.True(t, product.Price.Equal(hit.Price))

	require.NoError(t, client.InvalidateProducts(ctx, "p-1", "p-2"))
	gone, err := client.GetProduct(ctx, "p-1")
	require.NoError(t, err)
	assert.Nil(t, gone)

	// a copy loaded before the invalidation is not written back
	written, err = client.SetProduct(ctx, product, version)
	require.NoError(t, err)
	assert.False(t, written)
	stale, err := client.GetProduct(ctx, "p-1")
	require.NoError(t, err)
	assert.Nil(t, stale)

	current, err := client.ProductVersion(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), current)
	written, err = client.SetProduct(ctx, product, current)
	require.NoError(t, err)
	assert.True(t, written)
}

func TestOrderLock(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	token, err := client.AcquireOrderLock(ctx, "user-1", "key-1")
	require.NoError(t, err)

	_, err = client.AcquireOrderLock(ctx, "user-1", "key-1")
	assert.ErrorIs(t, err, ErrLockHeld)

	// a stale token must not free someone else's lock
	require.NoError(t, client.ReleaseOrderLock(ctx, "user-1", "key-1", "not-the-owner"))
	_, err = client.AcquireOrderLock(ctx, "user-1", "key-1")
	assert.ErrorIs(t, err, ErrLockHeld)

	// the same key from another user is a different lock
	otherToken, err := client.AcquireOrderLock(ctx, "user-2", "key-1")
	require.NoError(t, err)
	require.NoError(t, client.ReleaseOrderLock(ctx, "user-2", "key-1", otherToken))

	require.NoError(t, client.ReleaseOrderLock(ctx, "user-1", "key-1", token))
	_, err = client.AcquireOrderLock(ctx, "user-1", "key-1")
	assert.NoError(t, err)
}
