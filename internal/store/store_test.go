package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("Integration test - requires docker")
	}

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:14-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "app",
			"POSTGRES_PASSWORD": "secret",
			"POSTGRES_DB":       "storefront_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := postgres.Host(ctx)
	require.NoError(t, err)
	port, err := postgres.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://app:secret@%s:%s/storefront_test?sslmode=disable", host, port.Port())
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)

	store := NewStoreFromDB(db)
	require.NoError(t, store.Migrate(ctx))

	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Logf("Failed to close database: %v", err)
		}
		if err := postgres.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})
	return store
}

func seedProduct(t *testing.T, s *Store, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		ID:          uuid.NewString(),
		Name:        "Keyboard",
		Description: "Mechanical keyboard",
		Price:       decimal.RequireFromString("49.90"),
		Stock:       stock,
		Category:    "peripherals",
		Brand:       "Acme",
	}
	require.NoError(t, s.CreateProduct(context.Background(), p))
	return p
}

func newOrder(items ...models.OrderItem) *models.Order {
	return &models.Order{
		ID:        uuid.NewString(),
		UserID:    "user-1",
		CardID:    "card-1",
		AddressID: "address-1",
		Total:     models.ItemsTotal(items),
		Status:    models.OrderStatusPending,
		Items:     items,
	}
}

func currentStock(t *testing.T, s *Store, id string) int {
	t.Helper()
	p, err := s.GetProductByID(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func TestStoreIntegration(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	t.Run("decrement stock", func(t *testing.T) {
		p := seedProduct(t, s, 5)

		stock, err := s.DecrementStock(ctx, p.ID, 3)
		require.NoError(t, err)
		assert.Equal(t, 2, stock)

		_, err = s.DecrementStock(ctx, p.ID, 3)
		assert.ErrorIs(t, err, ErrInsufficientStock)
		assert.Equal(t, 2, currentStock(t, s, p.ID))

		_, err = s.DecrementStock(ctx, "X", 1)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("update product returns stock held at write", func(t *testing.T) {
		p := seedProduct(t, s, 10)
		_, err := s.DecrementStock(ctx, p.ID, 4)
		require.NoError(t, err)

		// p still carries the stale stock of 10
		p.Stock = 12
		previous, err := s.UpdateProduct(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, 6, previous)
		assert.Equal(t, 12, currentStock(t, s, p.ID))

		_, err = s.UpdateProduct(ctx, &models.Product{ID: uuid.NewString(), Name: "ghost"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("concurrent decrements never oversell", func(t *testing.T) {
		p := seedProduct(t, s, 10)

		var wg sync.WaitGroup
		var mu sync.Mutex
		succeeded := 0
		for i := 0; i < 25; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.DecrementStock(ctx, p.ID, 1); err == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 10, succeeded)
		assert.Equal(t, 0, currentStock(t, s, p.ID))
	})

	t.Run("create and get order", func(t *testing.T) {
		p := seedProduct(t, s, 5)
		key := "key-" + uuid.NewString()
		order := newOrder(models.OrderItem{ProductID: p.ID, Quantity: 2, Price: p.Price})
		order.IdempotencyKey = &key

		require.NoError(t, s.CreateOrder(ctx, order))

		got, err := s.GetOrderByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, order.UserID, got.UserID)
		assert.True(t, order.Total.Equal(got.Total))
		require.Len(t, got.Items, 1)
		assert.Equal(t, p.ID, got.Items[0].ProductID)

		byKey, err := s.GetOrderByIdempotencyKey(ctx, order.UserID, key)
		require.NoError(t, err)
		require.NotNil(t, byKey)
		assert.Equal(t, order.ID, byKey.ID)

		dup := newOrder(models.OrderItem{ProductID: p.ID, Quantity: 1, Price: p.Price})
		dup.IdempotencyKey = &key
		assert.ErrorIs(t, s.CreateOrder(ctx, dup), ErrDuplicate)

		missing, err := s.GetOrderByIdempotencyKey(ctx, order.UserID, "unknown")
		require.NoError(t, err)
		assert.Nil(t, missing)

		// another user may reuse the key and never sees the first user's order
		foreign, err := s.GetOrderByIdempotencyKey(ctx, "user-2", key)
		require.NoError(t, err)
		assert.Nil(t, foreign)

		theirs := newOrder(models.OrderItem{ProductID: p.ID, Quantity: 1, Price: p.Price})
		theirs.UserID = "user-2"
		theirs.IdempotencyKey = &key
		require.NoError(t, s.CreateOrder(ctx, theirs))
	})

	t.Run("update and delete order leave stock alone", func(t *testing.T) {
		p := seedProduct(t, s, 5)
		order := newOrder(models.OrderItem{ProductID: p.ID, Quantity: 1, Price: p.Price})
		require.NoError(t, s.CreateOrder(ctx, order))

		order.Status = models.OrderStatusCompleted
		order.Items = nil
		require.NoError(t, s.UpdateOrder(ctx, order))
		assert.Len(t, order.Items, 1)

		require.NoError(t, s.DeleteOrder(ctx, order.ID))
		_, err := s.GetOrderByID(ctx, order.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, 5, currentStock(t, s, p.ID))

		assert.ErrorIs(t, s.DeleteOrder(ctx, order.ID), ErrNotFound)
	})

	t.Run("atomic placement commits everything", func(t *testing.T) {
		a := seedProduct(t, s, 5)
		b := seedProduct(t, s, 4)
		order := newOrder(
			models.OrderItem{ProductID: a.ID, Quantity: 3, Price: a.Price},
			models.OrderItem{ProductID: b.ID, Quantity: 4, Price: b.Price},
		)

		changes, err := s.PlaceOrderAtomic(ctx, order)
		require.NoError(t, err)
		require.Len(t, changes, 2)
		assert.Equal(t, 2, changes[0].Stock)
		assert.Equal(t, 0, changes[1].Stock)

		_, err = s.GetOrderByID(ctx, order.ID)
		assert.NoError(t, err)
	})

	t.Run("atomic placement rolls back on short stock", func(t *testing.T) {
		a := seedProduct(t, s, 5)
		b := seedProduct(t, s, 2)
		order := newOrder(
			models.OrderItem{ProductID: a.ID, Quantity: 3, Price: a.Price},
			models.OrderItem{ProductID: b.ID, Quantity: 3, Price: b.Price},
		)

		_, err := s.PlaceOrderAtomic(ctx, order)
		var stockErr *StockError
		require.True(t, errors.As(err, &stockErr))
		assert.ErrorIs(t, err, ErrInsufficientStock)
		assert.Equal(t, b.ID, stockErr.ProductID)
		assert.Equal(t, 2, stockErr.Available)

		assert.Equal(t, 5, currentStock(t, s, a.ID))
		assert.Equal(t, 2, currentStock(t, s, b.ID))
		_, err = s.GetOrderByID(ctx, order.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("atomic placement counts repeated products together", func(t *testing.T) {
		p := seedProduct(t, s, 4)
		order := newOrder(
			models.OrderItem{ProductID: p.ID, Quantity: 3, Price: p.Price},
			models.OrderItem{ProductID: p.ID, Quantity: 2, Price: p.Price},
		)

		_, err := s.PlaceOrderAtomic(ctx, order)
		assert.ErrorIs(t, err, ErrInsufficientStock)
		assert.Equal(t, 4, currentStock(t, s, p.ID))
	})

	t.Run("atomic placement reports unknown product", func(t *testing.T) {
		order := newOrder(models.OrderItem{ProductID: "X", Quantity: 1, Price: decimal.NewFromInt(1)})

		_, err := s.PlaceOrderAtomic(ctx, order)
		var stockErr *StockError
		require.True(t, errors.As(err, &stockErr))
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, "X", stockErr.ProductID)
	})

	t.Run("single default card per user", func(t *testing.T) {
		userID := uuid.NewString()
		first := &models.Card{ID: uuid.NewString(), UserID: userID, Number: "4111111111111111",
			HolderName: "Ana", Expiry: "12/30", CVV: "123", IsDefault: true}
		require.NoError(t, s.CreateCard(ctx, first))

		second := &models.Card{ID: uuid.NewString(), UserID: userID, Number: "5500000000000004",
			HolderName: "Ana", Expiry: "11/29", CVV: "321", IsDefault: true}
		assert.ErrorIs(t, s.CreateCard(ctx, second), ErrDefaultExists)

		second.IsDefault = false
		require.NoError(t, s.CreateCard(ctx, second))

		dup := &models.Card{ID: uuid.NewString(), UserID: userID, Number: first.Number,
			HolderName: "Ana", Expiry: "12/30", CVV: "123"}
		assert.ErrorIs(t, s.CreateCard(ctx, dup), ErrDuplicate)

		require.NoError(t, s.SetDefaultCard(ctx, userID, second.ID))
		cards, err := s.ListCardsByUser(ctx, userID)
		require.NoError(t, err)
		require.Len(t, cards, 2)
		assert.Equal(t, second.ID, cards[0].ID)
		assert.True(t, cards[0].IsDefault)
		assert.False(t, cards[1].IsDefault)

		assert.ErrorIs(t, s.SetDefaultCard(ctx, "someone-else", first.ID), ErrNotFound)
	})

	t.Run("concurrent default addresses", func(t *testing.T) {
		userID := uuid.NewString()
		errs := make(chan error, 2)
		for i := 0; i < 2; i++ {
			go func() {
				errs <- s.CreateAddress(ctx, &models.Address{
					ID: uuid.NewString(), UserID: userID, Street: "Main", City: "Springfield",
					State: "SP", Neighborhood: "Centro", PostalCode: "01000", ExteriorNumber: "1",
					IsDefault: true,
				})
			}()
		}

		var ok, conflict int
		for i := 0; i < 2; i++ {
			err := <-errs
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrDefaultExists):
				conflict++
			}
		}
		assert.Equal(t, 1, ok)
		assert.Equal(t, 1, conflict)
	})

	t.Run("users and refresh tokens", func(t *testing.T) {
		user := &models.User{ID: uuid.NewString(), Name: "Ana", Email: uuid.NewString() + "@example.com",
			PasswordHash: "hash", Role: models.RoleUser}
		require.NoError(t, s.CreateUser(ctx, user))

		clash := *user
		clash.ID = uuid.NewString()
		assert.ErrorIs(t, s.CreateUser(ctx, &clash), ErrDuplicate)

		token := &models.RefreshToken{ID: uuid.NewString(), UserID: user.ID, Token: uuid.NewString(),
			ExpiresAt: time.Now().Add(time.Hour)}
		require.NoError(t, s.CreateRefreshToken(ctx, token))

		got, err := s.GetRefreshToken(ctx, token.Token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.UserID)

		require.NoError(t, s.DeleteRefreshToken(ctx, token.Token))
		_, err = s.GetRefreshToken(ctx, token.Token)
		assert.ErrorIs(t, err, ErrNotFound)

		expired := &models.RefreshToken{ID: uuid.NewString(), UserID: user.ID, Token: uuid.NewString(),
			ExpiresAt: time.Now().Add(-time.Minute)}
		live := &models.RefreshToken{ID: uuid.NewString(), UserID: user.ID, Token: uuid.NewString(),
			ExpiresAt: time.Now().Add(time.Hour)}
		require.NoError(t, s.CreateRefreshToken(ctx, expired))
		require.NoError(t, s.CreateRefreshToken(ctx, live))

		removed, err := s.DeleteExpiredRefreshTokens(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, removed, int64(1))
		_, err = s.GetRefreshToken(ctx, expired.Token)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.GetRefreshToken(ctx, live.Token)
		assert.NoError(t, err)
	})

	t.Run("cart items keep their order", func(t *testing.T) {
		cart := &models.Cart{ID: uuid.NewString(), UserID: uuid.NewString(), Items: []models.CartItem{
			{ProductID: "p-2", Quantity: 1},
			{ProductID: "p-1", Quantity: 3},
		}}
		require.NoError(t, s.CreateCart(ctx, cart))

		cart.Items = []models.CartItem{{ProductID: "p-3", Quantity: 2}}
		require.NoError(t, s.ReplaceCartItems(ctx, cart))

		got, err := s.GetCartByID(ctx, cart.ID)
		require.NoError(t, err)
		require.Len(t, got.Items, 1)
		assert.Equal(t, "p-3", got.Items[0].ProductID)

		carts, err := s.ListCartsByUser(ctx, cart.UserID)
		require.NoError(t, err)
		assert.Len(t, carts, 1)
	})
}

func TestNormalizePage(t *testing.T) {
	page, size, offset := normalizePage(0, 0)
	assert.Equal(t, 1, page)
	assert.Equal(t, DefaultPageSize, size)
	assert.Equal(t, 0, offset)

	page, size, offset = normalizePage(3, 500)
	assert.Equal(t, 3, page)
	assert.Equal(t, MaxPageSize, size)
	assert.Equal(t, 200, offset)

	assert.Equal(t, 3, totalPages(41, 20))
	assert.Equal(t, 0, totalPages(0, 20))
}

func TestDistinctProductIDs(t *testing.T) {
	ids := distinctProductIDs([]models.OrderItem{
		{ProductID: "c"}, {ProductID: "a"}, {ProductID: "c"}, {ProductID: "b"},
	})
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}
