package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"storefront/internal/models"
	"storefront/internal/redisclient"
	"storefront/internal/store"
)

// memStore is an in-memory stand-in for *store.Store with the same error contract
type memStore struct {
	mu        sync.Mutex
	products  map[string]*models.Product
	orders    map[string]*models.Order
	users     map[string]*models.User
	tokens    map[string]*models.RefreshToken
	cards     map[string]*models.Card
	addresses map[string]*models.Address
	carts     map[string]*models.Cart

	failTokenDelete bool
	// beforeProductUpdate lets a test change the row between a service read and the update
	beforeProductUpdate func(old *models.Product)
}

func newMemStore() *memStore {
	return &memStore{
		products:  map[string]*models.Product{},
		orders:    map[string]*models.Order{},
		users:     map[string]*models.User{},
		tokens:    map[string]*models.RefreshToken{},
		cards:     map[string]*models.Card{},
		addresses: map[string]*models.Address{},
		carts:     map[string]*models.Cart{},
	}
}

func notFound(what, id string) error {
	return fmt.Errorf("%s %s: %w", what, id, store.ErrNotFound)
}

func cloneOrder(o *models.Order) *models.Order {
	c := *o
	c.Items = append([]models.OrderItem(nil), o.Items...)
	return &c
}

// products

func (m *memStore) CreateProduct(_ context.Context, p *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[p.ID]; ok {
		return store.ErrDuplicate
	}
	c := *p
	m.products[p.ID] = &c
	return nil
}

func (m *memStore) GetProductByID(_ context.Context, id string) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, notFound("product", id)
	}
	c := *p
	return &c, nil
}

func (m *memStore) ListProducts(_ context.Context, f store.ProductFilter) (*store.OffsetPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := []models.Product{}
	for _, p := range m.products {
		if f.Category == "" || p.Category == f.Category {
			items = append(items, *p)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return &store.OffsetPage{Items: items, Total: int64(len(items)), Page: 1, PageSize: len(items), TotalPages: 1}, nil
}

func (m *memStore) UpdateProduct(_ context.Context, p *models.Product) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.products[p.ID]
	if !ok {
		return 0, notFound("product", p.ID)
	}
	if m.beforeProductUpdate != nil {
		m.beforeProductUpdate(old)
	}
	previous := old.Stock
	c := *p
	m.products[p.ID] = &c
	return previous, nil
}

func (m *memStore) DeleteProduct(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return notFound("products", id)
	}
	delete(m.products, id)
	return nil
}

func (m *memStore) DecrementStock(_ context.Context, id string, qty int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return 0, notFound("product", id)
	}
	if p.Stock < qty {
		return 0, store.ErrInsufficientStock
	}
	p.Stock -= qty
	return p.Stock, nil
}

func (m *memStore) stock(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].Stock
}

// orders

func (m *memStore) CreateOrder(_ context.Context, o *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertOrder(o)
}

func (m *memStore) insertOrder(o *models.Order) error {
	if o.IdempotencyKey != nil {
		for _, existing := range m.orders {
			if existing.UserID == o.UserID && existing.IdempotencyKey != nil && *existing.IdempotencyKey == *o.IdempotencyKey {
				return store.ErrDuplicate
			}
		}
	}
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	m.orders[o.ID] = cloneOrder(o)
	return nil
}

func (m *memStore) PlaceOrderAtomic(_ context.Context, o *models.Order) ([]store.StockChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	reserved := map[string]int{}
	for _, item := range o.Items {
		p, ok := m.products[item.ProductID]
		if !ok {
			return nil, &store.StockError{ProductID: item.ProductID, Requested: item.Quantity, Err: store.ErrNotFound}
		}
		available := p.Stock - reserved[p.ID]
		if available < item.Quantity {
			return nil, &store.StockError{ProductID: p.ID, ProductName: p.Name, Available: available,
				Requested: item.Quantity, Err: store.ErrInsufficientStock}
		}
		reserved[p.ID] += item.Quantity
	}

	if err := m.insertOrder(o); err != nil {
		return nil, err
	}
	changes := make([]store.StockChange, 0, len(o.Items))
	for _, item := range o.Items {
		p := m.products[item.ProductID]
		p.Stock -= item.Quantity
		changes = append(changes, store.StockChange{ProductID: p.ID, Quantity: item.Quantity, Stock: p.Stock})
	}
	return changes, nil
}

func (m *memStore) GetOrderByID(_ context.Context, id string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, notFound("order", id)
	}
	return cloneOrder(o), nil
}

func (m *memStore) GetOrderByIdempotencyKey(_ context.Context, userID, key string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.UserID == userID && o.IdempotencyKey != nil && *o.IdempotencyKey == key {
			return cloneOrder(o), nil
		}
	}
	return nil, nil
}

func (m *memStore) ListOrders(_ context.Context, userID string) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	orders := []models.Order{}
	for _, o := range m.orders {
		if userID == "" || o.UserID == userID {
			orders = append(orders, *cloneOrder(o))
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
	return orders, nil
}

func (m *memStore) UpdateOrder(_ context.Context, o *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.orders[o.ID]
	if !ok {
		return notFound("order", o.ID)
	}
	if o.Items == nil {
		o.Items = append([]models.OrderItem(nil), existing.Items...)
	}
	o.UpdatedAt = time.Now()
	m.orders[o.ID] = cloneOrder(o)
	return nil
}

func (m *memStore) DeleteOrder(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return notFound("orders", id)
	}
	delete(m.orders, id)
	return nil
}

func (m *memStore) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

// users and tokens

func (m *memStore) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return store.ErrDuplicate
		}
	}
	c := *u
	m.users[u.ID] = &c
	return nil
}

func (m *memStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, notFound("user", id)
	}
	c := *u
	return &c, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, notFound("user", email)
}

func (m *memStore) ListUsers(_ context.Context) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := []models.User{}
	for _, u := range m.users {
		users = append(users, *u)
	}
	return users, nil
}

func (m *memStore) UpdateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return notFound("user", u.ID)
	}
	for _, existing := range m.users {
		if existing.ID != u.ID && existing.Email == u.Email {
			return store.ErrDuplicate
		}
	}
	c := *u
	m.users[u.ID] = &c
	return nil
}

func (m *memStore) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return notFound("users", id)
	}
	delete(m.users, id)
	return nil
}

func (m *memStore) CreateRefreshToken(_ context.Context, t *models.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[t.Token]; ok {
		return store.ErrDuplicate
	}
	c := *t
	m.tokens[t.Token] = &c
	return nil
}

func (m *memStore) GetRefreshToken(_ context.Context, token string) (*models.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[token]
	if !ok {
		return nil, notFound("refresh token", "")
	}
	c := *t
	return &c, nil
}

func (m *memStore) DeleteRefreshToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTokenDelete {
		return fmt.Errorf("connection reset")
	}
	if _, ok := m.tokens[token]; !ok {
		return notFound("refresh token", "")
	}
	delete(m.tokens, token)
	return nil
}

// cards and addresses share the default rule of the partial unique index

func (m *memStore) CreateCard(_ context.Context, c *models.Card) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.cards {
		if existing.UserID != c.UserID {
			continue
		}
		if c.IsDefault && existing.IsDefault {
			return store.ErrDefaultExists
		}
		if existing.Number == c.Number {
			return store.ErrDuplicate
		}
	}
	cp := *c
	m.cards[c.ID] = &cp
	return nil
}

func (m *memStore) GetCardByID(_ context.Context, id string) (*models.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cards[id]
	if !ok {
		return nil, notFound("card", id)
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) ListCardsByUser(_ context.Context, userID string) ([]models.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cards := []models.Card{}
	for _, c := range m.cards {
		if c.UserID == userID {
			cards = append(cards, *c)
		}
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].IsDefault && !cards[j].IsDefault })
	return cards, nil
}

func (m *memStore) UpdateCard(_ context.Context, c *models.Card) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cards[c.ID]; !ok {
		return notFound("card", c.ID)
	}
	if c.IsDefault {
		for _, existing := range m.cards {
			if existing.ID != c.ID && existing.UserID == c.UserID && existing.IsDefault {
				return store.ErrDefaultExists
			}
		}
	}
	cp := *c
	m.cards[c.ID] = &cp
	return nil
}

func (m *memStore) SetDefaultCard(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	target, ok := m.cards[id]
	if !ok || target.UserID != userID {
		return notFound("cards", id)
	}
	for _, c := range m.cards {
		if c.UserID == userID {
			c.IsDefault = c.ID == id
		}
	}
	return nil
}

func (m *memStore) DeleteCard(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cards[id]; !ok {
		return notFound("cards", id)
	}
	delete(m.cards, id)
	return nil
}

func (m *memStore) CreateAddress(_ context.Context, a *models.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.IsDefault {
		for _, existing := range m.addresses {
			if existing.UserID == a.UserID && existing.IsDefault {
				return store.ErrDefaultExists
			}
		}
	}
	cp := *a
	m.addresses[a.ID] = &cp
	return nil
}

func (m *memStore) GetAddressByID(_ context.Context, id string) (*models.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.addresses[id]
	if !ok {
		return nil, notFound("address", id)
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) ListAddressesByUser(_ context.Context, userID string) ([]models.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	addresses := []models.Address{}
	for _, a := range m.addresses {
		if a.UserID == userID {
			addresses = append(addresses, *a)
		}
	}
	return addresses, nil
}

func (m *memStore) UpdateAddress(_ context.Context, a *models.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.addresses[a.ID]; !ok {
		return notFound("address", a.ID)
	}
	if a.IsDefault {
		for _, existing := range m.addresses {
			if existing.ID != a.ID && existing.UserID == a.UserID && existing.IsDefault {
				return store.ErrDefaultExists
			}
		}
	}
	cp := *a
	m.addresses[a.ID] = &cp
	return nil
}

func (m *memStore) SetDefaultAddress(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	target, ok := m.addresses[id]
	if !ok || target.UserID != userID {
		return notFound("addresses", id)
	}
	for _, a := range m.addresses {
		if a.UserID == userID {
			a.IsDefault = a.ID == id
		}
	}
	return nil
}

func (m *memStore) DeleteAddress(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.addresses[id]; !ok {
		return notFound("addresses", id)
	}
	delete(m.addresses, id)
	return nil
}

// carts

func (m *memStore) CreateCart(_ context.Context, c *models.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	cp.Items = append([]models.CartItem(nil), c.Items...)
	m.carts[c.ID] = &cp
	return nil
}

func (m *memStore) GetCartByID(_ context.Context, id string) (*models.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[id]
	if !ok {
		return nil, notFound("cart", id)
	}
	cp := *c
	cp.Items = append([]models.CartItem(nil), c.Items...)
	return &cp, nil
}

func (m *memStore) ListCartsByUser(_ context.Context, userID string) ([]models.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	carts := []models.Cart{}
	for _, c := range m.carts {
		if c.UserID == userID {
			carts = append(carts, *c)
		}
	}
	return carts, nil
}

func (m *memStore) ReplaceCartItems(_ context.Context, c *models.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.carts[c.ID]
	if !ok {
		return notFound("cart", c.ID)
	}
	existing.Items = append([]models.CartItem(nil), c.Items...)
	return nil
}

func (m *memStore) DeleteCart(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.carts[id]; !ok {
		return notFound("carts", id)
	}
	delete(m.carts, id)
	return nil
}

// memCache records reads and invalidations

type memCache struct {
	mu          sync.Mutex
	products    map[string]models.Product
	versions    map[string]int64
	invalidated []string
	failReads   bool
	// afterVersionRead runs once a read-through has taken its version
	afterVersionRead func(id string)
}

func newMemCache() *memCache {
	return &memCache{products: map[string]models.Product{}, versions: map[string]int64{}}
}

func (c *memCache) ProductVersion(_ context.Context, id string) (int64, error) {
	c.mu.Lock()
	version := c.versions[id]
	hook := c.afterVersionRead
	c.mu.Unlock()
	if hook != nil {
		hook(id)
	}
	return version, nil
}

func (c *memCache) GetProduct(_ context.Context, id string) (*models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failReads {
		return nil, fmt.Errorf("redis unavailable")
	}
	p, ok := c.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (c *memCache) SetProduct(_ context.Context, p *models.Product, version int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[p.ID] != version {
		return false, nil
	}
	c.products[p.ID] = *p
	return true, nil
}

func (c *memCache) InvalidateProducts(_ context.Context, ids ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.products, id)
		c.versions[id]++
		c.invalidated = append(c.invalidated, id)
	}
	return nil
}

// memLocker mimics the SETNX lock

type memLocker struct {
	mu    sync.Mutex
	held  map[string]string
	calls int
}

func newMemLocker() *memLocker {
	return &memLocker{held: map[string]string{}}
}

func (l *memLocker) AcquireOrderLock(_ context.Context, userID, key string) (string, error) {
	key = userID + ":" + key
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if _, ok := l.held[key]; ok {
		return "", redisclient.ErrLockHeld
	}
	token := fmt.Sprintf("token-%d", l.calls)
	l.held[key] = token
	return token, nil
}

func (l *memLocker) ReleaseOrderLock(_ context.Context, userID, key, token string) error {
	key = userID + ":" + key
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}

// memEvents records published event types

type memEvents struct {
	mu     sync.Mutex
	types  []string
	failed []string
	deltas []int
}

func (e *memEvents) record(t string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.types = append(e.types, t)
}

func (e *memEvents) PublishOrderPlaced(_ context.Context, _ *models.Order, _ string) error {
	e.record(models.EventTypeOrderPlaced)
	return nil
}

func (e *memEvents) PublishOrderStockFailed(_ context.Context, orderID, _, productID, reason string) error {
	e.record(models.EventTypeOrderStockFailed)
	e.mu.Lock()
	e.failed = append(e.failed, fmt.Sprintf("%s|%s|%s", orderID, productID, reason))
	e.mu.Unlock()
	return nil
}

func (e *memEvents) PublishProductStockChanged(_ context.Context, _ string, delta, _ int, _ string) error {
	e.record(models.EventTypeProductStockChanged)
	e.mu.Lock()
	e.deltas = append(e.deltas, delta)
	e.mu.Unlock()
	return nil
}

func (e *memEvents) PublishProductChanged(_ context.Context, eventType, _ string) error {
	e.record(eventType)
	return nil
}

func (e *memEvents) count(t string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, got := range e.types {
		if got == t {
			n++
		}
	}
	return n
}

var (
	_ OrderRepository   = (*memStore)(nil)
	_ ProductRepository = (*memStore)(nil)
	_ UserRepository    = (*memStore)(nil)
	_ TokenRepository   = (*memStore)(nil)
	_ CardRepository    = (*memStore)(nil)
	_ AddressRepository = (*memStore)(nil)
	_ CartRepository    = (*memStore)(nil)
	_ ProductCache      = (*memCache)(nil)
	_ OrderLocker       = (*memLocker)(nil)
	_ Events            = (*memEvents)(nil)
)
