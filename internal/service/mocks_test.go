package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/fulfillment-service/internal/cache"
	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
	"github.com/fjod/go_cart/fulfillment-service/internal/repository"
	"github.com/fjod/go_cart/fulfillment-service/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// --- store factories ---

type storeFactory struct {
	name string
	open func(t *testing.T) repository.Store
}

func storeFactories() []storeFactory {
	return []storeFactory{
		{name: "memory", open: func(t *testing.T) repository.Store {
			return store.NewMemoryStore()
		}},
		{name: "sqlite", open: func(t *testing.T) repository.Store {
			repo, err := repository.NewSQLiteRepository(":memory:")
			require.NoError(t, err)
			require.NoError(t, repo.RunMigrations(""))
			t.Cleanup(func() { repo.Close() })
			return repo
		}},
	}
}

// concurrentStoreFactories adds Postgres, the only backend whose transactions
// actually overlap. It needs docker and is skipped in short mode.
func concurrentStoreFactories() []storeFactory {
	return append(storeFactories(), storeFactory{name: "postgres", open: openPostgres})
}

func openPostgres(t *testing.T) repository.Store {
	if testing.Short() {
		t.Skip("postgres container tests are skipped in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	repo, err := repository.NewPostgresRepository(&repository.Credentials{
		Host:     host,
		Port:     port.Int(),
		User:     "testuser",
		Password: "testpass",
		DBName:   "testdb",
	})
	require.NoError(t, err)
	require.NoError(t, repo.RunMigrations(""))
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedProduct(t *testing.T, st repository.Store, id int64, name, price string, stock int) {
	t.Helper()
	err := st.Inventory().UpsertProduct(context.Background(), &domain.Product{
		ID:        id,
		Name:      name,
		UnitPrice: decimal.RequireFromString(price),
		Stock:     stock,
	})
	require.NoError(t, err)
}

func addToCart(t *testing.T, st repository.Store, userID, productID int64, qty int) {
	t.Helper()
	err := st.Carts().AddItem(context.Background(), domain.CartItem{
		UserID:    userID,
		ProductID: productID,
		Quantity:  qty,
		AddedAt:   time.Now().UTC(),
	})
	require.NoError(t, err)
}

func stockOf(t *testing.T, st repository.Store, productID int64) int {
	t.Helper()
	p, err := st.Inventory().GetProduct(context.Background(), productID)
	require.NoError(t, err)
	return p.Stock
}

func cartOf(t *testing.T, st repository.Store, userID int64) []domain.CartItem {
	t.Helper()
	items, err := st.Carts().ListItems(context.Background(), userID)
	require.NoError(t, err)
	return items
}

// steppingClock returns a clock that advances one second on every call, so
// orders created one after another never share a timestamp.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

var (
	customer  = domain.NewAuthContext(1, domain.RoleCustomer)
	customer2 = domain.NewAuthContext(2, domain.RoleCustomer)
	admin     = domain.NewAuthContext(100, domain.RoleAdmin)
	sales     = domain.NewAuthContext(101, domain.RoleSales)
)

// --- fault injection ---

// faultyStore wraps a real store and fails selected steps inside WithinTx.
type faultyStore struct {
	repository.Store
	saveErr   error
	appendErr error
	// onFind runs after FindByID inside a transaction, before the result is returned
	onFind func(order *domain.Order)
	// beforeClear runs inside the transaction just before the cart lines are cleared
	beforeClear func(ctx context.Context, carts repository.CartStore)
}

func (f *faultyStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return f.Store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return fn(ctx, faultyTx{Tx: tx, f: f})
	})
}

type faultyTx struct {
	repository.Tx
	f *faultyStore
}

func (t faultyTx) Carts() repository.CartStore {
	return faultyCarts{CartStore: t.Tx.Carts(), f: t.f}
}

func (t faultyTx) Orders() repository.OrderLedger {
	return faultyLedger{OrderLedger: t.Tx.Orders(), f: t.f}
}

func (t faultyTx) Outbox() repository.Outbox {
	return faultyOutbox{Outbox: t.Tx.Outbox(), f: t.f}
}

type faultyLedger struct {
	repository.OrderLedger
	f *faultyStore
}

func (l faultyLedger) Save(ctx context.Context, order *domain.Order) error {
	if l.f.saveErr != nil {
		return l.f.saveErr
	}
	return l.OrderLedger.Save(ctx, order)
}

func (l faultyLedger) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	order, err := l.OrderLedger.FindByID(ctx, id)
	if err == nil && l.f.onFind != nil {
		l.f.onFind(order)
	}
	return order, err
}

type faultyCarts struct {
	repository.CartStore
	f *faultyStore
}

func (c faultyCarts) ClearLines(ctx context.Context, userID int64, lines []domain.CartItem) (int, error) {
	if c.f.beforeClear != nil {
		c.f.beforeClear(ctx, c.CartStore)
	}
	return c.CartStore.ClearLines(ctx, userID, lines)
}

type faultyOutbox struct {
	repository.Outbox
	f *faultyStore
}

func (o faultyOutbox) Append(ctx context.Context, event *domain.OutboxEvent) error {
	if o.f.appendErr != nil {
		return o.f.appendErr
	}
	return o.Outbox.Append(ctx, event)
}

// --- caches ---

type MockCartCache struct {
	mu      sync.Mutex
	carts   map[int64]*domain.Cart
	GetErr  error
	Deleted []int64
}

func newMockCartCache() *MockCartCache {
	return &MockCartCache{carts: make(map[int64]*domain.Cart)}
}

func (m *MockCartCache) Get(_ context.Context, userID int64) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	cart, ok := m.carts[userID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return cart, nil
}

func (m *MockCartCache) Set(_ context.Context, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[cart.UserID] = cart
	return nil
}

func (m *MockCartCache) Delete(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, userID)
	m.Deleted = append(m.Deleted, userID)
	return nil
}

type MockOrderCache struct {
	mu      sync.Mutex
	orders  map[uuid.UUID]*domain.Order
	Sets    int
	Deleted []uuid.UUID
}

func newMockOrderCache() *MockOrderCache {
	return &MockOrderCache{orders: make(map[uuid.UUID]*domain.Order)}
}

func (m *MockOrderCache) Get(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	cp := *order
	return &cp, nil
}

func (m *MockOrderCache) Set(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *order
	m.orders[order.ID] = &cp
	m.Sets++
	return nil
}

func (m *MockOrderCache) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.orders, id)
	m.Deleted = append(m.Deleted, id)
	return nil
}
