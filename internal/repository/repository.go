package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrOrderNotFound     = fmt.Errorf("order %w", ErrNotFound)
	ErrProductNotFound   = fmt.Errorf("product %w", ErrNotFound)
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrStaleStatus       = errors.New("order status changed concurrently")
	ErrPersistence       = errors.New("persistence failure")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// OrderFilter narrows FindPage. A nil UserID lists every order.
type OrderFilter struct {
	UserID *int64
}

// CartStore holds the pending line items of each user.
type CartStore interface {
	ListItems(ctx context.Context, userID int64) ([]domain.CartItem, error)
	// AddItem inserts the line or overwrites the quantity of an existing one.
	AddItem(ctx context.Context, item domain.CartItem) error
	RemoveItem(ctx context.Context, userID, productID int64) error
	// ClearLines deletes the given lines of the user's cart, each only while
	// its quantity is still the one given, and reports how many were removed.
	ClearLines(ctx context.Context, userID int64, lines []domain.CartItem) (int, error)
}

// InventoryStore owns product stock counters.
type InventoryStore interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	// DecrementStock subtracts qty only if at least qty units remain.
	// It returns ErrInsufficientStock when the condition does not hold.
	DecrementStock(ctx context.Context, id int64, qty int) error
	UpsertProduct(ctx context.Context, p *domain.Product) error
}

// OrderLedger persists orders together with their items.
type OrderLedger interface {
	Save(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	FindPage(ctx context.Context, filter OrderFilter, page, size int) (*domain.Page[domain.Order], error)
	// UpdateStatus writes to only when the stored status still equals from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus, at time.Time) error
	UpdateNotes(ctx context.Context, id uuid.UUID, notes string, at time.Time) error
	HasItemsForProduct(ctx context.Context, productID int64) (bool, error)
}

type Outbox interface {
	Append(ctx context.Context, event *domain.OutboxEvent) error
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
}

// Tx groups the stores that take part in one unit of work.
type Tx interface {
	Carts() CartStore
	Inventory() InventoryStore
	Orders() OrderLedger
	Outbox() Outbox
}

// Store is the full persistence port. Its own accessors run outside any
// transaction; WithinTx commits when fn returns nil and rolls back otherwise.
type Store interface {
	Tx
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Close() error
}

func persistenceError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}
