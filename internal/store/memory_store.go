package store

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
	"github.com/fjod/go_cart/fulfillment-service/internal/repository"
	"github.com/google/uuid"
)

// MemoryStore implements repository.Store with in-memory maps. Stock and cart
// writes inside a unit of work land immediately and are journaled so WithinTx
// can undo them. New orders and outbox events stay private to the unit of
// work until it commits.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[int64]*domain.Product            // productID -> product
	carts    map[int64]map[int64]*domain.CartItem // userID -> productID -> line
	orders   map[uuid.UUID]*domain.Order
	outbox   []*outboxRow
	nextID   int64
}

type outboxRow struct {
	event     domain.OutboxEvent
	processed bool
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[int64]*domain.Product),
		carts:    make(map[int64]map[int64]*domain.CartItem),
		orders:   make(map[uuid.UUID]*domain.Order),
	}
}

func (s *MemoryStore) Carts() repository.CartStore          { return memCarts{s: s} }
func (s *MemoryStore) Inventory() repository.InventoryStore { return memInventory{s: s} }
func (s *MemoryStore) Orders() repository.OrderLedger       { return memOrders{s: s} }
func (s *MemoryStore) Outbox() repository.Outbox            { return memOutbox{s: s} }

// WithinTx runs fn against a journaled view of the store. When fn fails, or
// ctx is done by the time it returns, the recorded effects are undone in
// reverse order and the buffered orders and events are dropped.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	tx := &memTx{s: s}

	defer func() {
		if p := recover(); p != nil {
			tx.rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	if err := ctx.Err(); err != nil {
		tx.rollback()
		return err
	}
	if err := tx.commit(); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

type memTx struct {
	s      *MemoryStore
	undo   []func()
	orders []*domain.Order
	events []*domain.OutboxEvent
}

func (t *memTx) record(fn func()) {
	t.undo = append(t.undo, fn)
}

func (t *memTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
	t.orders = nil
	t.events = nil
}

// commit publishes the buffered orders and events in one critical section.
// Outbox ids are assigned here so the relay sees them in commit order.
func (t *memTx) commit() error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	for _, order := range t.orders {
		if _, exists := t.s.orders[order.ID]; exists {
			return repository.ErrPersistence
		}
	}
	for _, order := range t.orders {
		t.s.orders[order.ID] = order
	}
	for _, event := range t.events {
		t.s.nextID++
		event.ID = t.s.nextID
		t.s.outbox = append(t.s.outbox, &outboxRow{event: *event})
	}

	t.orders = nil
	t.events = nil
	return nil
}

func (t *memTx) pendingOrder(id uuid.UUID) (*domain.Order, bool) {
	for _, order := range t.orders {
		if order.ID == id {
			return order, true
		}
	}
	return nil, false
}

func (t *memTx) Carts() repository.CartStore          { return memCarts{s: t.s, tx: t} }
func (t *memTx) Inventory() repository.InventoryStore { return memInventory{s: t.s, tx: t} }
func (t *memTx) Orders() repository.OrderLedger       { return memOrders{s: t.s, tx: t} }
func (t *memTx) Outbox() repository.Outbox            { return memOutbox{s: t.s, tx: t} }

// ---- carts

type memCarts struct {
	s  *MemoryStore
	tx *memTx
}

func (c memCarts) ListItems(_ context.Context, userID int64) ([]domain.CartItem, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	lines := c.s.carts[userID]
	items := make([]domain.CartItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, *line)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].AddedAt.Equal(items[j].AddedAt) {
			return items[i].ProductID < items[j].ProductID
		}
		return items[i].AddedAt.Before(items[j].AddedAt)
	})
	return items, nil
}

func (c memCarts) AddItem(_ context.Context, item domain.CartItem) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	lines, ok := c.s.carts[item.UserID]
	if !ok {
		lines = make(map[int64]*domain.CartItem)
		c.s.carts[item.UserID] = lines
	}
	if existing, ok := lines[item.ProductID]; ok {
		existing.Quantity = item.Quantity
		return nil
	}
	line := item
	lines[item.ProductID] = &line
	return nil
}

func (c memCarts) RemoveItem(_ context.Context, userID, productID int64) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	delete(c.s.carts[userID], productID)
	return nil
}

func (c memCarts) ClearLines(_ context.Context, userID int64, lines []domain.CartItem) (int, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	current := c.s.carts[userID]
	removed := make([]domain.CartItem, 0, len(lines))
	for _, line := range lines {
		existing, ok := current[line.ProductID]
		if !ok || existing.Quantity != line.Quantity {
			continue
		}
		removed = append(removed, *existing)
		delete(current, line.ProductID)
	}
	if len(current) == 0 {
		delete(c.s.carts, userID)
	}

	if c.tx != nil && len(removed) > 0 {
		c.tx.record(func() {
			c.s.mu.Lock()
			defer c.s.mu.Unlock()
			restored, ok := c.s.carts[userID]
			if !ok {
				restored = make(map[int64]*domain.CartItem)
				c.s.carts[userID] = restored
			}
			for _, line := range removed {
				if _, exists := restored[line.ProductID]; !exists {
					restored[line.ProductID] = &line
				}
			}
		})
	}
	return len(removed), nil
}

// ---- inventory

type memInventory struct {
	s  *MemoryStore
	tx *memTx
}

func (i memInventory) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	i.s.mu.RLock()
	defer i.s.mu.RUnlock()

	p, ok := i.s.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (i memInventory) DecrementStock(_ context.Context, id int64, qty int) error {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()

	p, ok := i.s.products[id]
	if !ok {
		return repository.ErrProductNotFound
	}
	if p.Stock < qty {
		return repository.ErrInsufficientStock
	}
	p.Stock -= qty

	if i.tx != nil {
		i.tx.record(func() {
			i.s.mu.Lock()
			defer i.s.mu.Unlock()
			if p, ok := i.s.products[id]; ok {
				p.Stock += qty
			}
		})
	}
	return nil
}

// UpsertProduct sets the catalog row including its stock level
func (i memInventory) UpsertProduct(_ context.Context, p *domain.Product) error {
	if p.Stock < 0 {
		return errors.New("stock cannot be negative")
	}

	i.s.mu.Lock()
	defer i.s.mu.Unlock()

	cp := *p
	i.s.products[p.ID] = &cp
	return nil
}

// ---- orders

type memOrders struct {
	s  *MemoryStore
	tx *memTx
}

func (o memOrders) Save(_ context.Context, order *domain.Order) error {
	if o.tx != nil {
		if _, pending := o.tx.pendingOrder(order.ID); pending {
			return repository.ErrPersistence
		}
	}

	o.s.mu.Lock()
	defer o.s.mu.Unlock()

	if _, exists := o.s.orders[order.ID]; exists {
		return repository.ErrPersistence
	}
	if o.tx != nil {
		o.tx.orders = append(o.tx.orders, cloneOrder(order))
		return nil
	}
	o.s.orders[order.ID] = cloneOrder(order)
	return nil
}

func (o memOrders) FindByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	if o.tx != nil {
		if order, ok := o.tx.pendingOrder(id); ok {
			return cloneOrder(order), nil
		}
	}

	o.s.mu.RLock()
	defer o.s.mu.RUnlock()

	order, ok := o.s.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

func (o memOrders) FindPage(_ context.Context, filter repository.OrderFilter, page, size int) (*domain.Page[domain.Order], error) {
	o.s.mu.RLock()
	matched := make([]*domain.Order, 0, len(o.s.orders))
	for _, order := range o.s.orders {
		if filter.UserID != nil && order.UserID != *filter.UserID {
			continue
		}
		matched = append(matched, cloneOrder(order))
	}
	o.s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.String() > matched[j].ID.String()
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := min(page*size, len(matched))
	end := min(start+size, len(matched))

	items := make([]domain.Order, 0, end-start)
	for _, order := range matched[start:end] {
		items = append(items, *order)
	}
	return domain.NewPage(items, page, size, total), nil
}

func (o memOrders) UpdateStatus(_ context.Context, id uuid.UUID, from, to domain.OrderStatus, at time.Time) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()

	order, ok := o.s.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	if order.Status != from {
		return repository.ErrStaleStatus
	}

	prevStatus, prevUpdated := order.Status, order.UpdatedAt
	order.Status = to
	order.UpdatedAt = at

	if o.tx != nil {
		o.tx.record(func() {
			o.s.mu.Lock()
			defer o.s.mu.Unlock()
			if order, ok := o.s.orders[id]; ok && order.Status == to {
				order.Status = prevStatus
				order.UpdatedAt = prevUpdated
			}
		})
	}
	return nil
}

func (o memOrders) UpdateNotes(_ context.Context, id uuid.UUID, notes string, at time.Time) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()

	order, ok := o.s.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}

	prevNotes, prevUpdated := order.InternalNotes, order.UpdatedAt
	order.InternalNotes = &notes
	order.UpdatedAt = at

	if o.tx != nil {
		o.tx.record(func() {
			o.s.mu.Lock()
			defer o.s.mu.Unlock()
			if order, ok := o.s.orders[id]; ok {
				order.InternalNotes = prevNotes
				order.UpdatedAt = prevUpdated
			}
		})
	}
	return nil
}

func (o memOrders) HasItemsForProduct(_ context.Context, productID int64) (bool, error) {
	o.s.mu.RLock()
	defer o.s.mu.RUnlock()

	for _, order := range o.s.orders {
		if slices.ContainsFunc(order.Items, func(item domain.OrderItem) bool {
			return item.ProductID == productID
		}) {
			return true, nil
		}
	}
	return false, nil
}

func cloneOrder(order *domain.Order) *domain.Order {
	cp := *order
	cp.Items = slices.Clone(order.Items)
	if order.InternalNotes != nil {
		notes := *order.InternalNotes
		cp.InternalNotes = &notes
	}
	return &cp
}

// ---- outbox

type memOutbox struct {
	s  *MemoryStore
	tx *memTx
}

func (o memOutbox) Append(_ context.Context, event *domain.OutboxEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if o.tx != nil {
		o.tx.events = append(o.tx.events, event)
		return nil
	}

	o.s.mu.Lock()
	defer o.s.mu.Unlock()

	o.s.nextID++
	event.ID = o.s.nextID
	o.s.outbox = append(o.s.outbox, &outboxRow{event: *event})
	return nil
}

func (o memOutbox) GetUnprocessedEvents(_ context.Context, limit int) ([]*domain.OutboxEvent, error) {
	o.s.mu.RLock()
	defer o.s.mu.RUnlock()

	var events []*domain.OutboxEvent
	for _, row := range o.s.outbox {
		if len(events) >= limit {
			break
		}
		if row.processed {
			continue
		}
		event := row.event
		events = append(events, &event)
	}
	return events, nil
}

func (o memOutbox) MarkEventAsProcessed(_ context.Context, id int64) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()

	for _, row := range o.s.outbox {
		if row.event.ID == id {
			row.processed = true
			return nil
		}
	}
	return nil
}
