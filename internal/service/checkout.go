package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
	"github.com/fjod/go_cart/fulfillment-service/internal/repository"
	"github.com/google/uuid"
)

// CreateOrder turns the caller's cart into a PENDING order. Stock is
// decremented, the order saved, the cart cleared and an order.created event
// queued in one transaction; any failure leaves all of them untouched.
func (s *OrderService) CreateOrder(ctx context.Context, auth domain.AuthContext, shippingAddress string) (*domain.Order, error) {
	start := s.now()

	order, err := s.createOrder(ctx, auth, shippingAddress)
	s.metrics.ObserveCheckout(checkoutResult(err), s.now().Sub(start))
	if err != nil {
		s.logger.Warn().Err(err).Int64("user_id", auth.UserID).Msg("checkout failed")
		return nil, err
	}

	s.invalidateCart(auth.UserID)
	s.logger.Info().
		Str("order_id", order.ID.String()).
		Int64("user_id", order.UserID).
		Str("total", order.TotalPrice.StringFixed(2)).
		Int("items", len(order.Items)).
		Msg("order created")
	return order, nil
}

func (s *OrderService) createOrder(ctx context.Context, auth domain.AuthContext, shippingAddress string) (*domain.Order, error) {
	address := strings.TrimSpace(shippingAddress)
	if address == "" {
		return nil, invalidArgument("shipping address is required")
	}

	var order *domain.Order
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		items, err := tx.Carts().ListItems(ctx, auth.UserID)
		if err != nil {
			return fmt.Errorf("list cart items: %w", err)
		}
		if len(items) == 0 {
			return ErrEmptyCart
		}

		products, err := checkAvailability(ctx, tx.Inventory(), items)
		if err != nil {
			return err
		}

		if err := reserveStock(ctx, tx.Inventory(), items); err != nil {
			return err
		}

		now := s.now().UTC()
		order = &domain.Order{
			ID:              uuid.New(),
			UserID:          auth.UserID,
			Status:          domain.OrderStatusPending,
			ShippingAddress: address,
			Items:           snapshotItems(items, products),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		order.TotalPrice = domain.SumItems(order.Items)

		if err := tx.Orders().Save(ctx, order); err != nil {
			return fmt.Errorf("save order: %w", err)
		}

		event, err := orderCreatedEvent(order)
		if err != nil {
			return err
		}
		if err := tx.Outbox().Append(ctx, event); err != nil {
			return fmt.Errorf("append order event: %w", err)
		}

		// only lines still holding the quantity that was ordered are removed
		cleared, err := tx.Carts().ClearLines(ctx, auth.UserID, items)
		if err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		if cleared != len(items) {
			return ErrCartChanged
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// checkAvailability loads every product in the cart and fails on the first
// line whose quantity exceeds the stock on hand. Nothing is written.
func checkAvailability(ctx context.Context, inv repository.InventoryStore, items []domain.CartItem) (map[int64]*domain.Product, error) {
	products := make(map[int64]*domain.Product, len(items))
	for _, item := range items {
		p, err := inv.GetProduct(ctx, item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("load product %d: %w", item.ProductID, err)
		}
		if p.Stock < item.Quantity {
			return nil, &InsufficientStockError{
				ProductID: item.ProductID,
				Requested: item.Quantity,
				Available: p.Stock,
			}
		}
		products[p.ID] = p
	}
	return products, nil
}

// reserveStock decrements in ascending product id so that concurrent
// checkouts lock rows in the same order.
func reserveStock(ctx context.Context, inv repository.InventoryStore, items []domain.CartItem) error {
	ordered := slices.Clone(items)
	slices.SortFunc(ordered, func(a, b domain.CartItem) int {
		return cmp.Compare(a.ProductID, b.ProductID)
	})

	for _, item := range ordered {
		err := inv.DecrementStock(ctx, item.ProductID, item.Quantity)
		if errors.Is(err, repository.ErrInsufficientStock) {
			available := 0
			if p, e2 := inv.GetProduct(ctx, item.ProductID); e2 == nil {
				available = p.Stock
			}
			return &InsufficientStockError{
				ProductID: item.ProductID,
				Requested: item.Quantity,
				Available: available,
			}
		}
		if err != nil {
			return fmt.Errorf("decrement stock for product %d: %w", item.ProductID, err)
		}
	}
	return nil
}

func snapshotItems(items []domain.CartItem, products map[int64]*domain.Product) []domain.OrderItem {
	result := make([]domain.OrderItem, 0, len(items))
	for _, item := range items {
		p := products[item.ProductID]
		result = append(result, domain.OrderItem{
			ProductID:           p.ID,
			ProductName:         p.Name,
			Quantity:            item.Quantity,
			UnitPriceAtPurchase: p.UnitPrice,
		})
	}
	return result
}

func checkoutResult(err error) string {
	var stockErr *InsufficientStockError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.As(err, &stockErr):
		return "insufficient_stock"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrCartChanged):
		return "cart_changed"
	default:
		return "error"
	}
}
