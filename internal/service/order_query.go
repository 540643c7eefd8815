package service

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/fulfillment-service/internal/cache"
	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
	"github.com/fjod/go_cart/fulfillment-service/internal/repository"
	"github.com/google/uuid"
)

func (s *OrderService) GetOrder(ctx context.Context, auth domain.AuthContext, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !auth.CanView(order.UserID) {
		return nil, ErrForbidden
	}
	return order, nil
}

// loadOrder is a cache-aside read; concurrent misses for one id share a
// single store query. A fill that overlapped an order write is dropped again
// so a stale copy cannot outlive the invalidation.
func (s *OrderService) loadOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	if s.orderCache != nil {
		order, err := s.orderCache.Get(ctx, orderID)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn().Err(err).Str("order_id", orderID.String()).Msg("order cache get failed")
		}
	}

	v, err, _ := s.sfg.Do("order:"+orderID.String(), func() (interface{}, error) {
		writes := s.orderWrites.Load()
		order, err := s.store.Orders().FindByID(ctx, orderID)
		if err != nil {
			return nil, err
		}

		if s.orderCache != nil && s.orderWrites.Load() == writes {
			if errSet := s.orderCache.Set(ctx, order); errSet != nil {
				s.logger.Warn().Err(errSet).Str("order_id", orderID.String()).Msg("order cache set failed")
			}
			if s.orderWrites.Load() != writes {
				s.invalidateOrderCache(orderID)
			}
		}
		return order, nil
	})
	if err != nil {
		return nil, err
	}

	// callers sharing the flight must not share the aggregate
	order := *v.(*domain.Order)
	order.Items = append([]domain.OrderItem(nil), order.Items...)
	return &order, nil
}

// ListOrders returns one page, newest first. Privileged callers see every
// order; everyone else sees their own. page is zero based.
func (s *OrderService) ListOrders(ctx context.Context, auth domain.AuthContext, page, size int) (*domain.Page[domain.Order], error) {
	if page < 0 {
		return nil, invalidArgument("page must not be negative")
	}
	if size < 1 || size > MaxPageSize {
		return nil, invalidArgument("page size must be between 1 and %d", MaxPageSize)
	}

	var filter repository.OrderFilter
	if !auth.Privileged {
		userID := auth.UserID
		filter.UserID = &userID
	}

	return s.store.Orders().FindPage(ctx, filter, page, size)
}

// ProductHasOrders reports whether any order line references the product.
// Staff only.
func (s *OrderService) ProductHasOrders(ctx context.Context, auth domain.AuthContext, productID int64) (bool, error) {
	if !auth.Privileged {
		return false, ErrForbidden
	}
	return s.store.Orders().HasItemsForProduct(ctx, productID)
}
