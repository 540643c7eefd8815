package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/fjod/go_cart/fulfillment-service/internal/cache"
	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
	"github.com/fjod/go_cart/fulfillment-service/internal/repository"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const MaxItemQuantity = 99

type CartService struct {
	store  repository.Store
	cache  cache.CartCache
	logger zerolog.Logger
	now    func() time.Time
	sfg    singleflight.Group // Prevents cache stampede
}

// NewCartService builds the cart service. cartCache may be nil.
func NewCartService(store repository.Store, cartCache cache.CartCache, logger zerolog.Logger) *CartService {
	return &CartService{
		store:  store,
		cache:  cartCache,
		logger: logger,
		now:    time.Now,
	}
}

func (s *CartService) GetCart(ctx context.Context, userID int64) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(strconv.FormatInt(userID, 10), func() (interface{}, error) {
		if s.cache != nil {
			cart, err := s.cache.Get(ctx, userID)
			if err == nil {
				return cart, nil
			}
			if !errors.Is(err, cache.ErrCacheMiss) {
				s.logger.Warn().Err(err).Int64("user_id", userID).Msg("cart cache get failed")
			}
		}

		items, err := s.store.Carts().ListItems(ctx, userID)
		if err != nil {
			return nil, err
		}
		cart := &domain.Cart{UserID: userID, Items: items}
		if cart.Items == nil {
			cart.Items = []domain.CartItem{}
		}

		if s.cache != nil {
			if errSet := s.cache.Set(ctx, cart); errSet != nil {
				s.logger.Warn().Err(errSet).Int64("user_id", userID).Msg("cart cache set failed")
			}
		}
		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	cart := v.(*domain.Cart)
	return &domain.Cart{UserID: cart.UserID, Items: append([]domain.CartItem{}, cart.Items...)}, nil
}

// AddItem puts quantity units of the product in the cart, replacing any
// quantity already there.
func (s *CartService) AddItem(ctx context.Context, userID, productID int64, quantity int) error {
	if quantity < 1 || quantity > MaxItemQuantity {
		return invalidArgument("quantity must be between 1 and %d", MaxItemQuantity)
	}

	if _, err := s.store.Inventory().GetProduct(ctx, productID); err != nil {
		return err
	}

	err := s.store.Carts().AddItem(ctx, domain.CartItem{
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
		AddedAt:   s.now().UTC(),
	})
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("add cart item failed")
		return err
	}

	s.invalidateCache(userID)
	return nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID int64) error {
	if err := s.store.Carts().RemoveItem(ctx, userID, productID); err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("remove cart item failed")
		return err
	}

	s.invalidateCache(userID)
	return nil
}

func (s *CartService) invalidateCache(userID int64) {
	if s.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.logger.Warn().Err(err).Int64("user_id", userID).Msg("cart cache invalidate failed")
	}
}
