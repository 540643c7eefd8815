package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/fjod/go_cart/fulfillment-service/internal/cache"
	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
	"github.com/fjod/go_cart/fulfillment-service/internal/metrics"
	"github.com/fjod/go_cart/fulfillment-service/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// OrderService owns checkout, the order lifecycle and order reads.
type OrderService struct {
	store      repository.Store
	cartCache  cache.CartCache
	orderCache cache.OrderCache
	metrics    *metrics.Metrics
	policy     domain.TransitionPolicy
	logger     zerolog.Logger
	now        func() time.Time
	sfg        singleflight.Group

	// bumped before every order cache invalidation
	orderWrites atomic.Uint64
}

type Option func(*OrderService)

func WithCartCache(c cache.CartCache) Option {
	return func(s *OrderService) { s.cartCache = c }
}

func WithOrderCache(c cache.OrderCache) Option {
	return func(s *OrderService) { s.orderCache = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *OrderService) { s.metrics = m }
}

func WithTransitionPolicy(p domain.TransitionPolicy) Option {
	return func(s *OrderService) { s.policy = p }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *OrderService) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *OrderService) { s.now = now }
}

func NewOrderService(store repository.Store, opts ...Option) *OrderService {
	s := &OrderService{
		store:  store,
		policy: domain.PermissiveTransitions,
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *OrderService) invalidateCart(userID int64) {
	if s.cartCache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cartCache.Delete(ctx, userID); err != nil {
		s.logger.Warn().Err(err).Int64("user_id", userID).Msg("cart cache invalidate failed")
	}
}

func (s *OrderService) invalidateOrder(id uuid.UUID) {
	s.orderWrites.Add(1)
	s.invalidateOrderCache(id)
}

func (s *OrderService) invalidateOrderCache(id uuid.UUID) {
	if s.orderCache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.orderCache.Delete(ctx, id); err != nil {
		s.logger.Warn().Err(err).Str("order_id", id.String()).Msg("order cache invalidate failed")
	}
}
