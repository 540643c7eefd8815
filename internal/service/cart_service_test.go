package service

import (
	"context"
	"errors"
	"testing"

	"github.com/fjod/go_cart/fulfillment-service/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartService_AddAndGet(t *testing.T) {
	for _, f := range storeFactories() {
		t.Run(f.name, func(t *testing.T) {
			st := f.open(t)
			seedProduct(t, st, 1, "Keyboard", "10.00", 5)
			seedProduct(t, st, 2, "Mouse", "5.00", 5)

			svc := NewCartService(st, nil, zerolog.Nop())
			ctx := context.Background()

			require.NoError(t, svc.AddItem(ctx, 1, 1, 2))
			require.NoError(t, svc.AddItem(ctx, 1, 2, 1))
			require.NoError(t, svc.AddItem(ctx, 1, 1, 4))

			cart, err := svc.GetCart(ctx, 1)
			require.NoError(t, err)
			require.Len(t, cart.Items, 2)

			quantities := map[int64]int{}
			for _, item := range cart.Items {
				quantities[item.ProductID] = item.Quantity
			}
			assert.Equal(t, map[int64]int{1: 4, 2: 1}, quantities)

			require.NoError(t, svc.RemoveItem(ctx, 1, 2))
			cart, err = svc.GetCart(ctx, 1)
			require.NoError(t, err)
			assert.Len(t, cart.Items, 1)
		})
	}
}

func TestCartService_EmptyCartIsNotAnError(t *testing.T) {
	svc := NewCartService(store.NewMemoryStore(), nil, zerolog.Nop())

	cart, err := svc.GetCart(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
	assert.NotNil(t, cart.Items)
}

func TestCartService_AddItemValidation(t *testing.T) {
	st := store.NewMemoryStore()
	seedProduct(t, st, 1, "Keyboard", "10.00", 5)
	svc := NewCartService(st, nil, zerolog.Nop())

	assert.ErrorIs(t, svc.AddItem(context.Background(), 1, 1, 0), ErrInvalidArgument)
	assert.ErrorIs(t, svc.AddItem(context.Background(), 1, 1, MaxItemQuantity+1), ErrInvalidArgument)
	assert.ErrorIs(t, svc.AddItem(context.Background(), 1, 99, 1), ErrProductNotFound)
}

func TestCartService_CacheAsideAndInvalidation(t *testing.T) {
	st := store.NewMemoryStore()
	seedProduct(t, st, 1, "Keyboard", "10.00", 5)
	carts := newMockCartCache()
	svc := NewCartService(st, carts, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, svc.AddItem(ctx, 1, 1, 1))
	assert.Equal(t, []int64{1}, carts.Deleted)

	_, err := svc.GetCart(ctx, 1)
	require.NoError(t, err)
	cached, err := carts.Get(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, cached.Items, 1)

	// checkout clears the cart and drops the cached copy
	orders := NewOrderService(st, WithCartCache(carts))
	_, err = orders.CreateOrder(ctx, customer, "addr")
	require.NoError(t, err)

	cart, err := svc.GetCart(ctx, 1)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}

func TestCartService_CacheErrorFallsBackToStore(t *testing.T) {
	st := store.NewMemoryStore()
	seedProduct(t, st, 1, "Keyboard", "10.00", 5)
	addToCart(t, st, 1, 1, 3)

	carts := newMockCartCache()
	carts.GetErr = errors.New("redis down")
	svc := NewCartService(st, carts, zerolog.Nop())

	cart, err := svc.GetCart(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
}
