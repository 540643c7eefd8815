package service

import (
	"context"
	"testing"

	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
	"github.com/fjod/go_cart/fulfillment-service/internal/repository"
	"github.com/fjod/go_cart/fulfillment-service/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func placeOrder(t *testing.T, svc *OrderService, st repository.Store, auth domain.AuthContext) *domain.Order {
	t.Helper()
	seedProduct(t, st, 1, "Keyboard", "10.00", 1000)
	addToCart(t, st, auth.UserID, 1, 1)
	order, err := svc.CreateOrder(context.Background(), auth, "addr")
	require.NoError(t, err)
	return order
}

func TestUpdateStatus_Success(t *testing.T) {
	for _, f := range storeFactories() {
		t.Run(f.name, func(t *testing.T) {
			st := f.open(t)
			orders := newMockOrderCache()
			svc := NewOrderService(st, WithOrderCache(orders), WithClock(steppingClock()))
			order := placeOrder(t, svc, st, customer)

			updated, err := svc.UpdateStatus(context.Background(), admin, order.ID, domain.OrderStatusPaid)
			require.NoError(t, err)
			assert.Equal(t, domain.OrderStatusPaid, updated.Status)
			assert.True(t, updated.UpdatedAt.After(order.UpdatedAt))
			assert.Equal(t, []uuid.UUID{order.ID}, orders.Deleted)

			stored, err := st.Orders().FindByID(context.Background(), order.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.OrderStatusPaid, stored.Status)

			events, err := st.Outbox().GetUnprocessedEvents(context.Background(), 10)
			require.NoError(t, err)
			require.Len(t, events, 2)
			assert.Equal(t, domain.EventOrderStatusChanged, events[1].EventType)
		})
	}
}

func TestUpdateStatus_ShippedIsTerminal(t *testing.T) {
	policies := []domain.TransitionPolicy{domain.PermissiveTransitions, domain.StrictTransitions}

	for _, f := range storeFactories() {
		for _, policy := range policies {
			t.Run(f.name+"/"+policy.Name(), func(t *testing.T) {
				st := f.open(t)
				svc := NewOrderService(st, WithTransitionPolicy(policy))
				order := placeOrder(t, svc, st, customer)

				_, err := svc.UpdateStatus(context.Background(), sales, order.ID, domain.OrderStatusShipped)
				require.NoError(t, err)

				for _, target := range []domain.OrderStatus{
					domain.OrderStatusPending,
					domain.OrderStatusPaid,
					domain.OrderStatusShipped,
					domain.OrderStatusDelivered,
					domain.OrderStatusCancelled,
				} {
					_, err := svc.UpdateStatus(context.Background(), admin, order.ID, target)
					assert.ErrorIs(t, err, ErrInvalidTransition, "target %s", target)

					var transitionErr *TransitionError
					require.ErrorAs(t, err, &transitionErr)
					assert.Equal(t, domain.OrderStatusShipped, transitionErr.From)
				}

				stored, err := st.Orders().FindByID(context.Background(), order.ID)
				require.NoError(t, err)
				assert.Equal(t, domain.OrderStatusShipped, stored.Status)
			})
		}
	}
}

func TestUpdateStatus_PermissiveAllowsBackwardMoves(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewOrderService(st)
	order := placeOrder(t, svc, st, customer)

	_, err := svc.UpdateStatus(context.Background(), admin, order.ID, domain.OrderStatusCancelled)
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(context.Background(), admin, order.ID, domain.OrderStatusPending)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, updated.Status)
}

func TestUpdateStatus_StrictRejectsSkippingPayment(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewOrderService(st, WithTransitionPolicy(domain.StrictTransitions))
	order := placeOrder(t, svc, st, customer)

	_, err := svc.UpdateStatus(context.Background(), admin, order.ID, domain.OrderStatusDelivered)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.UpdateStatus(context.Background(), admin, order.ID, domain.OrderStatusPaid)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), admin, order.ID, domain.OrderStatusCancelled)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), admin, order.ID, domain.OrderStatusPaid)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestUpdateStatus_RequiresPrivilege(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewOrderService(st)
	order := placeOrder(t, svc, st, customer)

	_, err := svc.UpdateStatus(context.Background(), customer, order.ID, domain.OrderStatusCancelled)
	assert.ErrorIs(t, err, ErrForbidden)

	stored, err := st.Orders().FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, stored.Status)
}

func TestUpdateStatus_NotFound(t *testing.T) {
	for _, f := range storeFactories() {
		t.Run(f.name, func(t *testing.T) {
			svc := NewOrderService(f.open(t))

			_, err := svc.UpdateStatus(context.Background(), admin, uuid.New(), domain.OrderStatusPaid)
			assert.ErrorIs(t, err, ErrOrderNotFound)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestUpdateStatus_UnknownStatus(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewOrderService(st)
	order := placeOrder(t, svc, st, customer)

	_, err := svc.UpdateStatus(context.Background(), admin, order.ID, domain.OrderStatus("LOST"))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.UpdateStatus(context.Background(), admin, uuid.New(), domain.OrderStatus("LOST"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStatus_ShippedRejectsUnknownTargetAsTransition(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewOrderService(st)
	order := placeOrder(t, svc, st, customer)

	_, err := svc.UpdateStatus(context.Background(), admin, order.ID, domain.OrderStatusShipped)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), admin, order.ID, domain.OrderStatus("LOST"))
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.NotErrorIs(t, err, ErrInvalidArgument)
}

func TestUpdateStatus_LostRaceIsConflict(t *testing.T) {
	inner := store.NewMemoryStore()
	seeder := NewOrderService(inner)
	order := placeOrder(t, seeder, inner, customer)

	st := &faultyStore{Store: inner}
	st.onFind = func(found *domain.Order) {
		// another writer moves the order after we read it
		st.onFind = nil
		err := inner.Orders().UpdateStatus(context.Background(), found.ID, found.Status, domain.OrderStatusPaid, found.UpdatedAt)
		require.NoError(t, err)
	}

	_, err := NewOrderService(st).UpdateStatus(context.Background(), admin, order.ID, domain.OrderStatusCancelled)
	assert.ErrorIs(t, err, ErrConcurrentUpdate)

	stored, err := inner.Orders().FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, stored.Status)
}

func TestUpdateNotes(t *testing.T) {
	for _, f := range storeFactories() {
		t.Run(f.name, func(t *testing.T) {
			st := f.open(t)
			svc := NewOrderService(st)
			order := placeOrder(t, svc, st, customer)

			_, err := svc.UpdateNotes(context.Background(), customer, order.ID, "hi")
			assert.ErrorIs(t, err, ErrForbidden)

			updated, err := svc.UpdateNotes(context.Background(), sales, order.ID, "  leave at door ")
			require.NoError(t, err)
			require.NotNil(t, updated.InternalNotes)
			assert.Equal(t, "leave at door", *updated.InternalNotes)

			stored, err := st.Orders().FindByID(context.Background(), order.ID)
			require.NoError(t, err)
			require.NotNil(t, stored.InternalNotes)
			assert.Equal(t, "leave at door", *stored.InternalNotes)

			_, err = svc.UpdateStatus(context.Background(), admin, order.ID, domain.OrderStatusShipped)
			require.NoError(t, err)

			_, err = svc.UpdateNotes(context.Background(), admin, order.ID, "too late")
			assert.ErrorIs(t, err, ErrInvalidTransition)
		})
	}
}
