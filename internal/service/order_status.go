package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
	"github.com/fjod/go_cart/fulfillment-service/internal/repository"
	"github.com/google/uuid"
)

// UpdateStatus moves an order to next if the transition policy allows it.
// The write only lands if nobody changed the status since it was read. A
// SHIPPED order answers InvalidTransition whatever the target.
func (s *OrderService) UpdateStatus(ctx context.Context, auth domain.AuthContext, orderID uuid.UUID, next domain.OrderStatus) (*domain.Order, error) {
	order, err := s.updateStatus(ctx, auth, orderID, next)
	s.metrics.StatusUpdate(statusResult(err))
	if err != nil {
		return nil, err
	}

	s.invalidateOrder(orderID)
	s.logger.Info().
		Str("order_id", orderID.String()).
		Str("status", order.Status.String()).
		Int64("actor", auth.UserID).
		Msg("order status updated")
	return order, nil
}

func (s *OrderService) updateStatus(ctx context.Context, auth domain.AuthContext, orderID uuid.UUID, next domain.OrderStatus) (*domain.Order, error) {
	if !auth.Privileged {
		return nil, ErrForbidden
	}

	var updated *domain.Order
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		order, err := tx.Orders().FindByID(ctx, orderID)
		if err != nil {
			return err
		}

		current := order.Status
		if current.IsTerminal() {
			return &TransitionError{From: current, To: next}
		}
		if !next.Valid() {
			return invalidArgument("unknown order status %q", next)
		}
		if !s.policy.CanTransition(current, next) {
			return &TransitionError{From: current, To: next}
		}

		now := s.now().UTC()
		err = tx.Orders().UpdateStatus(ctx, orderID, current, next, now)
		if errors.Is(err, repository.ErrStaleStatus) {
			return fmt.Errorf("%w: status is no longer %s", ErrConcurrentUpdate, current)
		}
		if err != nil {
			return err
		}

		order.Status = next
		order.UpdatedAt = now

		event, err := statusChangedEvent(order, current, now)
		if err != nil {
			return err
		}
		if err := tx.Outbox().Append(ctx, event); err != nil {
			return fmt.Errorf("append status event: %w", err)
		}

		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateNotes replaces the staff-only notes of an order that is not yet shipped.
func (s *OrderService) UpdateNotes(ctx context.Context, auth domain.AuthContext, orderID uuid.UUID, notes string) (*domain.Order, error) {
	if !auth.Privileged {
		return nil, ErrForbidden
	}
	notes = strings.TrimSpace(notes)

	var updated *domain.Order
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		order, err := tx.Orders().FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status.IsTerminal() {
			return fmt.Errorf("%w: order is %s", ErrInvalidTransition, order.Status)
		}

		now := s.now().UTC()
		if err := tx.Orders().UpdateNotes(ctx, orderID, notes, now); err != nil {
			return err
		}
		order.InternalNotes = &notes
		order.UpdatedAt = now
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateOrder(orderID)
	return updated, nil
}

func statusResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConcurrentUpdate):
		return "conflict"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	default:
		return "error"
	}
}
