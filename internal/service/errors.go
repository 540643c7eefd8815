package service

import (
	"errors"
	"fmt"

	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
	"github.com/fjod/go_cart/fulfillment-service/internal/repository"
)

var (
	ErrEmptyCart         = errors.New("cart is empty, nothing to checkout")
	ErrForbidden         = errors.New("not allowed to access this order")
	ErrInvalidTransition = errors.New("illegal transition of order status")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrCartChanged       = errors.New("cart changed during checkout")
	ErrConcurrentUpdate  = errors.New("order was modified concurrently")

	ErrNotFound        = repository.ErrNotFound
	ErrOrderNotFound   = repository.ErrOrderNotFound
	ErrProductNotFound = repository.ErrProductNotFound
	ErrPersistence     = repository.ErrPersistence
)

// InsufficientStockError reports the first cart line that could not be reserved.
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == repository.ErrInsufficientStock
}

type TransitionError struct {
	From domain.OrderStatus
	To   domain.OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
