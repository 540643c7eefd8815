package domain

import (
	"fmt"
	"slices"
	"strings"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

var allStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPaid,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// NormalizeOrderStatus canonicalizes case and whitespace without validating.
func NormalizeOrderStatus(s string) OrderStatus {
	return OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	status := NormalizeOrderStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("unknown order status %q", s)
	}
	return status, nil
}

func (s OrderStatus) Valid() bool {
	return slices.Contains(allStatuses, s)
}

// IsTerminal reports whether an order in this status can no longer be mutated.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusShipped
}

// String representation (for logging)
func (s OrderStatus) String() string {
	return string(s)
}

// TransitionPolicy holds the allowed status moves. A status missing from the
// map accepts any valid target; a status mapped to an empty list accepts none.
type TransitionPolicy struct {
	name    string
	allowed map[OrderStatus][]OrderStatus
}

// PermissiveTransitions lets any status move anywhere except out of SHIPPED.
var PermissiveTransitions = TransitionPolicy{
	name: "permissive",
	allowed: map[OrderStatus][]OrderStatus{
		OrderStatusShipped: {},
	},
}

// StrictTransitions only allows forward moves through the fulfillment graph.
var StrictTransitions = TransitionPolicy{
	name: "strict",
	allowed: map[OrderStatus][]OrderStatus{
		OrderStatusPending:   {OrderStatusPaid, OrderStatusCancelled, OrderStatusShipped},
		OrderStatusPaid:      {OrderStatusShipped, OrderStatusCancelled},
		OrderStatusShipped:   {},
		OrderStatusDelivered: {},
		OrderStatusCancelled: {},
	},
}

func (p TransitionPolicy) Name() string {
	return p.name
}

func (p TransitionPolicy) CanTransition(from, to OrderStatus) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from.IsTerminal() {
		return false
	}
	targets, restricted := p.allowed[from]
	if !restricted {
		return true
	}
	return slices.Contains(targets, to)
}
