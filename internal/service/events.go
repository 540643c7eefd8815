package service

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
)

func orderCreatedEvent(order *domain.Order) (*domain.OutboxEvent, error) {
	items := make([]map[string]interface{}, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, map[string]interface{}{
			"product_id":   item.ProductID,
			"product_name": item.ProductName,
			"quantity":     item.Quantity,
			"unit_price":   item.UnitPriceAtPurchase.StringFixed(2),
		})
	}

	payload := map[string]interface{}{
		"order_id":    order.ID.String(),
		"user_id":     order.UserID,
		"status":      order.Status,
		"total_price": order.TotalPrice.StringFixed(2),
		"items":       items,
		"created_at":  order.CreatedAt.Format(time.RFC3339Nano),
	}
	return newEvent(order, domain.EventOrderCreated, payload, order.CreatedAt)
}

func statusChangedEvent(order *domain.Order, from domain.OrderStatus, at time.Time) (*domain.OutboxEvent, error) {
	payload := map[string]interface{}{
		"order_id":    order.ID.String(),
		"user_id":     order.UserID,
		"from_status": from,
		"to_status":   order.Status,
		"changed_at":  at.Format(time.RFC3339Nano),
	}
	return newEvent(order, domain.EventOrderStatusChanged, payload, at)
}

func newEvent(order *domain.Order, eventType string, payload map[string]interface{}, at time.Time) (*domain.OutboxEvent, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return &domain.OutboxEvent{
		AggregateID: order.ID.String(),
		EventType:   eventType,
		Payload:     payloadJSON,
		CreatedAt:   at,
	}, nil
}
