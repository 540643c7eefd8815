package http

import (
	"time"

	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
)

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type CreateOrderRequestDTO struct {
	ShippingAddress string `json:"shipping_address"`
}

type UpdateStatusRequestDTO struct {
	Status string `json:"status"`
}

type UpdateNotesRequestDTO struct {
	Notes string `json:"notes"`
}

type CartItemDTO struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	AddedAt   string `json:"added_at"`
}

type CartDTO struct {
	UserID int64         `json:"user_id"`
	Items  []CartItemDTO `json:"items"`
}

type OrderItemDTO struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Subtotal    string `json:"subtotal"`
}

type OrderResponseDTO struct {
	ID              string         `json:"id"`
	UserID          int64          `json:"user_id"`
	Status          string         `json:"status"`
	ShippingAddress string         `json:"shipping_address"`
	InternalNotes   *string        `json:"internal_notes,omitempty"`
	TotalPrice      string         `json:"total_price"`
	Items           []OrderItemDTO `json:"items"`
	CreatedAt       string         `json:"created_at"`
	UpdatedAt       string         `json:"updated_at"`
}

type OrderPageDTO struct {
	Orders      []OrderResponseDTO `json:"orders"`
	CurrentPage int                `json:"current_page"`
	PageSize    int                `json:"page_size"`
	TotalPages  int                `json:"total_pages"`
	TotalItems  int64              `json:"total_items"`
}

func convertCart(c *domain.Cart) CartDTO {
	items := make([]CartItemDTO, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, CartItemDTO{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			AddedAt:   item.AddedAt.UTC().Format(time.RFC3339),
		})
	}
	return CartDTO{UserID: c.UserID, Items: items}
}

// convertOrder hides internal notes from callers that are not staff.
func convertOrder(o *domain.Order, privileged bool) OrderResponseDTO {
	items := make([]OrderItemDTO, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemDTO{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPriceAtPurchase.StringFixed(2),
			Subtotal:    item.Subtotal().StringFixed(2),
		})
	}

	dto := OrderResponseDTO{
		ID:              o.ID.String(),
		UserID:          o.UserID,
		Status:          o.Status.String(),
		ShippingAddress: o.ShippingAddress,
		TotalPrice:      o.TotalPrice.StringFixed(2),
		Items:           items,
		CreatedAt:       o.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       o.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if privileged {
		dto.InternalNotes = o.InternalNotes
	}
	return dto
}

func convertOrderPage(p *domain.Page[domain.Order], privileged bool) OrderPageDTO {
	orders := make([]OrderResponseDTO, 0, len(p.Items))
	for i := range p.Items {
		orders = append(orders, convertOrder(&p.Items[i], privileged))
	}
	return OrderPageDTO{
		Orders:      orders,
		CurrentPage: p.Page,
		PageSize:    p.PageSize,
		TotalPages:  p.TotalPages,
		TotalItems:  p.TotalItems,
	}
}
