package main

import (
	"context"

	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
	"github.com/fjod/go_cart/fulfillment-service/internal/repository"
	"github.com/shopspring/decimal"
)

var demoCatalog = []domain.Product{
	{ID: 1, Name: "Laptop", UnitPrice: decimal.RequireFromString("1299.99"), Stock: 100},
	{ID: 2, Name: "Mouse", UnitPrice: decimal.RequireFromString("29.99"), Stock: 500},
	{ID: 3, Name: "Keyboard", UnitPrice: decimal.RequireFromString("79.99"), Stock: 300},
	{ID: 4, Name: "Monitor", UnitPrice: decimal.RequireFromString("349.00"), Stock: 150},
	{ID: 5, Name: "Headphones", UnitPrice: decimal.RequireFromString("149.50"), Stock: 200},
}

func seedCatalog(ctx context.Context, inv repository.InventoryStore) error {
	for i := range demoCatalog {
		if err := inv.UpsertProduct(ctx, &demoCatalog[i]); err != nil {
			return err
		}
	}
	return nil
}
