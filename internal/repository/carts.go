package repository

import (
	"context"
	"fmt"

	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
)

type sqlCarts struct {
	q querier
}

func (c *sqlCarts) ListItems(ctx context.Context, userID int64) ([]domain.CartItem, error) {
	query := `SELECT user_id, product_id, quantity, added_at
	          FROM cart_items WHERE user_id = $1 ORDER BY added_at, product_id`

	rows, err := c.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, persistenceError("query cart items", err)
	}
	defer rows.Close()

	var items []domain.CartItem
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.UserID, &item.ProductID, &item.Quantity, &item.AddedAt); err != nil {
			return nil, persistenceError("scan cart item", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, persistenceError("cart rows iteration", err)
	}

	return items, nil
}

func (c *sqlCarts) AddItem(ctx context.Context, item domain.CartItem) error {
	query := `INSERT INTO cart_items (user_id, product_id, quantity, added_at)
	          VALUES ($1, $2, $3, $4)
	          ON CONFLICT (user_id, product_id) DO UPDATE SET quantity = excluded.quantity`

	if _, err := c.q.ExecContext(ctx, query, item.UserID, item.ProductID, item.Quantity, item.AddedAt.UTC()); err != nil {
		return persistenceError("upsert cart item", err)
	}
	return nil
}

func (c *sqlCarts) RemoveItem(ctx context.Context, userID, productID int64) error {
	query := `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`

	if _, err := c.q.ExecContext(ctx, query, userID, productID); err != nil {
		return persistenceError("delete cart item", err)
	}
	return nil
}

func (c *sqlCarts) ClearLines(ctx context.Context, userID int64, lines []domain.CartItem) (int, error) {
	query := `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2 AND quantity = $3`

	removed := 0
	for _, line := range lines {
		res, err := c.q.ExecContext(ctx, query, userID, line.ProductID, line.Quantity)
		if err != nil {
			return 0, persistenceError("clear cart line", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("clear cart rows affected: %w", err)
		}
		removed += int(n)
	}
	return removed, nil
}
