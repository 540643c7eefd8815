package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
	"github.com/google/uuid"
)

const orderColumns = `id, user_id, status, shipping_address, internal_notes, total_price, created_at, updated_at`

type sqlOrders struct {
	q querier
}

func (o *sqlOrders) Save(ctx context.Context, order *domain.Order) error {
	query := `INSERT INTO orders (` + orderColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := o.q.ExecContext(ctx, query,
		order.ID,
		order.UserID,
		string(order.Status),
		order.ShippingAddress,
		order.InternalNotes,
		order.TotalPrice,
		order.CreatedAt.UTC(),
		order.UpdatedAt.UTC())
	if err != nil {
		return persistenceError("insert order", err)
	}

	itemQuery := `INSERT INTO order_items (order_id, line_no, product_id, product_name, quantity, unit_price)
	              VALUES ($1, $2, $3, $4, $5, $6)`
	for i, item := range order.Items {
		_, err := o.q.ExecContext(ctx, itemQuery,
			order.ID,
			i+1,
			item.ProductID,
			item.ProductName,
			item.Quantity,
			item.UnitPriceAtPurchase)
		if err != nil {
			return persistenceError("insert order item", err)
		}
	}
	return nil
}

func (o *sqlOrders) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(o.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, persistenceError("query order by id", err)
	}

	items, err := o.loadItems(ctx, []uuid.UUID{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]
	return order, nil
}

func (o *sqlOrders) FindPage(ctx context.Context, filter OrderFilter, page, size int) (*domain.Page[domain.Order], error) {
	where := ""
	var args []any
	if filter.UserID != nil {
		where = " WHERE user_id = $1"
		args = append(args, *filter.UserID)
	}

	var total int64
	if err := o.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, persistenceError("count orders", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)+1, len(args)+2)
	rows, err := o.q.QueryContext(ctx, query, append(args, size, page*size)...)
	if err != nil {
		return nil, persistenceError("query orders page", err)
	}
	defer rows.Close()

	var orders []domain.Order
	var ids []uuid.UUID
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, persistenceError("scan order row", err)
		}
		orders = append(orders, *order)
		ids = append(ids, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError("order rows iteration", err)
	}
	rows.Close()

	items, err := o.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}

	return domain.NewPage(orders, page, size, total), nil
}

func (o *sqlOrders) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus, at time.Time) error {
	query := `UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`

	res, err := o.q.ExecContext(ctx, query, string(to), at.UTC(), id, string(from))
	if err != nil {
		return persistenceError("update order status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return persistenceError("update order status rows affected", err)
	}
	if n > 0 {
		return nil
	}

	if _, err := o.currentStatus(ctx, id); err != nil {
		return err
	}
	return ErrStaleStatus
}

func (o *sqlOrders) UpdateNotes(ctx context.Context, id uuid.UUID, notes string, at time.Time) error {
	query := `UPDATE orders SET internal_notes = $1, updated_at = $2 WHERE id = $3`

	res, err := o.q.ExecContext(ctx, query, notes, at.UTC(), id)
	if err != nil {
		return persistenceError("update order notes", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return persistenceError("update order notes rows affected", err)
	}
	if n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (o *sqlOrders) HasItemsForProduct(ctx context.Context, productID int64) (bool, error) {
	var exists bool
	err := o.q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM order_items WHERE product_id = $1)`, productID).Scan(&exists)
	if err != nil {
		return false, persistenceError("query order items by product", err)
	}
	return exists, nil
}

func (o *sqlOrders) currentStatus(ctx context.Context, id uuid.UUID) (domain.OrderStatus, error) {
	var status string
	err := o.q.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrOrderNotFound
	}
	if err != nil {
		return "", persistenceError("query order status", err)
	}
	return domain.OrderStatus(status), nil
}

func (o *sqlOrders) loadItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]domain.OrderItem, error) {
	result := make(map[uuid.UUID][]domain.OrderItem, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := `SELECT order_id, product_id, product_name, quantity, unit_price
	          FROM order_items WHERE order_id IN (` + strings.Join(placeholders, ", ") + `)
	          ORDER BY order_id, line_no`

	rows, err := o.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistenceError("query order items", err)
	}
	defer rows.Close()

	for rows.Next() {
		var orderID uuid.UUID
		var item domain.OrderItem
		if err := rows.Scan(&orderID, &item.ProductID, &item.ProductName, &item.Quantity, &item.UnitPriceAtPurchase); err != nil {
			return nil, persistenceError("scan order item", err)
		}
		result[orderID] = append(result[orderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError("order item rows iteration", err)
	}

	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var status string
	var notes sql.NullString
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&status,
		&order.ShippingAddress,
		&notes,
		&order.TotalPrice,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	order.Status = domain.OrderStatus(status)
	if notes.Valid {
		order.InternalNotes = &notes.String
	}
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()
	return &order, nil
}
