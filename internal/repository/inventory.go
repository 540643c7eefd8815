package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
)

type sqlInventory struct {
	q querier
}

func (i *sqlInventory) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	query := `SELECT id, name, unit_price, stock FROM products WHERE id = $1`

	var p domain.Product
	err := i.q.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name, &p.UnitPrice, &p.Stock)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, persistenceError("query product by id", err)
	}
	return &p, nil
}

func (i *sqlInventory) DecrementStock(ctx context.Context, id int64, qty int) error {
	query := `UPDATE products SET stock = stock - $1 WHERE id = $2 AND stock >= $1`

	res, err := i.q.ExecContext(ctx, query, qty, id)
	if err != nil {
		return persistenceError("decrement stock", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return persistenceError("decrement stock rows affected", err)
	}
	if n == 0 {
		return ErrInsufficientStock
	}
	return nil
}

func (i *sqlInventory) UpsertProduct(ctx context.Context, p *domain.Product) error {
	query := `INSERT INTO products (id, name, unit_price, stock)
	          VALUES ($1, $2, $3, $4)
	          ON CONFLICT (id) DO UPDATE
	          SET name = excluded.name, unit_price = excluded.unit_price, stock = excluded.stock`

	if _, err := i.q.ExecContext(ctx, query, p.ID, p.Name, p.UnitPrice, p.Stock); err != nil {
		return persistenceError("upsert product", err)
	}
	return nil
}
