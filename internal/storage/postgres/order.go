package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pasheon/boutique-backend/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders (name, email, phone, address, payment, total_amount)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	insertOrderItemSQL = `INSERT INTO order_items (order_id, product_id, size, quantity, price)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5)`

	listOrdersByPhoneSQL = `SELECT id, name, email, phone, address, payment, total_amount, created_at
		FROM orders WHERE phone = $1 ORDER BY created_at DESC`

	listItemsForOrdersSQL = `SELECT oi.order_id, oi.product_id, COALESCE(oi.size, ''), oi.quantity, oi.price,
			COALESCE(p.name, ''), COALESCE(p.image_url, '')
		FROM order_items oi
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.id`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order header and all line items in a single
// transaction. The header insert yields the generated id the item rows
// reference; the item inserts are pipelined in one batch on the same
// transaction. Any failure rolls the whole transaction back, so reads never
// observe a partial order.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin order transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	err = tx.QueryRow(ctx, insertOrderSQL,
		o.Name, o.Email, o.Phone, o.Address, o.Payment, o.TotalAmount,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("inserting order header: %w", err)
	}

	batch := &pgx.Batch{}
	for _, item := range o.Items {
		batch.Queue(insertOrderItemSQL, o.ID, item.ProductID, item.Size, item.Quantity, item.Price)
	}

	br := tx.SendBatch(ctx, batch)
	for i := range o.Items {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return 0, fmt.Errorf("inserting order item %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("closing order item batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing order %d: %w", o.ID, err)
	}
	return o.ID, nil
}

// ListByPhone returns a customer's orders newest-first, each carrying its
// line items joined with catalog name and image.
func (r *OrderRepository) ListByPhone(ctx context.Context, phone string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByPhoneSQL, phone)
	if err != nil {
		return nil, fmt.Errorf("listing orders by phone: %w", err)
	}

	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders by phone: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]int64, len(orders))
	index := make(map[int64]*order.Order, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		index[orders[i].ID] = &orders[i]
	}

	itemRows, err := r.pool.Query(ctx, listItemsForOrdersSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("listing order items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var (
			orderID int64
			item    order.LineItem
		)
		err := itemRows.Scan(&orderID, &item.ProductID, &item.Size, &item.Quantity,
			&item.Price, &item.ProductName, &item.ImageURL)
		if err != nil {
			return nil, fmt.Errorf("scanning order item: %w", err)
		}
		if o, ok := index[orderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("listing order items: %w", err)
	}

	return orders, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var o order.Order
	err := row.Scan(&o.ID, &o.Name, &o.Email, &o.Phone, &o.Address,
		&o.Payment, &o.TotalAmount, &o.CreatedAt)
	return o, err
}
