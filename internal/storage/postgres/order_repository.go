package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/argom2011/TangoWEB/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// OrderRepository reads committed orders. Writes only happen through
// OrderGateway.
type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	id, err := uuid.Parse(orderID)
	if err != nil {
		return domain.Order{}, domain.ErrInvalidID
	}

	const query = `
SELECT id::text, customer_id, created_at, total::text, status
FROM orders
WHERE id = $1`

	rows, err := querierFor(ctx, r.pool).Query(ctx, query, id)
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}
	order, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		if isInvalidText(err) {
			return domain.Order{}, domain.ErrInvalidID
		}
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}

	orders := []domain.Order{order}
	if err := r.attachLines(ctx, orders); err != nil {
		return domain.Order{}, err
	}
	return orders[0], nil
}

// ListOrders returns up to limit orders, newest first, with their lines.
func (r *OrderRepository) ListOrders(ctx context.Context, limit int) ([]domain.Order, error) {
	const query = `
SELECT id::text, customer_id, created_at, total::text, status
FROM orders
ORDER BY created_at DESC, id
LIMIT $1`

	rows, err := querierFor(ctx, r.pool).Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("scan orders: %w", err)
	}
	if err := r.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *OrderRepository) attachLines(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		id, err := uuid.Parse(o.ID)
		if err != nil {
			return fmt.Errorf("order id %q: %w", o.ID, err)
		}
		ids = append(ids, id)
		index[o.ID] = i
		orders[i].Lines = []domain.OrderLine{}
	}

	const query = `
SELECT id, order_id::text, product_id, quantity, unit_price::text, subtotal::text
FROM order_lines
WHERE order_id = ANY($1)
ORDER BY id`

	rows, err := querierFor(ctx, r.pool).Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("list order lines: %w", err)
	}
	lines, err := pgx.CollectRows(rows, scanOrderLine)
	if err != nil {
		return fmt.Errorf("scan order lines: %w", err)
	}
	for _, l := range lines {
		i := index[l.OrderID]
		orders[i].Lines = append(orders[i].Lines, l)
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (domain.Order, error) {
	var (
		o      domain.Order
		total  string
		status string
	)
	if err := row.Scan(&o.ID, &o.CustomerID, &o.CreatedAt, &total, &status); err != nil {
		return domain.Order{}, err
	}
	var err error
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return domain.Order{}, fmt.Errorf("order %s total %q: %w", o.ID, total, err)
	}
	o.CreatedAt = o.CreatedAt.UTC()
	o.Status = domain.OrderStatus(status)
	return o, nil
}

func scanOrderLine(row pgx.CollectableRow) (domain.OrderLine, error) {
	var (
		l               domain.OrderLine
		price, subtotal string
	)
	if err := row.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Quantity, &price, &subtotal); err != nil {
		return domain.OrderLine{}, err
	}
	var err error
	if l.UnitPrice, err = decimal.NewFromString(price); err != nil {
		return domain.OrderLine{}, err
	}
	if l.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
		return domain.OrderLine{}, err
	}
	return l, nil
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// querierFor returns the transaction carried by ctx, or the pool.
func querierFor(ctx context.Context, pool *pgxpool.Pool) querier {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}
