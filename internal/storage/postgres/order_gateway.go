package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/argom2011/TangoWEB/internal/app"
	"github.com/argom2011/TangoWEB/internal/domain"
	"github.com/argom2011/TangoWEB/internal/inventory"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OrderGateway opens the units of work an order commit runs in. Stock rows
// are locked with SELECT ... FOR UPDATE and decremented with a guarded
// UPDATE, so stock never goes negative under any isolation level.
type OrderGateway struct {
	pool *pgxpool.Pool
	opts pgx.TxOptions
}

func NewOrderGateway(pool *pgxpool.Pool, iso pgx.TxIsoLevel) *OrderGateway {
	if iso == "" {
		iso = pgx.ReadCommitted
	}
	return &OrderGateway{pool: pool, opts: pgx.TxOptions{IsoLevel: iso}}
}

func (g *OrderGateway) WithinTx(ctx context.Context, fn func(ctx context.Context, uow app.UnitOfWork) error) error {
	return withTx(ctx, g.pool, g.opts, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &unitOfWork{tx: tx})
	})
}

type unitOfWork struct {
	tx pgx.Tx
}

var _ inventory.StockStore = (*unitOfWork)(nil)

func (u *unitOfWork) GetStockForUpdate(ctx context.Context, productID int64) (inventory.StockRow, error) {
	const query = `SELECT stock, min_stock FROM products WHERE id = $1 FOR UPDATE`

	row := inventory.StockRow{ProductID: productID}
	err := u.tx.QueryRow(ctx, query, productID).Scan(&row.Stock, &row.MinStock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return inventory.StockRow{}, domain.ErrUnknownProduct
		}
		return inventory.StockRow{}, fmt.Errorf("lock product %d: %w", productID, err)
	}
	return row, nil
}

func (u *unitOfWork) DecrementStock(ctx context.Context, productID int64, qty int) (int, error) {
	const stmt = `
UPDATE products
SET stock = stock - $2
WHERE id = $1 AND stock >= $2
RETURNING stock`

	var remaining int
	err := u.tx.QueryRow(ctx, stmt, productID, qty).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isCheckViolation(err) {
			return 0, domain.ErrInsufficientStock
		}
		return 0, fmt.Errorf("decrement stock of product %d: %w", productID, err)
	}
	return remaining, nil
}

func (u *unitOfWork) InsertOrder(ctx context.Context, order domain.Order) (string, error) {
	const orderStmt = `
INSERT INTO orders (id, customer_id, created_at, total, status)
VALUES ($1, $2, $3, $4::text::numeric, $5)`
	const lineStmt = `
INSERT INTO order_lines (order_id, product_id, quantity, unit_price, subtotal)
VALUES ($1, $2, $3, $4::text::numeric, $5::text::numeric)`

	_, err := u.tx.Exec(ctx, orderStmt,
		order.ID, order.CustomerID, order.CreatedAt, order.Total.String(), string(order.Status))
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("insert order %s: duplicate id: %w", order.ID, err)
		}
		return "", fmt.Errorf("insert order: %w", err)
	}

	batch := &pgx.Batch{}
	for _, l := range order.Lines {
		batch.Queue(lineStmt, order.ID, l.ProductID, l.Quantity, l.UnitPrice.String(), l.Subtotal.String())
	}
	if err := u.tx.SendBatch(ctx, batch).Close(); err != nil {
		return "", fmt.Errorf("insert order lines: %w", err)
	}
	return order.ID, nil
}

func (u *unitOfWork) InsertStockMovements(ctx context.Context, movements []domain.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(movements))
	for _, m := range movements {
		orderID, err := uuid.Parse(m.OrderID)
		if err != nil {
			return fmt.Errorf("stock movement order id %q: %w", m.OrderID, err)
		}
		rows = append(rows, []any{m.ProductID, orderID, m.Delta, m.Remaining, m.CreatedAt})
	}

	_, err := u.tx.CopyFrom(ctx,
		pgx.Identifier{"stock_movements"},
		[]string{"product_id", "order_id", "delta", "remaining", "created_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("insert stock movements: %w", err)
	}
	return nil
}

func (u *unitOfWork) AppendOutbox(ctx context.Context, msg domain.OutboxMessage) error {
	const stmt = `
INSERT INTO outbox (event_id, topic, key, payload, created_at)
VALUES ($1, $2, $3, $4, $5)`

	if _, err := u.tx.Exec(ctx, stmt, msg.EventID, msg.Topic, msg.Key, msg.Payload, msg.CreatedAt); err != nil {
		return fmt.Errorf("append outbox: %w", err)
	}
	return nil
}
