// Package inventory holds the stock rules applied while an order commits.
//
// A Ledger can only be built from a StockStore, and the only StockStore
// implementations are transaction handles handed out by a gateway's
// WithinTx. There is no way to decrement stock outside a unit of work.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/argom2011/TangoWEB/internal/domain"
)

// StockRow is the stock state of one product as seen by the enclosing
// transaction.
type StockRow struct {
	ProductID int64
	Stock     int
	MinStock  int
}

// StockStore is implemented by transaction handles.
type StockStore interface {
	// GetStockForUpdate reads the row and, where the store supports it,
	// locks it until the transaction ends.
	GetStockForUpdate(ctx context.Context, productID int64) (StockRow, error)
	// DecrementStock subtracts qty and returns the remaining stock. It
	// returns domain.ErrInsufficientStock instead of going below zero.
	DecrementStock(ctx context.Context, productID int64, qty int) (int, error)
}

type Availability struct {
	Available bool
	OnHand    int
	Shortfall int
}

type Reservation struct {
	Movement domain.StockMovement
	Warning  *domain.LowStockWarning
}

type Ledger struct {
	store StockStore
}

func NewLedger(store StockStore) *Ledger {
	return &Ledger{store: store}
}

// CheckAvailability reports whether qty units can be taken right now.
func (l *Ledger) CheckAvailability(ctx context.Context, productID int64, qty int) (Availability, error) {
	_, avail, err := l.check(ctx, productID, qty)
	return avail, err
}

func (l *Ledger) check(ctx context.Context, productID int64, qty int) (StockRow, Availability, error) {
	if qty <= 0 {
		return StockRow{}, Availability{}, domain.ErrInvalidQuantity
	}
	row, err := l.store.GetStockForUpdate(ctx, productID)
	if err != nil {
		return StockRow{}, Availability{}, err
	}
	if row.Stock >= qty {
		return row, Availability{Available: true, OnHand: row.Stock}, nil
	}
	return row, Availability{OnHand: row.Stock, Shortfall: qty - row.Stock}, nil
}

// ReserveAndDecrement takes qty units of a product for orderID. The read
// and the write happen against the same locked row.
func (l *Ledger) ReserveAndDecrement(ctx context.Context, orderID string, productID int64, qty int, at time.Time) (Reservation, error) {
	row, avail, err := l.check(ctx, productID, qty)
	if err != nil {
		return Reservation{}, err
	}
	if !avail.Available {
		return Reservation{}, &domain.InsufficientStockError{
			ProductID: productID,
			Requested: qty,
			Available: avail.OnHand,
		}
	}
	return l.take(ctx, orderID, row, qty, at)
}

// Demand is the quantity of one product asked for by one order line.
type Demand struct {
	ProductID int64
	Quantity  int
}

// Reserve takes stock for all demands of orderID at once.
//
// Rows are locked in ascending product id order. Demands are then checked in
// the order given, each against the running total asked for its product and
// the stock on hand when the row was locked; the first one that does not fit
// aborts the reservation. Each product is decremented once and yields one
// reservation, in lock order.
func (l *Ledger) Reserve(ctx context.Context, orderID string, demands []Demand, at time.Time) ([]Reservation, error) {
	total := make(map[int64]int, len(demands))
	ids := make([]int64, 0, len(demands))
	for _, d := range demands {
		if d.Quantity <= 0 {
			return nil, domain.ErrInvalidQuantity
		}
		if _, seen := total[d.ProductID]; !seen {
			ids = append(ids, d.ProductID)
		}
		total[d.ProductID] += d.Quantity
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	rows := make(map[int64]StockRow, len(ids))
	for _, id := range ids {
		row, err := l.store.GetStockForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		rows[id] = row
	}

	running := make(map[int64]int, len(ids))
	for _, d := range demands {
		running[d.ProductID] += d.Quantity
		if onHand := rows[d.ProductID].Stock; running[d.ProductID] > onHand {
			return nil, &domain.InsufficientStockError{
				ProductID: d.ProductID,
				Requested: running[d.ProductID],
				Available: onHand,
			}
		}
	}

	out := make([]Reservation, 0, len(ids))
	for _, id := range ids {
		res, err := l.take(ctx, orderID, rows[id], total[id], at)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

// take decrements a row already read under lock.
func (l *Ledger) take(ctx context.Context, orderID string, row StockRow, qty int, at time.Time) (Reservation, error) {
	remaining, err := l.store.DecrementStock(ctx, row.ProductID, qty)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			return Reservation{}, &domain.InsufficientStockError{
				ProductID: row.ProductID,
				Requested: qty,
				Available: row.Stock,
			}
		}
		return Reservation{}, err
	}
	if remaining < 0 {
		return Reservation{}, fmt.Errorf("product %d: stock would go negative (%d)", row.ProductID, remaining)
	}

	res := Reservation{
		Movement: domain.StockMovement{
			ProductID: row.ProductID,
			OrderID:   orderID,
			Delta:     -qty,
			Remaining: remaining,
			CreatedAt: at,
		},
	}
	if remaining < row.MinStock {
		res.Warning = &domain.LowStockWarning{
			ProductID: row.ProductID,
			Remaining: remaining,
			Minimum:   row.MinStock,
		}
	}
	return res, nil
}
