// Package memory is an in-process implementation of the catalog, the
// persistence gateway and the outbox store.
//
// Units of work are optimistic: rows read inside a transaction remember the
// version they saw, and commit fails with domain.ErrConcurrencyConflict if
// any of them changed in the meantime.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/argom2011/TangoWEB/internal/app"
	"github.com/argom2011/TangoWEB/internal/domain"
	"github.com/argom2011/TangoWEB/internal/inventory"
	"github.com/shopspring/decimal"
)

type productRow struct {
	product domain.Product
	version int64
}

type outboxRow struct {
	msg  domain.OutboxMessage
	sent bool
}

type Store struct {
	mu        sync.Mutex
	customers map[int64]domain.Customer
	products  map[int64]*productRow
	orders    map[string]domain.Order
	movements []domain.StockMovement
	outbox    []outboxRow
	lineSeq   int64
	outboxSeq int64
}

func New() *Store {
	return &Store{
		customers: make(map[int64]domain.Customer),
		products:  make(map[int64]*productRow),
		orders:    make(map[string]domain.Order),
	}
}

// Seed loads a small demo catalog.
func (s *Store) Seed() {
	s.PutCustomer(domain.Customer{ID: 1, Name: "Distribuidora Norte", TaxID: "30-71234567-8", Active: true})
	s.PutCustomer(domain.Customer{ID: 2, Name: "Almacen Sur", TaxID: "20-23456789-1", Active: true})
	s.PutCustomer(domain.Customer{ID: 3, Name: "Kiosco Cerrado", TaxID: "27-34567890-2", Active: false})
	s.PutProduct(domain.Product{ID: 1, Name: "Yerba 1kg", Price: decimal.RequireFromString("10.00"), Stock: 50, MinStock: 10, Active: true})
	s.PutProduct(domain.Product{ID: 2, Name: "Azucar 1kg", Price: decimal.RequireFromString("4.25"), Stock: 80, MinStock: 20, Active: true})
	s.PutProduct(domain.Product{ID: 3, Name: "Cafe 500g", Price: decimal.RequireFromString("12.90"), Stock: 15, MinStock: 5, Active: true})
	s.PutProduct(domain.Product{ID: 4, Name: "Te discontinuado", Price: decimal.RequireFromString("3.00"), Stock: 5, Active: false})
}

func (s *Store) PutCustomer(c domain.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[c.ID] = c
}

// PutProduct inserts or replaces a product, bumping its row version.
func (s *Store) PutProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.products[p.ID]; ok {
		row.product = p
		row.version++
		return
	}
	s.products[p.ID] = &productRow{product: p, version: 1}
}

func (s *Store) Product(id int64) (domain.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.products[id]
	if !ok {
		return domain.Product{}, false
	}
	return row.product, true
}

func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *Store) Movements() []domain.StockMovement {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.StockMovement, len(s.movements))
	copy(out, s.movements)
	return out
}

func (s *Store) IsCustomerActive(_ context.Context, customerID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[customerID]
	if !ok {
		return false, domain.ErrUnknownCustomer
	}
	return c.Active, nil
}

func (s *Store) GetActiveProduct(_ context.Context, productID int64) (domain.ProductRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.products[productID]
	if !ok {
		return domain.ProductRef{}, domain.ErrUnknownProduct
	}
	return domain.ProductRef{ID: productID, Price: row.product.Price, Active: row.product.Active}, nil
}

func (s *Store) ListActiveCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		if c.Active {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) ListActiveProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Product, 0, len(s.products))
	for _, row := range s.products {
		if row.product.Active {
			out = append(out, row.product)
		}
	}
	return out, nil
}

func (s *Store) GetOrder(_ context.Context, orderID string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (s *Store) ListOrders(_ context.Context, limit int) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) FetchPending(_ context.Context, limit int) ([]domain.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.OutboxMessage
	for _, row := range s.outbox {
		if row.sent {
			continue
		}
		out = append(out, row.msg)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkSent(_ context.Context, seq int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.outbox {
		if s.outbox[i].msg.Seq == seq && !s.outbox[i].sent {
			s.outbox[i].sent = true
			return nil
		}
	}
	return fmt.Errorf("outbox message %d not pending", seq)
}

// WithinTx runs fn against a private copy of the rows it touches and applies
// the result only if fn succeeds and none of those rows changed meanwhile.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, uow app.UnitOfWork) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &unitOfWork{
		store: s,
		read:  make(map[int64]int64),
		rows:  make(map[int64]inventory.StockRow),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.apply(tx)
}

func (s *Store) apply(tx *unitOfWork) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, version := range tx.read {
		row, ok := s.products[id]
		if !ok || row.version != version {
			return domain.ErrConcurrencyConflict
		}
	}
	for _, o := range tx.orders {
		if _, exists := s.orders[o.ID]; exists {
			return fmt.Errorf("order %s already exists", o.ID)
		}
	}

	for id, staged := range tx.rows {
		row := s.products[id]
		if row.product.Stock != staged.Stock {
			row.product.Stock = staged.Stock
			row.version++
		}
	}
	for _, o := range tx.orders {
		for i := range o.Lines {
			s.lineSeq++
			o.Lines[i].ID = s.lineSeq
			o.Lines[i].OrderID = o.ID
		}
		s.orders[o.ID] = o
	}
	s.movements = append(s.movements, tx.movements...)
	for _, msg := range tx.outbox {
		s.outboxSeq++
		msg.Seq = s.outboxSeq
		s.outbox = append(s.outbox, outboxRow{msg: msg})
	}
	return nil
}

type unitOfWork struct {
	store     *Store
	read      map[int64]int64
	rows      map[int64]inventory.StockRow
	orders    []domain.Order
	movements []domain.StockMovement
	outbox    []domain.OutboxMessage
}

func (u *unitOfWork) GetStockForUpdate(ctx context.Context, productID int64) (inventory.StockRow, error) {
	if err := ctx.Err(); err != nil {
		return inventory.StockRow{}, err
	}
	if row, ok := u.rows[productID]; ok {
		return row, nil
	}

	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	pr, ok := u.store.products[productID]
	if !ok {
		return inventory.StockRow{}, domain.ErrUnknownProduct
	}
	row := inventory.StockRow{
		ProductID: productID,
		Stock:     pr.product.Stock,
		MinStock:  pr.product.MinStock,
	}
	u.read[productID] = pr.version
	u.rows[productID] = row
	return row, nil
}

func (u *unitOfWork) DecrementStock(ctx context.Context, productID int64, qty int) (int, error) {
	row, err := u.GetStockForUpdate(ctx, productID)
	if err != nil {
		return 0, err
	}
	if row.Stock < qty {
		return 0, domain.ErrInsufficientStock
	}
	row.Stock -= qty
	u.rows[productID] = row
	return row.Stock, nil
}

func (u *unitOfWork) InsertOrder(ctx context.Context, order domain.Order) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	u.orders = append(u.orders, cloneOrder(order))
	return order.ID, nil
}

func (u *unitOfWork) InsertStockMovements(ctx context.Context, movements []domain.StockMovement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	u.movements = append(u.movements, movements...)
	return nil
}

func (u *unitOfWork) AppendOutbox(ctx context.Context, msg domain.OutboxMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	u.outbox = append(u.outbox, msg)
	return nil
}

func cloneOrder(o domain.Order) domain.Order {
	lines := make([]domain.OrderLine, len(o.Lines))
	copy(lines, o.Lines)
	o.Lines = lines
	return o
}
