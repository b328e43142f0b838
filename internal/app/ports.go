package app

import (
	"context"

	"github.com/argom2011/TangoWEB/internal/domain"
	"github.com/argom2011/TangoWEB/internal/inventory"
)

// Catalog resolves the customer and product references of an aggregate.
type Catalog interface {
	// IsCustomerActive returns domain.ErrUnknownCustomer for missing ids.
	IsCustomerActive(ctx context.Context, customerID int64) (bool, error)
	// GetActiveProduct returns domain.ErrUnknownProduct for missing ids.
	GetActiveProduct(ctx context.Context, productID int64) (domain.ProductRef, error)
}

// UnitOfWork is the transaction handle passed to WithinTx callbacks. It is
// only valid until the callback returns.
type UnitOfWork interface {
	inventory.StockStore
	InsertOrder(ctx context.Context, order domain.Order) (string, error)
	InsertStockMovements(ctx context.Context, movements []domain.StockMovement) error
	AppendOutbox(ctx context.Context, msg domain.OutboxMessage) error
}

// Gateway opens units of work. WithinTx commits when fn returns nil and
// rolls back otherwise, including on panics and context cancellation.
// Conflicting concurrent updates are reported as domain.ErrConcurrencyConflict.
type Gateway interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
}

// CommitRecorder receives one observation per Commit call.
type CommitRecorder interface {
	ObserveCommit(kind string, attempts int, seconds float64)
}

type nopRecorder struct{}

func (nopRecorder) ObserveCommit(string, int, float64) {}
