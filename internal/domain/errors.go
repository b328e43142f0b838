package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyOrder      = errors.New("order has no line items")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrInvalidPrice    = errors.New("invalid unit price")
	ErrTotalMismatch   = errors.New("total does not match line items")

	ErrUnknownCustomer  = errors.New("customer not found")
	ErrInactiveCustomer = errors.New("customer inactive")
	ErrUnknownProduct   = errors.New("product not found")
	ErrInactiveProduct  = errors.New("product inactive")
	ErrPriceMismatch    = errors.New("unit price differs from catalog price")

	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrConcurrencyConflict = errors.New("concurrent update conflict")

	ErrPersistence = errors.New("persistence failure")
	ErrTimeout     = errors.New("commit timed out")

	ErrOrderNotFound = errors.New("order not found")
	ErrInvalidID     = errors.New("invalid id")
)

// ErrorKind groups commit failures by how a caller is expected to react.
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindReference   ErrorKind = "reference"
	KindStock       ErrorKind = "stock"
	KindConflict    ErrorKind = "conflict"
	KindPersistence ErrorKind = "persistence"
)

// KindOf classifies err. Anything not recognised is a persistence failure.
func KindOf(err error) ErrorKind {
	var ce *CommitError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	switch {
	case errors.Is(err, ErrEmptyOrder),
		errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrInvalidPrice),
		errors.Is(err, ErrTotalMismatch):
		return KindValidation
	case errors.Is(err, ErrUnknownCustomer),
		errors.Is(err, ErrInactiveCustomer),
		errors.Is(err, ErrUnknownProduct),
		errors.Is(err, ErrInactiveProduct),
		errors.Is(err, ErrPriceMismatch):
		return KindReference
	case errors.Is(err, ErrInsufficientStock):
		return KindStock
	case errors.Is(err, ErrConcurrencyConflict):
		return KindConflict
	default:
		return KindPersistence
	}
}

// CommitError is the single error value returned by a failed commit.
type CommitError struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

// NewCommitError wraps err in a CommitError, classifying it. Errors that are
// already CommitErrors are returned unchanged.
func NewCommitError(err error) *CommitError {
	if err == nil {
		return nil
	}
	var ce *CommitError
	if errors.As(err, &ce) {
		return ce
	}
	kind := KindOf(err)
	if kind == KindPersistence && !errors.Is(err, ErrPersistence) && !errors.Is(err, ErrTimeout) {
		err = fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return &CommitError{Kind: kind, Detail: err.Error(), Err: err}
}

func (e *CommitError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("commit %s error: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("commit %s error", e.Kind)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

// LineError identifies the offending line item of an aggregate.
type LineError struct {
	Index     int
	ProductID int64
	Err       error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d (product %d): %v", e.Index, e.ProductID, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// TotalMismatchError reports a declared total that disagrees with the lines.
type TotalMismatchError struct {
	Declared decimal.Decimal
	Computed decimal.Decimal
}

func (e *TotalMismatchError) Error() string {
	return fmt.Sprintf("%v: declared %s, computed %s", ErrTotalMismatch, e.Declared.StringFixed(2), e.Computed.StringFixed(2))
}

func (e *TotalMismatchError) Unwrap() error {
	return ErrTotalMismatch
}

// ReferenceError names the customer or product that failed re-verification.
type ReferenceError struct {
	Entity string
	ID     int64
	Err    error
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%s %d: %v", e.Entity, e.ID, e.Err)
}

func (e *ReferenceError) Unwrap() error {
	return e.Err
}

// PriceMismatchError is returned when a snapshotted unit price drifted from
// the catalog price beyond the configured tolerance.
type PriceMismatchError struct {
	ProductID int64
	Quoted    decimal.Decimal
	Catalog   decimal.Decimal
}

func (e *PriceMismatchError) Error() string {
	return fmt.Sprintf("product %d: %v: quoted %s, catalog %s", e.ProductID, ErrPriceMismatch, e.Quoted.StringFixed(2), e.Catalog.StringFixed(2))
}

func (e *PriceMismatchError) Unwrap() error {
	return ErrPriceMismatch
}

// InsufficientStockError carries the shortfall for the first line that could
// not be served.
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("product %d: %v: requested %d, available %d", e.ProductID, ErrInsufficientStock, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// Shortfall is how many units are missing.
func (e *InsufficientStockError) Shortfall() int {
	return e.Requested - e.Available
}
