package domain

import (
	"github.com/shopspring/decimal"
)

// DefaultTotalEpsilon is the rounding slack allowed between a declared total
// and the sum of its line subtotals.
var DefaultTotalEpsilon = decimal.New(5, -3)

// RawLineItem is a cart line as received from the caller.
type RawLineItem struct {
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
}

// LineItem is a validated cart line. UnitPrice is the cart-time snapshot.
type LineItem struct {
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

func NewLineItem(productID int64, quantity int, unitPrice decimal.Decimal) LineItem {
	return LineItem{
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Subtotal:  unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

// Aggregate is a candidate order that has not been committed yet.
type Aggregate struct {
	CustomerID int64
	Items      []LineItem
	Total      decimal.Decimal
}

// BuildAggregate turns raw cart input into an Aggregate. It performs no I/O.
func BuildAggregate(customerID int64, raw []RawLineItem, declaredTotal decimal.Decimal) (Aggregate, error) {
	if len(raw) == 0 {
		return Aggregate{}, ErrEmptyOrder
	}
	items := make([]LineItem, 0, len(raw))
	for i, r := range raw {
		if err := checkLine(i, r.ProductID, r.Quantity, r.UnitPrice); err != nil {
			return Aggregate{}, err
		}
		items = append(items, NewLineItem(r.ProductID, r.Quantity, r.UnitPrice))
	}

	agg := Aggregate{
		CustomerID: customerID,
		Items:      items,
		Total:      declaredTotal,
	}
	if err := agg.checkTotal(DefaultTotalEpsilon); err != nil {
		return Aggregate{}, err
	}
	return agg, nil
}

// Validate re-checks every structural rule, including that each stored
// subtotal really is quantity times unit price.
func (a Aggregate) Validate(epsilon decimal.Decimal) error {
	if len(a.Items) == 0 {
		return ErrEmptyOrder
	}
	for i, it := range a.Items {
		if err := checkLine(i, it.ProductID, it.Quantity, it.UnitPrice); err != nil {
			return err
		}
		want := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		if !it.Subtotal.Equal(want) {
			return &LineError{Index: i, ProductID: it.ProductID, Err: &TotalMismatchError{Declared: it.Subtotal, Computed: want}}
		}
	}
	return a.checkTotal(epsilon)
}

// ComputedTotal sums the line subtotals.
func (a Aggregate) ComputedTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range a.Items {
		sum = sum.Add(it.Subtotal)
	}
	return sum
}

func (a Aggregate) checkTotal(epsilon decimal.Decimal) error {
	computed := a.ComputedTotal()
	if a.Total.Sub(computed).Abs().GreaterThan(epsilon) {
		return &TotalMismatchError{Declared: a.Total, Computed: computed}
	}
	return nil
}

func checkLine(i int, productID int64, quantity int, price decimal.Decimal) error {
	if quantity <= 0 {
		return &LineError{Index: i, ProductID: productID, Err: ErrInvalidQuantity}
	}
	if price.IsNegative() {
		return &LineError{Index: i, ProductID: productID, Err: ErrInvalidPrice}
	}
	return nil
}

// AggregateState tracks an aggregate through a single commit call.
type AggregateState string

const (
	StateBuilt      AggregateState = "built"
	StateValidating AggregateState = "validating"
	StateCommitting AggregateState = "committing"
	StateConfirmed  AggregateState = "confirmed"
	StateRejected   AggregateState = "rejected"
)

// Terminal reports whether no further transition is allowed.
func (s AggregateState) Terminal() bool {
	return s == StateConfirmed || s == StateRejected
}

// CanTransition reports whether moving from s to next is legal.
func (s AggregateState) CanTransition(next AggregateState) bool {
	switch s {
	case StateBuilt:
		return next == StateValidating
	case StateValidating:
		return next == StateCommitting || next == StateRejected
	case StateCommitting:
		return next == StateConfirmed || next == StateRejected
	default:
		return false
	}
}
