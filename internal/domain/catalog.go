package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer is the reference data an order points at. Only the active flag
// matters to the commit path.
type Customer struct {
	ID     int64
	Name   string
	TaxID  string
	Active bool
}

// Product carries the stock and price the inventory ledger owns.
type Product struct {
	ID       int64
	Name     string
	Price    decimal.Decimal
	Stock    int
	MinStock int
	Active   bool
}

// ProductRef is what the catalog hands back when resolving a line item.
type ProductRef struct {
	ID     int64
	Price  decimal.Decimal
	Active bool
}

// StockMovement is written once per committed line item. Delta is negative
// for sales.
type StockMovement struct {
	ProductID int64
	OrderID   string
	Delta     int
	Remaining int
	CreatedAt time.Time
}

// LowStockWarning signals that a commit left a product under its minimum.
type LowStockWarning struct {
	ProductID int64 `json:"productId"`
	Remaining int   `json:"remaining"`
	Minimum   int   `json:"minimum"`
}
