package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const OrderStatusConfirmed OrderStatus = "confirmed"

// Order is a committed sale. Lines are immutable once confirmed.
type Order struct {
	ID         string
	CustomerID int64
	CreatedAt  time.Time
	Total      decimal.Decimal
	Status     OrderStatus
	Lines      []OrderLine
}

type OrderLine struct {
	ID        int64
	OrderID   string
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

// OutboxMessage is an event recorded in the same unit of work as the order
// it describes. Seq is assigned by the store.
type OutboxMessage struct {
	Seq       int64
	EventID   string
	Topic     string
	Key       string
	Payload   []byte
	CreatedAt time.Time
}
