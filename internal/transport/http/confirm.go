package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/argom2011/TangoWEB/internal/app"
	"github.com/argom2011/TangoWEB/internal/domain"
	"github.com/shopspring/decimal"
)

const maxConfirmBodyBytes = 1 << 20

// OrderCommitter is the minimal interface needed to confirm an order.
type OrderCommitter interface {
	Commit(ctx context.Context, agg domain.Aggregate) (app.CommitResult, error)
}

// HandleConfirmOrder returns an HTTP handler that turns a cart into a
// committed order.
func HandleConfirmOrder(svc OrderCommitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req confirmOrderRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxConfirmBodyBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		customerID := req.customerID()
		if customerID <= 0 {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "customerID is required")
			return
		}

		agg, err := domain.BuildAggregate(customerID, req.rawItems(), req.Total)
		if err != nil {
			writeCommitError(w, err)
			return
		}

		res, err := svc.Commit(r.Context(), agg)
		if err != nil {
			writeCommitError(w, err)
			return
		}

		warnings := res.Warnings
		if warnings == nil {
			warnings = []domain.LowStockWarning{}
		}
		resp := confirmOrderResponse{
			OrderID:   res.OrderID,
			Total:     res.Total.StringFixed(2),
			CreatedAt: res.CreatedAt,
			Warnings:  warnings,
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// confirmOrderRequest accepts both the English field names and the ones the
// sales screen has always sent. Display-only fields (product name, line
// subtotal) are ignored; subtotals are recomputed.
type confirmOrderRequest struct {
	CustomerID int64              `json:"customerID"`
	ClienteID  int64              `json:"clienteID"`
	Total      decimal.Decimal    `json:"total"`
	Items      []confirmOrderItem `json:"items"`
}

type confirmOrderItem struct {
	ProductID      int64            `json:"productID"`
	ProductoID     int64            `json:"productoID"`
	Quantity       *int             `json:"quantity"`
	Cantidad       *int             `json:"cantidad"`
	UnitPrice      *decimal.Decimal `json:"unitPrice"`
	PrecioUnitario *decimal.Decimal `json:"precioUnitario"`
}

func (r confirmOrderRequest) customerID() int64 {
	if r.CustomerID != 0 {
		return r.CustomerID
	}
	return r.ClienteID
}

func (r confirmOrderRequest) rawItems() []domain.RawLineItem {
	out := make([]domain.RawLineItem, 0, len(r.Items))
	for _, it := range r.Items {
		raw := domain.RawLineItem{ProductID: it.ProductID}
		if raw.ProductID == 0 {
			raw.ProductID = it.ProductoID
		}
		switch {
		case it.Quantity != nil:
			raw.Quantity = *it.Quantity
		case it.Cantidad != nil:
			raw.Quantity = *it.Cantidad
		}
		switch {
		case it.UnitPrice != nil:
			raw.UnitPrice = *it.UnitPrice
		case it.PrecioUnitario != nil:
			raw.UnitPrice = *it.PrecioUnitario
		}
		out = append(out, raw)
	}
	return out
}

type confirmOrderResponse struct {
	OrderID   string                   `json:"orderId"`
	Total     string                   `json:"total"`
	CreatedAt time.Time                `json:"createdAt"`
	Warnings  []domain.LowStockWarning `json:"warnings"`
}
