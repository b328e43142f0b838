package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/argom2011/TangoWEB/internal/domain"
	"github.com/shopspring/decimal"
)

type stubOrderReader struct {
	order    domain.Order
	orders   []domain.Order
	err      error
	gotID    string
	gotLimit int
}

func (s *stubOrderReader) Get(_ context.Context, orderID string) (domain.Order, error) {
	s.gotID = orderID
	return s.order, s.err
}

func (s *stubOrderReader) List(_ context.Context, limit int) ([]domain.Order, error) {
	s.gotLimit = limit
	return s.orders, s.err
}

func sampleOrder() domain.Order {
	return domain.Order{
		ID:         "order-1",
		CustomerID: 3,
		CreatedAt:  time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC),
		Total:      decimal.RequireFromString("25.5"),
		Status:     domain.OrderStatusConfirmed,
		Lines: []domain.OrderLine{
			{ID: 1, OrderID: "order-1", ProductID: 4, Quantity: 3, UnitPrice: decimal.RequireFromString("8.5"), Subtotal: decimal.RequireFromString("25.5")},
		},
	}
}

func TestHandleGetOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		method         string
		path           string
		serviceErr     error
		expectedStatus int
		expectedCode   string
	}{
		{name: "found", path: "/orders/order-1", expectedStatus: http.StatusOK},
		{name: "not found", path: "/orders/order-1", serviceErr: domain.ErrOrderNotFound, expectedStatus: http.StatusNotFound, expectedCode: codeOrderNotFound},
		{name: "invalid id", path: "/orders/xyz", serviceErr: domain.ErrInvalidID, expectedStatus: http.StatusBadRequest, expectedCode: codeInvalidID},
		{name: "nested path", path: "/orders/order-1/lines", expectedStatus: http.StatusNotFound, expectedCode: codeNotFound},
		{name: "wrong method", method: http.MethodDelete, path: "/orders/order-1", expectedStatus: http.StatusMethodNotAllowed, expectedCode: codeMethodNotAllowed},
		{name: "storage failure", path: "/orders/order-1", serviceErr: errors.New("boom"), expectedStatus: http.StatusInternalServerError, expectedCode: codeInternalError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &stubOrderReader{order: sampleOrder(), err: tt.serviceErr}
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req := httptest.NewRequest(method, tt.path, nil)
			rec := httptest.NewRecorder()

			HandleGetOrder(svc).ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
			if tt.expectedCode != "" {
				var resp errorResponse
				if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
					t.Fatalf("decode response: %v", err)
				}
				if resp.Code != tt.expectedCode {
					t.Fatalf("expected code %s, got %s", tt.expectedCode, resp.Code)
				}
				return
			}

			var resp orderResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if svc.gotID != "order-1" {
				t.Fatalf("expected lookup of order-1, got %q", svc.gotID)
			}
			if resp.Total != "25.50" || resp.Status != "confirmed" {
				t.Fatalf("unexpected order %+v", resp)
			}
			if len(resp.Lines) != 1 || resp.Lines[0].UnitPrice != "8.50" || resp.Lines[0].Quantity != 3 {
				t.Fatalf("unexpected lines %+v", resp.Lines)
			}
		})
	}
}

func TestHandleListOrders(t *testing.T) {
	t.Parallel()

	svc := &stubOrderReader{orders: []domain.Order{sampleOrder()}}
	req := httptest.NewRequest(http.MethodGet, "/orders?limit=10", nil)
	rec := httptest.NewRecorder()

	HandleListOrders(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if svc.gotLimit != 10 {
		t.Fatalf("expected limit 10, got %d", svc.gotLimit)
	}
	var resp []orderResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 1 || resp[0].ID != "order-1" {
		t.Fatalf("unexpected orders %+v", resp)
	}
}

func TestHandleListOrders_EmptyIsArray(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rec := httptest.NewRecorder()

	HandleListOrders(&stubOrderReader{}).ServeHTTP(rec, req)

	if got := rec.Body.String(); got != "[]\n" {
		t.Fatalf("expected empty array, got %q", got)
	}
}

func TestHandleListOrders_BadLimit(t *testing.T) {
	t.Parallel()

	for _, limit := range []string{"abc", "-1"} {
		req := httptest.NewRequest(http.MethodGet, "/orders?limit="+limit, nil)
		rec := httptest.NewRecorder()

		HandleListOrders(&stubOrderReader{}).ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("limit %q: expected status 400, got %d", limit, rec.Code)
		}
	}
}
