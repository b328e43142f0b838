package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"testing"

	"github.com/argom2011/TangoWEB/internal/app"
	"github.com/argom2011/TangoWEB/internal/clock"
	"github.com/argom2011/TangoWEB/internal/domain"
	"github.com/argom2011/TangoWEB/internal/storage/postgres"
	"github.com/argom2011/TangoWEB/internal/testutil"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

func TestConfirmOrder_HTTPIntegration(t *testing.T) {
	pool := testutil.NewTestPool(t)
	testutil.ApplyMigrations(t, context.Background(), pool)

	ctx := context.Background()
	testutil.TruncateAll(t, ctx, pool)
	customerID := testutil.InsertCustomer(t, ctx, pool, domain.Customer{Name: "Distribuidora Norte", TaxID: "30-71234567-8", Active: true})
	productID := testutil.InsertProduct(t, ctx, pool, domain.Product{
		Name: "Yerba 1kg", Price: decimal.RequireFromString("10.00"), Stock: 5, MinStock: 3, Active: true,
	})

	catalog := postgres.NewCatalogRepository(pool)
	commit := app.NewCommitService(catalog, postgres.NewOrderGateway(pool, pgx.ReadCommitted), clock.NewSystem(),
		app.WithLogger(log.New(io.Discard, "", 0)))
	mux := NewRouter(Routes{
		Commit:  commit,
		Orders:  app.NewOrderQueryService(postgres.NewOrderRepository(pool)),
		Catalog: app.NewCatalogService(catalog),
		Health:  pool,
	})

	body := fmt.Sprintf(`{"customerID":%d,"total":"30.00","items":[{"productID":%d,"quantity":3,"unitPrice":"10.00"}]}`, customerID, productID)
	rec := post(t, mux, "/orders:confirm", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var resp confirmOrderResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Warnings) != 1 || resp.Warnings[0].Remaining != 2 {
		t.Fatalf("expected low stock warning, got %+v", resp.Warnings)
	}

	if got := testutil.ProductStock(t, ctx, pool, productID); got != 2 {
		t.Fatalf("expected stock 2, got %d", got)
	}
	if got := testutil.CountRows(t, ctx, pool, "outbox"); got != 1 {
		t.Fatalf("expected 1 outbox row, got %d", got)
	}

	// the same cart again no longer fits
	rec = post(t, mux, "/orders:confirm", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d (%s)", rec.Code, rec.Body.String())
	}
	if got := testutil.CountRows(t, ctx, pool, "orders"); got != 1 {
		t.Fatalf("expected 1 order, got %d", got)
	}
	if got := testutil.ProductStock(t, ctx, pool, productID); got != 2 {
		t.Fatalf("expected stock to stay at 2, got %d", got)
	}
}
