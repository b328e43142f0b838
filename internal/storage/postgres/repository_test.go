package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/argom2011/TangoWEB/internal/app"
	"github.com/argom2011/TangoWEB/internal/domain"
	"github.com/argom2011/TangoWEB/internal/testutil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

func TestCatalogRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewCatalogRepository(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	t.Run("customer lookups", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		active := testutil.InsertCustomer(t, ctx, pool, domain.Customer{Name: "Zeta", TaxID: "30-1", Active: true})
		inactive := testutil.InsertCustomer(t, ctx, pool, domain.Customer{Name: "Alfa", TaxID: "30-2", Active: false})
		testutil.InsertCustomer(t, ctx, pool, domain.Customer{Name: "Beta", TaxID: "30-3", Active: true})

		ok, err := repo.IsCustomerActive(ctx, active)
		if err != nil || !ok {
			t.Fatalf("expected active customer, got %v, %v", ok, err)
		}
		ok, err = repo.IsCustomerActive(ctx, inactive)
		if err != nil || ok {
			t.Fatalf("expected inactive customer, got %v, %v", ok, err)
		}
		if _, err := repo.IsCustomerActive(ctx, 9999); !errors.Is(err, domain.ErrUnknownCustomer) {
			t.Fatalf("expected ErrUnknownCustomer, got %v", err)
		}

		customers, err := repo.ListActiveCustomers(ctx)
		if err != nil {
			t.Fatalf("list customers: %v", err)
		}
		if len(customers) != 2 || customers[0].Name != "Beta" || customers[1].Name != "Zeta" {
			t.Fatalf("unexpected customers: %+v", customers)
		}
	})

	t.Run("product lookups keep exact prices", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		id := testutil.InsertProduct(t, ctx, pool, domain.Product{Name: "Cafe", Price: decimal.RequireFromString("12.90"), Stock: 3, MinStock: 1, Active: true})
		retired := testutil.InsertProduct(t, ctx, pool, domain.Product{Name: "Te", Price: decimal.RequireFromString("3"), Active: false})

		ref, err := repo.GetActiveProduct(ctx, id)
		if err != nil {
			t.Fatalf("get product: %v", err)
		}
		if !ref.Active || !ref.Price.Equal(decimal.RequireFromString("12.9")) {
			t.Fatalf("unexpected product ref: %+v", ref)
		}

		ref, err = repo.GetActiveProduct(ctx, retired)
		if err != nil || ref.Active {
			t.Fatalf("expected inactive product, got %+v, %v", ref, err)
		}
		if _, err := repo.GetActiveProduct(ctx, 9999); !errors.Is(err, domain.ErrUnknownProduct) {
			t.Fatalf("expected ErrUnknownProduct, got %v", err)
		}

		products, err := repo.ListActiveProducts(ctx)
		if err != nil {
			t.Fatalf("list products: %v", err)
		}
		if len(products) != 1 || products[0].ID != id || products[0].Stock != 3 || products[0].MinStock != 1 {
			t.Fatalf("unexpected products: %+v", products)
		}
	})
}

func insertOrder(t *testing.T, ctx context.Context, gateway *OrderGateway, customerID, productID int64, at time.Time) string {
	t.Helper()
	id := uuid.NewString()
	err := gateway.WithinTx(ctx, func(ctx context.Context, uow app.UnitOfWork) error {
		_, err := uow.InsertOrder(ctx, domain.Order{
			ID: id, CustomerID: customerID, CreatedAt: at,
			Total: decimal.RequireFromString("20.50"), Status: domain.OrderStatusConfirmed,
			Lines: []domain.OrderLine{
				{ProductID: productID, Quantity: 1, UnitPrice: decimal.RequireFromString("10.25"), Subtotal: decimal.RequireFromString("10.25")},
				{ProductID: productID, Quantity: 1, UnitPrice: decimal.RequireFromString("10.25"), Subtotal: decimal.RequireFromString("10.25")},
			},
		})
		return err
	})
	if err != nil {
		t.Fatalf("insert order: %v", err)
	}
	return id
}

func TestOrderRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewOrderRepository(pool)
	gateway := NewOrderGateway(pool, pgx.ReadCommitted)
	testutil.ApplyMigrations(t, context.Background(), pool)

	t.Run("GetOrder returns order with lines or ErrOrderNotFound", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		customerID := testutil.InsertCustomer(t, ctx, pool, domain.Customer{Name: "Acme", Active: true})
		productID := testutil.InsertProduct(t, ctx, pool, domain.Product{Name: "Widget", Price: decimal.RequireFromString("10.25"), Stock: 5, Active: true})
		at := time.Now().UTC().Truncate(time.Microsecond)
		id := insertOrder(t, ctx, gateway, customerID, productID, at)

		got, err := repo.GetOrder(ctx, id)
		if err != nil {
			t.Fatalf("get order: %v", err)
		}
		if got.ID != id || got.CustomerID != customerID || !got.CreatedAt.Equal(at) {
			t.Fatalf("unexpected order: %+v", got)
		}
		if !got.Total.Equal(decimal.RequireFromString("20.5")) || got.Status != domain.OrderStatusConfirmed {
			t.Fatalf("unexpected order totals: %+v", got)
		}
		if len(got.Lines) != 2 || got.Lines[0].OrderID != id || got.Lines[0].ID >= got.Lines[1].ID {
			t.Fatalf("unexpected lines: %+v", got.Lines)
		}

		if _, err := repo.GetOrder(ctx, uuid.NewString()); !errors.Is(err, domain.ErrOrderNotFound) {
			t.Fatalf("expected ErrOrderNotFound, got %v", err)
		}
		if _, err := repo.GetOrder(ctx, "not-a-uuid"); !errors.Is(err, domain.ErrInvalidID) {
			t.Fatalf("expected ErrInvalidID, got %v", err)
		}
	})

	t.Run("ListOrders returns newest first", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		customerID := testutil.InsertCustomer(t, ctx, pool, domain.Customer{Name: "Acme", Active: true})
		productID := testutil.InsertProduct(t, ctx, pool, domain.Product{Name: "Widget", Price: decimal.RequireFromString("10.25"), Stock: 5, Active: true})
		base := time.Now().UTC()
		insertOrder(t, ctx, gateway, customerID, productID, base.Add(-2*time.Minute))
		middle := insertOrder(t, ctx, gateway, customerID, productID, base.Add(-time.Minute))
		newest := insertOrder(t, ctx, gateway, customerID, productID, base)

		got, err := repo.ListOrders(ctx, 2)
		if err != nil {
			t.Fatalf("list orders: %v", err)
		}
		if len(got) != 2 || got[0].ID != newest || got[1].ID != middle {
			t.Fatalf("unexpected orders: %+v", got)
		}
		for _, o := range got {
			if len(o.Lines) != 2 {
				t.Fatalf("expected 2 lines for %s, got %d", o.ID, len(o.Lines))
			}
		}
	})
}

func TestOutboxRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewOutboxRepository(pool)
	gateway := NewOrderGateway(pool, pgx.ReadCommitted)
	testutil.ApplyMigrations(t, context.Background(), pool)

	ctx := context.Background()
	testutil.TruncateAll(t, ctx, pool)

	for _, key := range []string{"a", "b"} {
		err := gateway.WithinTx(ctx, func(ctx context.Context, uow app.UnitOfWork) error {
			return uow.AppendOutbox(ctx, domain.OutboxMessage{
				EventID: uuid.NewString(), Topic: "orders.confirmed", Key: key,
				Payload: []byte(`{"k":"` + key + `"}`), CreatedAt: time.Now().UTC(),
			})
		})
		if err != nil {
			t.Fatalf("append outbox: %v", err)
		}
	}

	pending, err := repo.FetchPending(ctx, 10)
	if err != nil {
		t.Fatalf("fetch pending: %v", err)
	}
	if len(pending) != 2 || pending[0].Key != "a" || pending[1].Key != "b" {
		t.Fatalf("unexpected pending: %+v", pending)
	}

	if err := repo.MarkSent(ctx, pending[0].Seq); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if err := repo.MarkSent(ctx, pending[0].Seq); err == nil {
		t.Fatalf("expected error marking an already sent message")
	}

	pending, err = repo.FetchPending(ctx, 10)
	if err != nil {
		t.Fatalf("fetch pending: %v", err)
	}
	if len(pending) != 1 || pending[0].Key != "b" {
		t.Fatalf("unexpected pending after mark: %+v", pending)
	}
}
