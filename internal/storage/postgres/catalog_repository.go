package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/argom2011/TangoWEB/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type CatalogRepository struct {
	pool *pgxpool.Pool
}

func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

func (r *CatalogRepository) IsCustomerActive(ctx context.Context, customerID int64) (bool, error) {
	var active bool
	err := querierFor(ctx, r.pool).
		QueryRow(ctx, `SELECT active FROM customers WHERE id = $1`, customerID).
		Scan(&active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, domain.ErrUnknownCustomer
		}
		return false, fmt.Errorf("get customer: %w", err)
	}
	return active, nil
}

func (r *CatalogRepository) GetActiveProduct(ctx context.Context, productID int64) (domain.ProductRef, error) {
	var (
		price  string
		active bool
	)
	err := querierFor(ctx, r.pool).
		QueryRow(ctx, `SELECT price::text, active FROM products WHERE id = $1`, productID).
		Scan(&price, &active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ProductRef{}, domain.ErrUnknownProduct
		}
		return domain.ProductRef{}, fmt.Errorf("get product: %w", err)
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return domain.ProductRef{}, fmt.Errorf("product %d price %q: %w", productID, price, err)
	}
	return domain.ProductRef{ID: productID, Price: p, Active: active}, nil
}

func (r *CatalogRepository) ListActiveCustomers(ctx context.Context) ([]domain.Customer, error) {
	const query = `
SELECT id, name, tax_id, active
FROM customers
WHERE active
ORDER BY name, id`

	rows, err := querierFor(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	customers, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Customer, error) {
		var c domain.Customer
		err := row.Scan(&c.ID, &c.Name, &c.TaxID, &c.Active)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan customers: %w", err)
	}
	return customers, nil
}

func (r *CatalogRepository) ListActiveProducts(ctx context.Context) ([]domain.Product, error) {
	const query = `
SELECT id, name, price::text, stock, min_stock, active
FROM products
WHERE active
ORDER BY name, id`

	rows, err := querierFor(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Product, error) {
		var (
			p     domain.Product
			price string
		)
		if err := row.Scan(&p.ID, &p.Name, &price, &p.Stock, &p.MinStock, &p.Active); err != nil {
			return domain.Product{}, err
		}
		var err error
		p.Price, err = decimal.NewFromString(price)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan products: %w", err)
	}
	return products, nil
}
