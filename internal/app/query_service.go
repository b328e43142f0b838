package app

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/argom2011/TangoWEB/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type OrderReader interface {
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	ListOrders(ctx context.Context, limit int) ([]domain.Order, error)
}

// OrderQueryService serves committed orders back to callers.
type OrderQueryService struct {
	repo OrderReader
}

func NewOrderQueryService(repo OrderReader) *OrderQueryService {
	return &OrderQueryService{repo: repo}
}

func (s *OrderQueryService) Get(ctx context.Context, orderID string) (domain.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return domain.Order{}, domain.ErrInvalidID
	}
	return s.repo.GetOrder(ctx, orderID)
}

// List returns the most recent orders first. Non-positive limits fall back
// to a default; large ones are capped.
func (s *OrderQueryService) List(ctx context.Context, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.repo.ListOrders(ctx, limit)
}

type CatalogReader interface {
	ListActiveCustomers(ctx context.Context) ([]domain.Customer, error)
	ListActiveProducts(ctx context.Context) ([]domain.Product, error)
}

// CustomerOption is an entry of the customer picker on the sales screen.
type CustomerOption struct {
	ID      int64
	Display string
}

// ProductOption is an entry of the product picker. Price is what the cart
// snapshots when a line is added.
type ProductOption struct {
	ID      int64
	Price   decimal.Decimal
	Display string
}

// CatalogService exposes the active customer and product references a cart
// is built from.
type CatalogService struct {
	repo CatalogReader
}

func NewCatalogService(repo CatalogReader) *CatalogService {
	return &CatalogService{repo: repo}
}

func (s *CatalogService) ActiveCustomers(ctx context.Context) ([]CustomerOption, error) {
	customers, err := s.repo.ListActiveCustomers(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(customers, func(i, j int) bool {
		return customers[i].Name < customers[j].Name
	})
	out := make([]CustomerOption, 0, len(customers))
	for _, c := range customers {
		if !c.Active {
			continue
		}
		out = append(out, CustomerOption{
			ID:      c.ID,
			Display: c.Name + " - " + c.TaxID,
		})
	}
	return out, nil
}

func (s *CatalogService) ActiveProducts(ctx context.Context) ([]ProductOption, error) {
	products, err := s.repo.ListActiveProducts(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(products, func(i, j int) bool {
		return products[i].Name < products[j].Name
	})
	out := make([]ProductOption, 0, len(products))
	for _, p := range products {
		if !p.Active {
			continue
		}
		out = append(out, ProductOption{
			ID:      p.ID,
			Price:   p.Price,
			Display: fmt.Sprintf("%s - $%s", p.Name, p.Price.StringFixed(2)),
		})
	}
	return out, nil
}
