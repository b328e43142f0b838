package http

import (
	"context"
	"net/http"

	"github.com/argom2011/TangoWEB/internal/app"
)

// CatalogLister lists the references a cart can be built from.
type CatalogLister interface {
	ActiveCustomers(ctx context.Context) ([]app.CustomerOption, error)
	ActiveProducts(ctx context.Context) ([]app.ProductOption, error)
}

// HandleActiveCustomers serves GET /customers/active.
func HandleActiveCustomers(svc CatalogLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		customers, err := svc.ActiveCustomers(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}
		resp := make([]customerOptionResponse, 0, len(customers))
		for _, c := range customers {
			resp = append(resp, customerOptionResponse{ID: c.ID, Display: c.Display})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// HandleActiveProducts serves GET /products/active.
func HandleActiveProducts(svc CatalogLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		products, err := svc.ActiveProducts(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}
		resp := make([]productOptionResponse, 0, len(products))
		for _, p := range products {
			resp = append(resp, productOptionResponse{
				ID:      p.ID,
				Price:   p.Price.StringFixed(2),
				Display: p.Display,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type customerOptionResponse struct {
	ID      int64  `json:"id"`
	Display string `json:"display"`
}

type productOptionResponse struct {
	ID      int64  `json:"id"`
	Price   string `json:"price"`
	Display string `json:"display"`
}
