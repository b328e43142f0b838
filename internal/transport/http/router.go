package http

import "net/http"

// Routes holds what NewRouter mounts. Health and Metrics are optional.
type Routes struct {
	Commit  OrderCommitter
	Orders  OrderReader
	Catalog CatalogLister
	Health  Pinger
	Metrics http.Handler
	// Instrument wraps each named route, e.g. with request metrics.
	Instrument func(name string, h http.Handler) http.Handler
}

// NewRouter builds the service mux. Unknown paths get the JSON 404.
func NewRouter(rt Routes) *http.ServeMux {
	wrap := rt.Instrument
	if wrap == nil {
		wrap = func(_ string, h http.Handler) http.Handler { return h }
	}

	confirm := wrap("confirm_order", HandleConfirmOrder(rt.Commit))

	mux := http.NewServeMux()
	mux.Handle("/health", HealthHandler(rt.Health))
	mux.Handle("/orders:confirm", confirm)
	mux.Handle("/api/pedidos/confirmar", confirm)
	mux.Handle("/orders", wrap("list_orders", HandleListOrders(rt.Orders)))
	mux.Handle("/orders/", wrap("get_order", HandleGetOrder(rt.Orders)))
	mux.Handle("/customers/active", wrap("active_customers", HandleActiveCustomers(rt.Catalog)))
	mux.Handle("/products/active", wrap("active_products", HandleActiveProducts(rt.Catalog)))
	if rt.Metrics != nil {
		mux.Handle("/metrics", rt.Metrics)
	}
	mux.Handle("/", NotFoundHandler())
	return mux
}
