package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/argom2011/TangoWEB/internal/domain"
)

const (
	codeMethodNotAllowed    = "method_not_allowed"
	codeNotFound            = "not_found"
	codeInvalidRequestBody  = "invalid_request_body"
	codeInvalidID           = "invalid_id"
	codeEmptyOrder          = "empty_order"
	codeInvalidQuantity     = "invalid_quantity"
	codeInvalidPrice        = "invalid_price"
	codeTotalMismatch       = "total_mismatch"
	codeUnknownCustomer     = "unknown_customer"
	codeInactiveCustomer    = "inactive_customer"
	codeUnknownProduct      = "unknown_product"
	codeInactiveProduct     = "inactive_product"
	codePriceMismatch       = "price_mismatch"
	codeInsufficientStock   = "insufficient_stock"
	codeConcurrencyConflict = "concurrency_conflict"
	codePersistenceError    = "persistence_error"
	codeTimeout             = "timeout"
	codeOrderNotFound       = "order_not_found"
	codeForbidden           = "forbidden"
	codeInternalError       = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// commitErrorStatus maps a commit or validation failure to its HTTP status
// and error code. Order matters: timeouts are persistence-kind errors too.
func commitErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrEmptyOrder):
		return http.StatusBadRequest, codeEmptyOrder
	case errors.Is(err, domain.ErrInvalidQuantity):
		return http.StatusBadRequest, codeInvalidQuantity
	case errors.Is(err, domain.ErrInvalidPrice):
		return http.StatusBadRequest, codeInvalidPrice
	case errors.Is(err, domain.ErrTotalMismatch):
		return http.StatusUnprocessableEntity, codeTotalMismatch
	case errors.Is(err, domain.ErrUnknownCustomer):
		return http.StatusNotFound, codeUnknownCustomer
	case errors.Is(err, domain.ErrUnknownProduct):
		return http.StatusNotFound, codeUnknownProduct
	case errors.Is(err, domain.ErrInactiveCustomer):
		return http.StatusUnprocessableEntity, codeInactiveCustomer
	case errors.Is(err, domain.ErrInactiveProduct):
		return http.StatusUnprocessableEntity, codeInactiveProduct
	case errors.Is(err, domain.ErrPriceMismatch):
		return http.StatusUnprocessableEntity, codePriceMismatch
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusConflict, codeInsufficientStock
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return http.StatusConflict, codeConcurrencyConflict
	case errors.Is(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout, codeTimeout
	case errors.Is(err, domain.ErrPersistence):
		return http.StatusInternalServerError, codePersistenceError
	default:
		return http.StatusInternalServerError, codeInternalError
	}
}

func writeCommitError(w http.ResponseWriter, err error) {
	status, code := commitErrorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		// storage details stay in the logs
		msg = "internal error"
	}
	writeError(w, status, code, msg)
}
