package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/go_storefront/internal/auth"
	"github.com/fjod/go_storefront/internal/catalog"
	"github.com/fjod/go_storefront/internal/checkout"
	"github.com/fjod/go_storefront/internal/logger"
	"github.com/fjod/go_storefront/internal/orders"
	"github.com/fjod/go_storefront/internal/shop"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string      `json:"error"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

type errorMapping struct {
	target error
	status int
	code   string
}

// errorMappings is checked in order; the first match wins.
var errorMappings = []errorMapping{
	{catalog.ErrProductNotFound, http.StatusNotFound, "product_not_found"},
	{catalog.ErrInvalidProduct, http.StatusBadRequest, "invalid_product"},
	{orders.ErrOrderNotFound, http.StatusNotFound, "order_not_found"},
	{shop.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
	{shop.ErrItemNotInCart, http.StatusNotFound, "item_not_in_cart"},
	{shop.ErrNoCheckout, http.StatusConflict, "no_checkout"},
	{checkout.ErrEmptyCart, http.StatusConflict, "empty_cart"},
	{checkout.ErrIncompleteForm, http.StatusUnprocessableEntity, "incomplete_form"},
	{checkout.ErrUnknownField, http.StatusBadRequest, "unknown_field"},
	{checkout.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{checkout.ErrCheckoutCompleted, http.StatusConflict, "checkout_completed"},
	{checkout.ErrPaymentFailed, http.StatusPaymentRequired, "payment_failed"},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
}

// handleError maps domain errors to a status and error code. Anything
// unrecognised is logged and reported as an internal error.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		resp := ErrorResponse{Error: err.Error(), Code: m.code}

		var invalid *catalog.InvalidProductError
		switch {
		case errors.As(err, &invalid):
			resp.Details = invalid.Fields
		case errors.Is(err, checkout.ErrPaymentFailed):
			resp.Error = checkout.FailureMessage
		}
		respondJSON(w, m.status, resp)
		return
	}

	logger.FromContext(r.Context(), zap.L()).Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err))
	respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

// decodeJSON reads the request body into v, answering 400 itself on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}
