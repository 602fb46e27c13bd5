package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/go_storefront/internal/checkout"
	"github.com/fjod/go_storefront/internal/shop"
)

type CheckoutHandler struct {
	shop    *shop.Service
	timeout time.Duration
}

// NewCheckoutHandler takes a timeout that must cover the payment simulator's
// processing delay and its retries.
func NewCheckoutHandler(svc *shop.Service, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		shop:    svc,
		timeout: timeout,
	}
}

// POST /api/v1/checkout
func (h *CheckoutHandler) Open(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := h.shop.OpenCheckout(ctx, sessionIDFrom(r.Context()))
	h.respond(w, r, http.StatusCreated, view, err)
}

// GET /api/v1/checkout
func (h *CheckoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := h.shop.Checkout(ctx, sessionIDFrom(r.Context()))
	h.respond(w, r, http.StatusOK, view, err)
}

// PATCH /api/v1/checkout/form
func (h *CheckoutHandler) EditForm(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req map[checkout.Field]string
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req) == 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "no fields to update")
		return
	}

	view, err := h.shop.EditCheckout(ctx, sessionIDFrom(r.Context()), req)
	h.respond(w, r, http.StatusOK, view, err)
}

// POST /api/v1/checkout/next
func (h *CheckoutHandler) Next(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := h.shop.NextCheckout(ctx, sessionIDFrom(r.Context()))
	h.respond(w, r, http.StatusOK, view, err)
}

// POST /api/v1/checkout/back
func (h *CheckoutHandler) Back(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := h.shop.BackCheckout(ctx, sessionIDFrom(r.Context()))
	h.respond(w, r, http.StatusOK, view, err)
}

// POST /api/v1/checkout/submit
func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	res, err := h.shop.SubmitCheckout(ctx, sessionIDFrom(r.Context()))
	if err != nil {
		var view *shop.CheckoutView
		if res != nil {
			view = res.Checkout
		}
		h.respond(w, r, 0, view, err)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

// DELETE /api/v1/checkout
func (h *CheckoutHandler) Close(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.shop.CloseCheckout(ctx, sessionIDFrom(r.Context())); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// respond writes the checkout view. Validation and payment failures carry the
// view in the error details so the client can show field errors and the
// current stage.
func (h *CheckoutHandler) respond(w http.ResponseWriter, r *http.Request, status int, view *shop.CheckoutView, err error) {
	if err == nil {
		respondJSON(w, status, view)
		return
	}
	if view == nil {
		handleError(w, r, err)
		return
	}

	switch {
	case errors.Is(err, checkout.ErrIncompleteForm):
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   err.Error(),
			Code:    "incomplete_form",
			Details: view,
		})
	case errors.Is(err, checkout.ErrPaymentFailed):
		respondJSON(w, http.StatusPaymentRequired, ErrorResponse{
			Error:   checkout.FailureMessage,
			Code:    "payment_failed",
			Details: view,
		})
	default:
		handleError(w, r, err)
	}
}
