package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/shop"
	"github.com/go-chi/chi/v5"
)

type OrdersHandler struct {
	shop    *shop.Service
	timeout time.Duration
}

func NewOrdersHandler(svc *shop.Service, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		shop:    svc,
		timeout: timeout,
	}
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	list, err := h.shop.Orders(ctx, sessionIDFrom(r.Context()), r.URL.Query().Get("q"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	if list == nil {
		list = []*domain.Order{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"orders": list, "count": len(list)})
}

// GET /api/v1/orders/{id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order id is required")
		return
	}

	order, err := h.shop.Order(ctx, sessionIDFrom(r.Context()), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}
