package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_storefront/internal/auth"
	"github.com/fjod/go_storefront/internal/catalog"
	"github.com/fjod/go_storefront/internal/shop"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const maxRequestBodySize = 1 << 20 // 1MB

// HealthCheck reports whether one backing service is reachable.
type HealthCheck func(ctx context.Context) error

type RouterConfig struct {
	Catalog        catalog.Store
	Shop           *shop.Service
	Issuer         TokenIssuer
	Authorizer     auth.Authorizer
	HealthChecks   map[string]HealthCheck
	Log            *zap.Logger
	RequestTimeout time.Duration
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	products := NewProductHandler(cfg.Catalog, cfg.RequestTimeout)
	admin := NewAuthHandler(cfg.Issuer)
	carts := NewCartHandler(cfg.Shop, cfg.RequestTimeout)
	checkouts := NewCheckoutHandler(cfg.Shop, cfg.RequestTimeout)
	orderList := NewOrdersHandler(cfg.Shop, cfg.RequestTimeout)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(cfg.Log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestSize(maxRequestBodySize))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", healthHandler(cfg.HealthChecks))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/categories", products.Categories)
		r.Route("/products", func(r chi.Router) {
			r.Get("/", products.List)
			r.Get("/{id}", products.Get)
			r.Get("/{id}/related", products.Related)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", admin.Login)
			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin(cfg.Authorizer))
				r.Get("/products", products.List)
				r.Post("/products", products.Create)
				r.Put("/products/{id}", products.Update)
				r.Delete("/products/{id}", products.Delete)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(SessionMiddleware)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", carts.GetCart)
				r.Delete("/", carts.ClearCart)
				r.Post("/items", carts.AddItem)
				r.Put("/items/{product_id}", carts.UpdateQuantity)
				r.Delete("/items/{product_id}", carts.RemoveItem)
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Post("/", checkouts.Open)
				r.Get("/", checkouts.Get)
				r.Delete("/", checkouts.Close)
				r.Patch("/form", checkouts.EditForm)
				r.Post("/next", checkouts.Next)
				r.Post("/back", checkouts.Back)
				r.Post("/submit", checkouts.Submit)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", orderList.ListOrders)
				r.Get("/{id}", orderList.GetOrder)
			})
		})
	})

	return otelhttp.NewHandler(r, "storefront")
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}

		body := map[string]interface{}{"status": "ok"}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		if len(results) > 0 {
			body["checks"] = results
		}
		respondJSON(w, status, body)
	}
}
