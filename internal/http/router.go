package http

import (
	"net/http"
	"time"

	"github.com/boutique/storefront/internal/logging"
	"github.com/boutique/storefront/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

type RouterConfig struct {
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	Session            SessionOptions
}

type RouterDeps struct {
	Sessions *session.Registry
	Account  AccountAPI
	Orders   OrdersAPI
	// Metrics serves /metrics when set.
	Metrics http.Handler
	Log     logrus.FieldLogger
}

func NewRouter(cfg RouterConfig, deps RouterDeps) http.Handler {
	cartHandler := NewCartHandler(cfg.RequestTimeout)
	checkoutHandler := NewCheckoutHandler(cfg.RequestTimeout)
	accountHandler := NewAccountHandler(deps.Account, cfg.RequestTimeout)
	ordersHandler := NewOrdersHandler(deps.Orders, cfg.RequestTimeout)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(logging.Middleware(deps.Log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.MaxRequestBodySize > 0 {
			r.Use(middleware.RequestSize(cfg.MaxRequestBodySize))
		}
		r.Use(CredentialsMiddleware)
		r.Use(SessionMiddleware(deps.Sessions, cfg.Session))
		r.Use(CartSyncMiddleware(cfg.RequestTimeout))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Post("/items", cartHandler.AddItem)
			r.Patch("/items/{key}", cartHandler.UpdateQuantity)
			r.Delete("/items/{key}", cartHandler.RemoveItem)
		})
		r.Post("/session/logout", cartHandler.Logout)

		r.Route("/checkout", func(r chi.Router) {
			r.Get("/", checkoutHandler.GetCheckout)
			r.Put("/selection", checkoutHandler.Select)
			r.Post("/submit", checkoutHandler.Submit)
			r.Post("/confirm", checkoutHandler.Confirm)
			r.Get("/return", checkoutHandler.Return)
			r.Post("/cancel", checkoutHandler.Cancel)
		})

		r.Route("/addresses", func(r chi.Router) {
			r.Get("/", accountHandler.ListAddresses)
			r.Post("/", accountHandler.CreateAddress)
			r.Patch("/{id}", accountHandler.UpdateAddress)
			r.Delete("/{id}", accountHandler.DeleteAddress)
		})
		r.Get("/preferences", accountHandler.GetPreferences)
		r.Patch("/preferences", accountHandler.UpdatePreferences)

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordersHandler.ListOrders)
			r.Get("/{id}", ordersHandler.GetOrder)
		})
	})

	return r
}
