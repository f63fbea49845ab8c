package main

import (
	"net/http"

	"github.com/joao-fontenele/shopfront/internal/accounts"
	"github.com/joao-fontenele/shopfront/internal/auth"
	"github.com/joao-fontenele/shopfront/internal/catalog"
	"github.com/joao-fontenele/shopfront/internal/domain"
	"github.com/joao-fontenele/shopfront/internal/orders"
	"github.com/joao-fontenele/shopfront/internal/telemetry"
)

type handlers struct {
	accounts *accounts.Handler
	catalog  *catalog.Handler
	orders   *orders.Handler
	auth     *auth.Middleware
	metrics  http.Handler
	health   http.HandlerFunc
}

func routes(h handlers) *http.ServeMux {
	mux := http.NewServeMux()
	route := func(pattern string, fn http.HandlerFunc) {
		mux.HandleFunc(pattern, telemetry.WithHTTPRoute(fn))
	}
	user := h.auth.Authenticate
	shopkeeper := func(fn http.HandlerFunc) http.HandlerFunc {
		return h.auth.RequireRole(domain.RoleShopkeeper, fn)
	}

	route("POST /api/auth/send-otp", h.accounts.HandleSendOTP)
	route("POST /api/auth/verify-otp", h.accounts.HandleVerifyOTP)
	route("POST /api/auth/register", h.accounts.HandleRegister)
	route("POST /api/auth/login-send-otp", h.accounts.HandleLoginSendOTP)
	route("POST /api/auth/login", h.accounts.HandleLogin)
	route("GET /api/auth/me", user(h.accounts.HandleMe))

	route("GET /api/items", h.catalog.HandleList)
	route("GET /api/items/{id}", h.catalog.HandleGet)
	route("GET /api/categories", h.catalog.HandleCategories)

	route("POST /api/orders", user(h.orders.HandlePlace))
	route("GET /api/orders", user(h.orders.HandleListMine))

	route("GET /api/shopkeeper/items", shopkeeper(h.catalog.HandleShopkeeperList))
	route("POST /api/shopkeeper/items", shopkeeper(h.catalog.HandleCreate))
	route("PUT /api/shopkeeper/items/{id}", shopkeeper(h.catalog.HandleUpdate))
	route("DELETE /api/shopkeeper/items/{id}", shopkeeper(h.catalog.HandleDelete))
	route("GET /api/shopkeeper/orders", shopkeeper(h.orders.HandleListAll))
	route("GET /api/shopkeeper/orders/pending-count", shopkeeper(h.orders.HandlePendingCount))
	route("PUT /api/shopkeeper/orders/{id}/status", shopkeeper(h.orders.HandleUpdateStatus))

	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics)
	}
	if h.health != nil {
		mux.HandleFunc("GET /healthz", h.health)
	}

	return mux
}
