package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"mt5_bridge/internal/middleware"
)

// SetupRouter настраивает роутинг и middleware
func (h *Handler) SetupRouter() *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(h.logger))
	r.Use(middleware.CORS)

	// Публичные маршруты
	r.HandleFunc("/health", h.HandleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/auth/token", h.HandleToken).Methods(http.MethodPost, http.MethodOptions)

	webhook := r.PathPrefix("/webhook").Subrouter()
	webhook.Use(middleware.RateLimit(h.opts.WebhookRatePerMin))
	webhook.HandleFunc("/tradingview", h.HandleWebhook).Methods(http.MethodPost, http.MethodOptions)

	// Защищенные маршруты (если задан JWT_SECRET)
	protected := r.NewRoute().Subrouter()
	protected.Use(middleware.Auth(h.authService))

	protected.HandleFunc("/positions", h.HandleGetPositions).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/positions/{ticket:[0-9]+}/close", h.HandleClosePosition).Methods(http.MethodPost, http.MethodOptions)
	protected.HandleFunc("/account", h.HandleGetAccount).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/symbol/{symbol}", h.HandleGetSymbol).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/api/events", h.HandleEvents).Methods(http.MethodGet)

	return r
}
