package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"mt5_bridge/internal/auth"
	"mt5_bridge/internal/events"
	"mt5_bridge/internal/notify"
	"mt5_bridge/internal/trading"
)

// Options настройки HTTP слоя вокруг торгового ядра
type Options struct {
	// Passphrase, если задан, должен совпасть с полем passphrase в сигнале
	Passphrase string
	// SessionTimeout ограничивает каждый вызов терминала в рамках запроса
	SessionTimeout time.Duration
	// WebhookRatePerMin лимит сигналов в минуту, 0 отключает лимит
	WebhookRatePerMin int
}

// Handler обрабатывает API запросы бриджа
type Handler struct {
	session     trading.Session
	dispatcher  *trading.Dispatcher
	authService *auth.Service
	hub         *events.Hub
	notifier    notify.Notifier
	opts        Options
	logger      *slog.Logger
}

func New(
	session trading.Session,
	dispatcher *trading.Dispatcher,
	authService *auth.Service,
	hub *events.Hub,
	notifier notify.Notifier,
	opts Options,
	logger *slog.Logger,
) *Handler {
	if opts.SessionTimeout <= 0 {
		opts.SessionTimeout = 10 * time.Second
	}

	return &Handler{
		session:     session,
		dispatcher:  dispatcher,
		authService: authService,
		hub:         hub,
		notifier:    notifier,
		opts:        opts,
		logger:      logger,
	}
}

// sessionContext ограничивает по времени вызовы терминала для запроса r
func (h *Handler) sessionContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.opts.SessionTimeout)
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", slog.Any("error", err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, statusCode int, message string) {
	h.respondJSON(w, statusCode, ErrorResponse{Error: message})
}
