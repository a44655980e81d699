package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"mt5_bridge/internal/events"
	"mt5_bridge/internal/middleware"
	"mt5_bridge/internal/trading"
)

// HandleHealth reports terminal connectivity and the account snapshot.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.sessionContext(r)
	defer cancel()

	account, err := h.session.Account(ctx)
	if err != nil {
		h.logger.Warn("⚠️  Health check failed", slog.Any("error", err))
		h.respondJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:       "unhealthy",
			MT5Connected: h.session.Connected(),
			Error:        "MT5 connection failed",
		})
		return
	}

	view := accountView(account)
	h.respondJSON(w, http.StatusOK, HealthResponse{
		Status:       "healthy",
		MT5Connected: h.session.Connected(),
		Account:      &view,
	})
}

// HandleGetPositions lists open positions, optionally filtered by ?symbol=.
func (h *Handler) HandleGetPositions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.sessionContext(r)
	defer cancel()

	symbol := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))

	positions, err := h.session.Positions(ctx, symbol)
	if err != nil {
		h.logger.Error("Failed to get positions", slog.Any("error", err))
		h.respondError(w, http.StatusInternalServerError, "Failed to get positions")
		return
	}

	h.respondJSON(w, http.StatusOK, PositionsResponse{Positions: positionViews(positions)})
}

// HandleGetAccount returns the account snapshot.
func (h *Handler) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.sessionContext(r)
	defer cancel()

	account, err := h.session.Account(ctx)
	if err != nil {
		h.logger.Error("Failed to get account info", slog.Any("error", err))
		h.respondError(w, http.StatusInternalServerError, "Failed to get account info")
		return
	}

	h.respondJSON(w, http.StatusOK, accountView(account))
}

// HandleGetSymbol returns instrument metadata.
func (h *Handler) HandleGetSymbol(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.sessionContext(r)
	defer cancel()

	symbol := mux.Vars(r)["symbol"]

	quote, err := h.session.SymbolInfo(ctx, strings.ToUpper(symbol))
	switch {
	case errors.Is(err, trading.ErrSessionUnavailable):
		h.respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		h.respondError(w, http.StatusNotFound, fmt.Sprintf("Symbol %s not found", symbol))
		return
	}

	h.respondJSON(w, http.StatusOK, symbolView(quote))
}

type closePositionRequest struct {
	Symbol string              `json:"symbol"`
	Volume *trading.FlexNumber `json:"volume"`
}

// HandleClosePosition closes one position fully or partially.
func (h *Handler) HandleClosePosition(w http.ResponseWriter, r *http.Request) {
	ticket, err := strconv.ParseUint(mux.Vars(r)["ticket"], 10, 64)
	if err != nil {
		h.respondJSON(w, http.StatusBadRequest, failureResponse{Error: "Invalid ticket"})
		return
	}

	var req closePositionRequest
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err == nil && len(strings.TrimSpace(string(body))) > 0 {
		err = json.Unmarshal(body, &req)
	}
	if err != nil {
		h.respondJSON(w, http.StatusBadRequest, failureResponse{Error: fmt.Sprintf("Invalid request: %v", err)})
		return
	}

	ctx, cancel := h.sessionContext(r)
	defer cancel()

	var volume *decimal.Decimal
	if req.Volume != nil {
		volume = &req.Volume.Decimal
	}

	res := h.dispatcher.Reconciler().CloseOne(ctx, ticket, strings.ToUpper(req.Symbol), volume)

	operator, _ := middleware.GetOperator(r.Context())
	requestID, _ := middleware.GetRequestID(r.Context())
	h.logger.Info("📕 Manual close",
		slog.Uint64("ticket", ticket),
		slog.String("operator", operator),
		slog.Bool("accepted", res.Accepted))

	view := orderResponse(res)
	e := events.Event{
		Type:      events.TypeClose,
		Signal:    string(trading.DirectionClose),
		Symbol:    strings.ToUpper(req.Symbol),
		Success:   res.Accepted,
		Error:     view.Error,
		RequestID: requestID,
	}
	if res.Accepted {
		e.Closed = []uint64{ticket}
		h.notifier.Sendf("📕 Position %d closed @ %s", ticket, res.FilledPrice)
	} else {
		e.Failures = map[uint64]string{ticket: res.ErrorMessage}
	}
	h.hub.Publish(e)

	h.respondJSON(w, closeStatus(res), view)
}

func closeStatus(res trading.OrderResult) int {
	switch {
	case res.Accepted:
		return http.StatusOK
	case errors.Is(res.Err, trading.ErrPositionNotFound):
		return http.StatusNotFound
	case trading.IsValidation(res.Err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
