package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"mt5_bridge/internal/events"
	"mt5_bridge/internal/middleware"
	"mt5_bridge/internal/trading"
)

const maxWebhookBody = 64 << 10

// HandleWebhook receives a TradingView alert and dispatches it.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		h.respondJSON(w, http.StatusBadRequest, failureResponse{Error: "No data received"})
		return
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || len(fields) == 0 {
		h.respondJSON(w, http.StatusBadRequest, failureResponse{Error: "No data received"})
		return
	}

	var payload trading.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.respondJSON(w, http.StatusBadRequest, failureResponse{Error: fmt.Sprintf("Invalid payload: %v", err)})
		return
	}

	if h.opts.Passphrase != "" &&
		subtle.ConstantTimeCompare([]byte(payload.Passphrase), []byte(h.opts.Passphrase)) != 1 {
		h.logger.Warn("🚫 Webhook passphrase mismatch", slog.String("remote", r.RemoteAddr))
		h.respondJSON(w, http.StatusUnauthorized, failureResponse{Error: "Invalid passphrase"})
		return
	}

	h.logger.Info("📨 Received TradingView signal",
		slog.String("signal", payload.Signal),
		slog.String("symbol", payload.Symbol))

	ctx, cancel := h.sessionContext(r)
	defer cancel()

	outcome := h.dispatcher.Dispatch(ctx, payload)

	requestID, _ := middleware.GetRequestID(r.Context())
	h.publish(outcome, requestID)
	h.notifyOutcome(outcome)

	switch {
	case outcome.Err != nil:
		h.respondJSON(w, outcomeStatus(outcome), failureResponse{Error: outcomeError(outcome)})
	case outcome.Close != nil:
		h.respondJSON(w, http.StatusOK, closeResponse(*outcome.Close))
	default:
		h.respondJSON(w, outcomeStatus(outcome), orderResponse(*outcome.Order))
	}
}

// outcomeStatus maps an outcome to 200, 400 for bad input and 500 for
// execution failures.
func outcomeStatus(o trading.Outcome) int {
	switch {
	case o.Err != nil:
		if trading.IsValidation(o.Err) || errors.Is(o.Err, trading.ErrInstrumentUnavailable) {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	case o.Order != nil && !o.Order.Accepted:
		if trading.IsValidation(o.Order.Err) {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

func outcomeError(o trading.Outcome) string {
	if errors.Is(o.Err, trading.ErrInstrumentUnavailable) {
		return fmt.Sprintf("Symbol %s not available", o.Signal.Instrument)
	}
	return o.Err.Error()
}

func (h *Handler) publish(o trading.Outcome, requestID string) {
	e := events.Event{
		Type:      events.TypeOrder,
		Signal:    string(o.Signal.Direction),
		Symbol:    o.Signal.Instrument,
		Success:   o.Success(),
		RequestID: requestID,
	}

	switch {
	case o.Err != nil:
		e.Error = outcomeError(o)
	case o.Close != nil:
		resp := closeResponse(*o.Close)
		e.Type = events.TypeClose
		e.Closed = resp.ClosedTickets
		e.Failures = resp.Failures
	case o.Order != nil:
		resp := orderResponse(*o.Order)
		e.Ticket = resp.Ticket
		e.Price = resp.Price
		e.Volume = resp.Volume
		e.Error = resp.Error
	}

	if e.Signal == "" {
		e.Signal = "INVALID"
	}

	h.hub.Publish(e)
}

func (h *Handler) notifyOutcome(o trading.Outcome) {
	sig := o.Signal

	switch {
	case o.Err != nil:
		if trading.IsValidation(o.Err) {
			return
		}
		h.notifier.Sendf("❌ %s %s failed: %s", sig.Direction, sig.Instrument, outcomeError(o))
	case o.Close != nil:
		msg := fmt.Sprintf("📕 CLOSE %s: %s", sig.Instrument, o.Close.Message())
		if n := len(o.Close.Failures); n > 0 {
			msg += fmt.Sprintf(", %d failed", n)
		}
		h.notifier.Send(msg)
	case o.Order.Accepted:
		h.notifier.Sendf("✅ %s %s %s @ %s (ticket %d)",
			sig.Direction, sig.Instrument, o.Order.FilledVolume, o.Order.FilledPrice, o.Order.Ticket)
	default:
		h.notifier.Sendf("❌ %s %s failed: %s", sig.Direction, sig.Instrument, o.Order.ErrorMessage)
	}
}
