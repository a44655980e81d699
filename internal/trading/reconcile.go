package trading

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
)

// Reconciler closes open positions with direction-correct counter orders.
type Reconciler struct {
	exec *Executor
}

func NewReconciler(exec *Executor) *Reconciler {
	return &Reconciler{exec: exec}
}

// CloseOne closes the position identified by ticket. A nil volume closes the
// full open volume; a partial volume must not exceed it. An empty instrument
// uses the instrument the position is held on; any other instrument is
// rejected before a quote is requested.
func (r *Reconciler) CloseOne(ctx context.Context, ticket uint64, instrument string, volume *decimal.Decimal) OrderResult {
	session := r.exec.session
	if !session.Connected() {
		return rejected(ErrSessionUnavailable)
	}

	pos, err := session.PositionByTicket(ctx, ticket)
	if err != nil {
		return rejected(fmt.Errorf("Position %d not found: %w", ticket, err))
	}

	if instrument != "" && !strings.EqualFold(instrument, pos.Instrument) {
		return rejected(&ValidationError{
			Field:  "symbol",
			Reason: fmt.Sprintf("position %d is held on %s, not %s", ticket, pos.Instrument, instrument),
		})
	}
	instrument = pos.Instrument

	closeVolume := pos.Volume
	if volume != nil {
		if !volume.IsPositive() {
			return rejected(&ValidationError{Field: "volume", Reason: "volume must be a positive number"})
		}
		if volume.GreaterThan(pos.Volume) {
			return rejected(&ValidationError{
				Field:  "volume",
				Reason: fmt.Sprintf("volume %s exceeds open volume %s of position %d", volume, pos.Volume, ticket),
			})
		}
		closeVolume = *volume
	}

	quote, err := session.SymbolInfo(ctx, instrument)
	if err != nil {
		return rejected(fmt.Errorf("%w: %w", ErrInstrumentUnavailable, err))
	}

	side := pos.Side.Opposite()
	order := OrderRequest{
		Instrument:        instrument,
		Volume:            closeVolume,
		Side:              side,
		ReferencePrice:    quote.ReferencePrice(side),
		Position:          ticket,
		MaxSlippagePoints: r.exec.params.MaxDeviation,
		StrategyTag:       r.exec.params.MagicNumber,
		FillPolicy:        FillImmediateOrCancel,
		TimePolicy:        TimeGoodTillCancel,
		Comment:           CloseComment,
	}

	res := r.exec.submit(ctx, order)
	if res.Accepted {
		r.exec.logger.Info("✅ Position closed",
			slog.Uint64("ticket", ticket),
			slog.String("symbol", instrument),
			slog.String("volume", closeVolume.String()),
		)
	}

	return res
}

// CloseAll closes every open position on instrument, or on all instruments
// when instrument is empty. Each ticket is attempted independently; a failure
// is recorded and the remaining tickets are still attempted. The returned
// error is set only when positions could not be enumerated.
func (r *Reconciler) CloseAll(ctx context.Context, instrument string) (CloseOutcome, error) {
	outcome := CloseOutcome{
		ClosedTickets: []uint64{},
		Failures:      map[uint64]error{},
	}

	session := r.exec.session
	if !session.Connected() {
		return outcome, ErrSessionUnavailable
	}

	positions, err := session.Positions(ctx, instrument)
	if err != nil {
		return outcome, fmt.Errorf("list positions: %w", err)
	}

	outcome.RequestedCount = len(positions)

	// Sequential so ClosedTickets keeps enumeration order.
	for _, pos := range positions {
		vol := pos.Volume
		res := r.CloseOne(ctx, pos.Ticket, pos.Instrument, &vol)
		if res.Accepted {
			outcome.ClosedTickets = append(outcome.ClosedTickets, pos.Ticket)
			continue
		}

		outcome.Failures[pos.Ticket] = res.Err
	}

	if len(outcome.Failures) > 0 {
		r.exec.logger.Warn("⚠️ Some positions were not closed",
			slog.String("symbol", instrument),
			slog.Int("closed", len(outcome.ClosedTickets)),
			slog.Int("failed", len(outcome.Failures)),
		)
	}

	return outcome, nil
}
