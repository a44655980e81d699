package trading

import (
	"context"
	"fmt"
	"log/slog"
)

// State is the final stage reached by one dispatched signal.
type State string

const (
	StateCompleted State = "completed"
	StateRejected  State = "rejected"
)

// Outcome is the terminal result of dispatching one signal. Exactly one of
// Order and Close is set once the signal passed validation.
type Outcome struct {
	State  State
	Signal Signal
	Order  *OrderResult
	Close  *CloseOutcome
	// Err is set when the signal was rejected before reaching a path, or when
	// the close path could not enumerate positions.
	Err error
}

// Success reports whether the caller should see a successful result.
// A close is successful even when some tickets failed.
func (o Outcome) Success() bool {
	switch {
	case o.Err != nil:
		return false
	case o.Order != nil:
		return o.Order.Accepted
	default:
		return o.Close != nil
	}
}

// Dispatcher validates inbound payloads and routes them to the open or
// close path. It holds no state between calls and never retries.
type Dispatcher struct {
	exec       *Executor
	reconciler *Reconciler
	defaults   Defaults
	logger     *slog.Logger
}

func NewDispatcher(exec *Executor, defaults Defaults, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		exec:       exec,
		reconciler: NewReconciler(exec),
		defaults:   defaults,
		logger:     logger,
	}
}

// Reconciler exposes the close path for direct per-ticket closes.
func (d *Dispatcher) Reconciler() *Reconciler {
	return d.reconciler
}

// Dispatch processes p exactly once.
func (d *Dispatcher) Dispatch(ctx context.Context, p Payload) Outcome {
	sig, err := ParseSignal(p, d.defaults)
	if err != nil {
		d.logger.Warn("🚫 Signal rejected", slog.String("signal", p.Signal), slog.Any("error", err))
		return Outcome{State: StateRejected, Err: err}
	}

	d.logger.Info("📩 Signal received",
		slog.String("signal", string(sig.Direction)),
		slog.String("symbol", sig.Instrument),
		slog.String("volume", sig.Volume.String()),
	)

	if sig.Direction == DirectionClose {
		return d.close(ctx, sig)
	}

	return d.open(ctx, sig)
}

func (d *Dispatcher) open(ctx context.Context, sig Signal) Outcome {
	side, _ := sig.Direction.Side()

	if !d.exec.session.Connected() {
		return Outcome{State: StateRejected, Signal: sig, Err: ErrSessionUnavailable}
	}

	quote, err := d.exec.resolver.Resolve(ctx, sig.Instrument)
	if err != nil {
		return Outcome{
			State:  StateRejected,
			Signal: sig,
			Err:    fmt.Errorf("Symbol %s not available: %w: %w", sig.Instrument, ErrInstrumentUnavailable, err),
		}
	}

	// Levels are derived from the quoted price, not the fill.
	risk := ComputeRisk(side, quote.ReferencePrice(side), sig.StopLossPercent, sig.TakeProfitPercent, quote.Digits)

	res := d.exec.OpenAt(ctx, quote, OpenRequest{
		Side:       side,
		Instrument: sig.Instrument,
		Volume:     sig.Volume,
		Risk:       risk,
		Comment:    OpenComment(sig.Direction),
	})

	return Outcome{State: StateCompleted, Signal: sig, Order: &res}
}

func (d *Dispatcher) close(ctx context.Context, sig Signal) Outcome {
	outcome, err := d.reconciler.CloseAll(ctx, sig.Instrument)
	if err != nil {
		return Outcome{State: StateRejected, Signal: sig, Err: err}
	}

	d.logger.Info("📕 Close signal processed",
		slog.String("symbol", sig.Instrument),
		slog.Int("requested", outcome.RequestedCount),
		slog.Int("closed", len(outcome.ClosedTickets)),
	)

	return Outcome{State: StateCompleted, Signal: sig, Close: &outcome}
}
