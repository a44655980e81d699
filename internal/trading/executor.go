package trading

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
)

const (
	// DefaultMaxDeviation is the slippage tolerance in price increments.
	DefaultMaxDeviation = 10
	// DefaultMagicNumber tags every order placed by the bridge.
	DefaultMagicNumber = 123456

	CloseComment = "Close position"
)

// ExecParams are the fixed order attributes shared by every submission.
type ExecParams struct {
	MagicNumber  int64
	MaxDeviation int
}

func (p ExecParams) withDefaults() ExecParams {
	if p.MagicNumber == 0 {
		p.MagicNumber = DefaultMagicNumber
	}
	if p.MaxDeviation <= 0 {
		p.MaxDeviation = DefaultMaxDeviation
	}
	return p
}

// OpenRequest describes a market order to open a new position.
type OpenRequest struct {
	Side       Side
	Instrument string
	Volume     decimal.Decimal
	Risk       RiskLevels
	Comment    string
}

// OpenComment is the comment attached to orders opened from a signal.
func OpenComment(d Direction) string {
	return "TV-" + string(d)
}

// Executor builds, submits and interprets market orders. It never returns a
// raw session error; every failure is folded into the OrderResult.
type Executor struct {
	session  Session
	resolver *Resolver
	params   ExecParams
	logger   *slog.Logger
}

func NewExecutor(session Session, params ExecParams, logger *slog.Logger) *Executor {
	return &Executor{
		session:  session,
		resolver: NewResolver(session),
		params:   params.withDefaults(),
		logger:   logger,
	}
}

// Open resolves a fresh quote for the instrument and submits req against it.
func (e *Executor) Open(ctx context.Context, req OpenRequest) OrderResult {
	if !e.session.Connected() {
		return rejected(ErrSessionUnavailable)
	}

	quote, err := e.resolver.Resolve(ctx, req.Instrument)
	if err != nil {
		return rejected(fmt.Errorf("%w: %w", ErrInstrumentUnavailable, err))
	}

	return e.OpenAt(ctx, quote, req)
}

// OpenAt submits req priced off an already resolved quote.
func (e *Executor) OpenAt(ctx context.Context, quote InstrumentQuote, req OpenRequest) OrderResult {
	if !req.Volume.IsPositive() {
		return rejected(&ValidationError{Field: "lot_size", Reason: "lot_size must be a positive number"})
	}

	if err := checkVolume(quote, req.Volume); err != nil {
		return rejected(err)
	}

	order := OrderRequest{
		Instrument:        req.Instrument,
		Volume:            req.Volume,
		Side:              req.Side,
		ReferencePrice:    quote.ReferencePrice(req.Side),
		StopLossPrice:     req.Risk.StopLoss,
		TakeProfitPrice:   req.Risk.TakeProfit,
		MaxSlippagePoints: e.params.MaxDeviation,
		StrategyTag:       e.params.MagicNumber,
		FillPolicy:        FillImmediateOrCancel,
		TimePolicy:        TimeGoodTillCancel,
		Comment:           req.Comment,
	}

	res := e.submit(ctx, order)
	if res.Accepted {
		e.logger.Info("✅ Position opened",
			slog.String("side", string(req.Side)),
			slog.String("symbol", req.Instrument),
			slog.String("volume", req.Volume.String()),
			slog.Uint64("ticket", res.Ticket),
		)
	}

	return res
}

// submit sends one order and normalizes the reply.
func (e *Executor) submit(ctx context.Context, order OrderRequest) OrderResult {
	report, err := e.session.OrderSend(ctx, order)
	if err != nil {
		e.logger.Error("❌ Order send failed",
			slog.String("symbol", order.Instrument),
			slog.String("side", string(order.Side)),
			slog.Any("error", err),
		)
		return rejected(fmt.Errorf("Error sending order: %w", err))
	}

	if report.RetCode != RetcodeDone {
		rej := &RejectedError{Code: report.RetCode, Message: report.Comment}
		e.logger.Error("❌ Order rejected",
			slog.String("symbol", order.Instrument),
			slog.Int("retcode", report.RetCode),
			slog.String("comment", report.Comment),
		)
		return rejected(rej)
	}

	return OrderResult{
		Accepted:     true,
		Ticket:       report.Order,
		FilledPrice:  report.Price,
		FilledVolume: report.Volume,
	}
}

func checkVolume(quote InstrumentQuote, volume decimal.Decimal) error {
	if quote.VolumeMin.IsPositive() && volume.LessThan(quote.VolumeMin) {
		return &ValidationError{
			Field:  "lot_size",
			Reason: fmt.Sprintf("volume %s below minimum %s for %s", volume, quote.VolumeMin, quote.Instrument),
		}
	}

	if quote.VolumeMax.IsPositive() && volume.GreaterThan(quote.VolumeMax) {
		return &ValidationError{
			Field:  "lot_size",
			Reason: fmt.Sprintf("volume %s above maximum %s for %s", volume, quote.VolumeMax, quote.Instrument),
		}
	}

	return nil
}
