// Package paper is a simulated MT5 terminal for dry runs. It quotes static
// prices from a YAML file, fills market orders at bid or ask, and keeps
// positions, deals and the balance in SQLite.
package paper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"mt5_bridge/internal/storage"
	"mt5_bridge/internal/trading"
)

// Trade server return codes used by the simulator.
const (
	RetcodeRequote        = 10004
	RetcodeInvalid        = 10013
	RetcodeInvalidVolume  = 10014
	RetcodeInvalidStops   = 10016
	RetcodeTradeDisabled  = 10017
	RetcodeError          = 10011
	RetcodePositionClosed = 10036
)

// Terminal is a trading.Session that never leaves the process.
type Terminal struct {
	store  *storage.Storage
	logger *slog.Logger

	mu          sync.Mutex
	instruments map[string]Instrument
	connected   bool
}

var _ trading.Session = (*Terminal)(nil)

// New seeds the account from f if the database is empty and returns a
// logged-in terminal.
func New(ctx context.Context, store *storage.Storage, f File, balance decimal.Decimal, logger *slog.Logger) (*Terminal, error) {
	if f.Account.Balance.IsPositive() {
		balance = f.Account.Balance
	}

	if err := store.EnsureAccount(ctx, f.Account.Login, balance, f.Account.Leverage); err != nil {
		return nil, err
	}

	instruments := make(map[string]Instrument, len(f.Instruments))
	for _, inst := range f.Instruments {
		instruments[inst.Symbol] = inst
	}

	logger.Info("📝 Paper terminal ready",
		slog.Int64("login", f.Account.Login),
		slog.Int("instruments", len(instruments)))

	return &Terminal{
		store:       store,
		logger:      logger,
		instruments: instruments,
		connected:   true,
	}, nil
}

// SetQuote moves the price of a known symbol.
func (t *Terminal) SetQuote(symbol string, bid, ask decimal.Decimal) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	inst, ok := t.instruments[symbol]
	if !ok {
		return trading.ErrInstrumentNotFound
	}
	inst.Bid, inst.Ask = bid, ask
	t.instruments[symbol] = inst

	return nil
}

// SetConnected simulates a terminal disconnect.
func (t *Terminal) SetConnected(connected bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = connected
}

func (t *Terminal) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *Terminal) instrument(symbol string) (Instrument, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	inst, ok := t.instruments[symbol]
	return inst, ok
}

func (t *Terminal) SymbolInfo(_ context.Context, symbol string) (trading.InstrumentQuote, error) {
	if !t.Connected() {
		return trading.InstrumentQuote{}, trading.ErrSessionUnavailable
	}

	inst, ok := t.instrument(symbol)
	if !ok {
		return trading.InstrumentQuote{}, trading.ErrInstrumentNotFound
	}

	return trading.InstrumentQuote{
		Instrument: inst.Symbol,
		Bid:        inst.Bid,
		Ask:        inst.Ask,
		Spread:     inst.Spread(),
		VolumeMin:  inst.VolumeMin,
		VolumeMax:  inst.VolumeMax,
		VolumeStep: inst.VolumeStep,
		Point:      inst.Point(),
		Digits:     inst.Digits,
		Selected:   inst.Visible,
	}, nil
}

func (t *Terminal) SymbolSelect(_ context.Context, symbol string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	inst, ok := t.instruments[symbol]
	if !ok {
		return trading.ErrInstrumentNotFound
	}
	if inst.TradeMode == TradeModeDisabled {
		return fmt.Errorf("symbol %s is disabled for trading", symbol)
	}

	inst.Visible = true
	t.instruments[symbol] = inst

	return nil
}

// OrderSend executes a market deal. Refusals are reported through the
// return code, like the real trade server.
func (t *Terminal) OrderSend(ctx context.Context, req trading.OrderRequest) (trading.ExecutionReport, error) {
	if !t.Connected() {
		return trading.ExecutionReport{}, trading.ErrSessionUnavailable
	}

	inst, ok := t.instrument(req.Instrument)
	if !ok {
		return refuse(RetcodeInvalid, "Unknown symbol"), nil
	}
	if inst.TradeMode == TradeModeDisabled {
		return refuse(RetcodeTradeDisabled, "Trade is disabled"), nil
	}
	if !validVolume(inst, req.Volume) {
		return refuse(RetcodeInvalidVolume, "Invalid volume"), nil
	}

	fill := inst.Ask
	if req.Side == trading.SideSell {
		fill = inst.Bid
	}

	if !req.ReferencePrice.IsZero() && req.MaxSlippagePoints >= 0 {
		slippage := fill.Sub(req.ReferencePrice).Abs()
		if slippage.GreaterThan(inst.Point().Mul(decimal.NewFromInt(int64(req.MaxSlippagePoints)))) {
			return refuse(RetcodeRequote, "Requote"), nil
		}
	}

	if req.Position != 0 {
		return t.closeDeal(ctx, inst, req, fill)
	}

	if !validStops(inst, req) {
		return refuse(RetcodeInvalidStops, "Invalid stops"), nil
	}

	var sl, tp decimal.Decimal
	if req.StopLossPrice != nil {
		sl = *req.StopLossPrice
	}
	if req.TakeProfitPrice != nil {
		tp = *req.TakeProfitPrice
	}

	pos, deal, err := t.store.OpenPosition(ctx, storage.PositionRow{
		Symbol:    inst.Symbol,
		Side:      string(req.Side),
		Volume:    req.Volume,
		PriceOpen: fill,
		SL:        sl,
		TP:        tp,
		Magic:     req.StrategyTag,
		Comment:   req.Comment,
	})
	if err != nil {
		t.logger.Error("Paper open failed", slog.Any("error", err))
		return refuse(RetcodeError, "Request processing error"), nil
	}

	return trading.ExecutionReport{
		RetCode: trading.RetcodeDone,
		Order:   pos.Ticket,
		Deal:    deal.Deal,
		Price:   fill,
		Volume:  req.Volume,
		Comment: "Request executed",
	}, nil
}

func (t *Terminal) closeDeal(ctx context.Context, inst Instrument, req trading.OrderRequest, fill decimal.Decimal) (trading.ExecutionReport, error) {
	pos, err := t.store.Position(ctx, req.Position)
	if errors.Is(err, storage.ErrNotFound) {
		return refuse(RetcodePositionClosed, "Position doesn't exist"), nil
	}
	if err != nil {
		return trading.ExecutionReport{}, err
	}

	if pos.Symbol != inst.Symbol || trading.Side(pos.Side).Opposite() != req.Side {
		return refuse(RetcodeInvalid, "Invalid request"), nil
	}
	if req.Volume.GreaterThan(pos.Volume) {
		return refuse(RetcodeInvalidVolume, "Invalid volume"), nil
	}

	profit := positionProfit(inst, trading.Side(pos.Side), pos.PriceOpen, fill, req.Volume)

	deal, err := t.store.ClosePosition(ctx, pos.Ticket, string(req.Side), req.Volume, fill, profit, req.Comment)
	if err != nil {
		t.logger.Error("Paper close failed", slog.Uint64("ticket", pos.Ticket), slog.Any("error", err))
		return refuse(RetcodeError, "Request processing error"), nil
	}

	return trading.ExecutionReport{
		RetCode: trading.RetcodeDone,
		Order:   deal.Order,
		Deal:    deal.Deal,
		Price:   fill,
		Volume:  req.Volume,
		Comment: "Request executed",
	}, nil
}

func (t *Terminal) Positions(ctx context.Context, symbol string) ([]trading.Position, error) {
	if !t.Connected() {
		return nil, trading.ErrSessionUnavailable
	}

	rows, err := t.store.Positions(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("list paper positions: %w", err)
	}

	positions := make([]trading.Position, 0, len(rows))
	for _, row := range rows {
		positions = append(positions, t.toPosition(row))
	}

	return positions, nil
}

func (t *Terminal) PositionByTicket(ctx context.Context, ticket uint64) (trading.Position, error) {
	if !t.Connected() {
		return trading.Position{}, trading.ErrSessionUnavailable
	}

	row, err := t.store.Position(ctx, ticket)
	if errors.Is(err, storage.ErrNotFound) {
		return trading.Position{}, trading.ErrPositionNotFound
	}
	if err != nil {
		return trading.Position{}, err
	}

	return t.toPosition(row), nil
}

// Account values floating profit at current prices. Margin is the notional
// at open price divided by leverage.
func (t *Terminal) Account(ctx context.Context) (trading.Account, error) {
	if !t.Connected() {
		return trading.Account{}, trading.ErrSessionUnavailable
	}

	acc, err := t.store.Account(ctx)
	if err != nil {
		return trading.Account{}, err
	}

	rows, err := t.store.Positions(ctx, "")
	if err != nil {
		return trading.Account{}, err
	}

	floating, margin := decimal.Zero, decimal.Zero
	leverage := decimal.NewFromInt(acc.Leverage)
	for _, row := range rows {
		p := t.toPosition(row)
		floating = floating.Add(p.Profit)

		if inst, ok := t.instrument(row.Symbol); ok {
			margin = margin.Add(row.Volume.Mul(inst.ContractSize).Mul(row.PriceOpen).Div(leverage))
		}
	}

	equity := acc.Balance.Add(floating)
	margin = margin.Round(2)

	return trading.Account{
		Login:      acc.Login,
		Balance:    acc.Balance,
		Equity:     equity,
		Margin:     margin,
		MarginFree: equity.Sub(margin),
		Profit:     floating,
	}, nil
}

func (t *Terminal) toPosition(row storage.PositionRow) trading.Position {
	side := trading.Side(row.Side)
	pos := trading.Position{
		Ticket:          row.Ticket,
		Instrument:      row.Symbol,
		Side:            side,
		Volume:          row.Volume,
		OpenPrice:       row.PriceOpen,
		CurrentPrice:    row.PriceOpen,
		StopLossPrice:   row.SL,
		TakeProfitPrice: row.TP,
	}

	if inst, ok := t.instrument(row.Symbol); ok {
		// A long is valued at bid, a short at ask.
		pos.CurrentPrice = inst.Bid
		if side == trading.SideSell {
			pos.CurrentPrice = inst.Ask
		}
		pos.Profit = positionProfit(inst, side, row.PriceOpen, pos.CurrentPrice, row.Volume)
	}

	return pos
}

func positionProfit(inst Instrument, side trading.Side, open, current, volume decimal.Decimal) decimal.Decimal {
	diff := current.Sub(open)
	if side == trading.SideSell {
		diff = diff.Neg()
	}
	return diff.Mul(volume).Mul(inst.ContractSize).Round(2)
}

func validVolume(inst Instrument, volume decimal.Decimal) bool {
	if volume.LessThan(inst.VolumeMin) || volume.GreaterThan(inst.VolumeMax) {
		return false
	}
	if inst.VolumeStep.IsPositive() && !volume.Mod(inst.VolumeStep).IsZero() {
		return false
	}
	return true
}

// validStops checks that a stop lies on the loss side and a target on the
// gain side of the fill price.
func validStops(inst Instrument, req trading.OrderRequest) bool {
	bid, ask := inst.Bid, inst.Ask

	if req.StopLossPrice != nil && !req.StopLossPrice.IsZero() {
		sl := *req.StopLossPrice
		if req.Side == trading.SideBuy && !sl.LessThan(bid) {
			return false
		}
		if req.Side == trading.SideSell && !sl.GreaterThan(ask) {
			return false
		}
	}

	if req.TakeProfitPrice != nil && !req.TakeProfitPrice.IsZero() {
		tp := *req.TakeProfitPrice
		if req.Side == trading.SideBuy && !tp.GreaterThan(ask) {
			return false
		}
		if req.Side == trading.SideSell && !tp.LessThan(bid) {
			return false
		}
	}

	return true
}

func refuse(code int, comment string) trading.ExecutionReport {
	return trading.ExecutionReport{RetCode: code, Comment: comment}
}
