package trading

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
)

// fakeSession is an in-memory terminal that records every call.
type fakeSession struct {
	mu sync.Mutex

	connected    bool
	quotes       map[string]InstrumentQuote
	unselectable map[string]bool
	positions    []Position
	rejectClose  map[uint64]int
	sendErr      error
	stallOrders  bool
	openRetcode  int
	nextTicket   uint64

	calls  int
	orders []OrderRequest
}

var _ Session = (*fakeSession)(nil)

func newFakeSession() *fakeSession {
	return &fakeSession{
		connected:    true,
		quotes:       map[string]InstrumentQuote{},
		unselectable: map[string]bool{},
		rejectClose:  map[uint64]int{},
		openRetcode:  RetcodeDone,
		nextTicket:   5000,
	}
}

func (f *fakeSession) addQuote(symbol, bid, ask string, digits int32) {
	f.quotes[symbol] = InstrumentQuote{
		Instrument: symbol,
		Bid:        decimal.RequireFromString(bid),
		Ask:        decimal.RequireFromString(ask),
		VolumeMin:  decimal.RequireFromString("0.01"),
		VolumeMax:  decimal.RequireFromString("100"),
		VolumeStep: decimal.RequireFromString("0.01"),
		Point:      decimal.New(1, -digits),
		Digits:     digits,
		Selected:   true,
	}
}

func (f *fakeSession) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeSession) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.connected
}

func (f *fakeSession) SymbolInfo(_ context.Context, symbol string) (InstrumentQuote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	q, ok := f.quotes[symbol]
	if !ok {
		return InstrumentQuote{}, ErrInstrumentNotFound
	}
	return q, nil
}

func (f *fakeSession) SymbolSelect(_ context.Context, symbol string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.unselectable[symbol] {
		return errors.New("symbol_select returned false")
	}
	q := f.quotes[symbol]
	q.Selected = true
	f.quotes[symbol] = q
	return nil
}

func (f *fakeSession) OrderSend(ctx context.Context, req OrderRequest) (ExecutionReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.orders = append(f.orders, req)

	if f.stallOrders {
		f.mu.Unlock()
		<-ctx.Done()
		f.mu.Lock()
		return ExecutionReport{}, ctx.Err()
	}

	if f.sendErr != nil {
		return ExecutionReport{}, f.sendErr
	}

	if req.Position != 0 {
		if code, ok := f.rejectClose[req.Position]; ok {
			return ExecutionReport{RetCode: code, Comment: "Requote"}, nil
		}
		return ExecutionReport{RetCode: RetcodeDone, Order: req.Position + 1000, Price: req.ReferencePrice, Volume: req.Volume}, nil
	}

	if f.openRetcode != RetcodeDone {
		return ExecutionReport{RetCode: f.openRetcode, Comment: "Market closed"}, nil
	}

	f.nextTicket++
	return ExecutionReport{RetCode: RetcodeDone, Order: f.nextTicket, Price: req.ReferencePrice, Volume: req.Volume}, nil
}

func (f *fakeSession) Positions(_ context.Context, symbol string) ([]Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	var out []Position
	for _, p := range f.positions {
		if symbol == "" || p.Instrument == symbol {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeSession) PositionByTicket(_ context.Context, ticket uint64) (Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	for _, p := range f.positions {
		if p.Ticket == ticket {
			return p, nil
		}
	}
	return Position{}, ErrPositionNotFound
}

func (f *fakeSession) Account(context.Context) (Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return Account{Login: 1, Balance: decimal.NewFromInt(10000)}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDispatcher(t *testing.T, s *fakeSession) *Dispatcher {
	t.Helper()
	exec := NewExecutor(s, ExecParams{MagicNumber: 123456}, discardLogger())
	return NewDispatcher(exec, Defaults{
		Instrument:        "EURUSD",
		Volume:            decimal.RequireFromString("0.01"),
		StopLossPercent:   DefaultStopLossPercent,
		TakeProfitPercent: DefaultTakeProfitPercent,
	}, discardLogger())
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func flex(s string) *FlexNumber {
	return &FlexNumber{Decimal: decimal.RequireFromString(s)}
}
