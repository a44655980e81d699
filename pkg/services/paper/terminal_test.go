package paper

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mt5_bridge/internal/storage"
	"mt5_bridge/internal/trading"
)

const testInstruments = `
account:
  login: 777
  leverage: 100
instruments:
  - symbol: eurusd
    bid: 1.0998
    ask: 1.1000
    digits: 4
    visible: true
  - symbol: USDTRY
    bid: 30.10
    ask: 30.20
    digits: 2
    trade_mode: disabled
  - symbol: AUDUSD
    bid: 0.6500
    ask: 0.6502
    digits: 4
`

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestTerminal(t *testing.T) *Terminal {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := storage.New(filepath.Join(t.TempDir(), "paper.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	f, err := Parse([]byte(testInstruments))
	require.NoError(t, err)

	term, err := New(context.Background(), store, f, d("10000"), logger)
	require.NoError(t, err)
	return term
}

func newDispatcher(term *Terminal) *trading.Dispatcher {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	exec := trading.NewExecutor(term, trading.ExecParams{}, logger)
	return trading.NewDispatcher(exec, trading.Defaults{
		Instrument:        "EURUSD",
		Volume:            d("0.01"),
		StopLossPercent:   trading.DefaultStopLossPercent,
		TakeProfitPercent: trading.DefaultTakeProfitPercent,
	}, logger)
}

func TestLoadFileDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instruments.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testInstruments), 0o600))

	f, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, f.Instruments, 3)

	eur := f.Instruments[0]
	assert.Equal(t, "EURUSD", eur.Symbol)
	assert.True(t, eur.VolumeMin.Equal(d("0.01")))
	assert.True(t, eur.ContractSize.Equal(d("100000")))
	assert.Equal(t, TradeModeFull, eur.TradeMode)
	assert.Equal(t, int64(2), eur.Spread())
	assert.Equal(t, TradeModeDisabled, f.Instruments[1].TradeMode)
}

func TestParseRejectsDuplicatesAndBadPrices(t *testing.T) {
	_, err := Parse([]byte("instruments:\n  - {symbol: EURUSD, bid: 1, ask: 1.1}\n  - {symbol: eurusd, bid: 1, ask: 1.1}\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("instruments:\n  - {symbol: EURUSD, bid: 1.2, ask: 1.1}\n"))
	assert.Error(t, err)
}

func TestDefaultFileParses(t *testing.T) {
	f := DefaultFile()
	assert.NotEmpty(t, f.Instruments)
}

func TestOpenAndCloseThroughCore(t *testing.T) {
	term := newTestTerminal(t)
	disp := newDispatcher(term)
	ctx := context.Background()

	buy := disp.Dispatch(ctx, trading.Payload{Signal: "BUY", LotSize: &trading.FlexNumber{Decimal: d("0.10")}})
	require.NotNil(t, buy.Order)
	require.True(t, buy.Order.Accepted, buy.Order.ErrorMessage)
	assert.True(t, buy.Order.FilledPrice.Equal(d("1.1000")))

	sell := disp.Dispatch(ctx, trading.Payload{Signal: "SELL", LotSize: &trading.FlexNumber{Decimal: d("0.05")}})
	require.NotNil(t, sell.Order)
	require.True(t, sell.Order.Accepted, sell.Order.ErrorMessage)

	positions, err := term.Positions(ctx, "EURUSD")
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.True(t, positions[0].StopLossPrice.Equal(d("1.0890")))
	assert.True(t, positions[0].TakeProfitPrice.Equal(d("1.1220")))

	require.NoError(t, term.SetQuote("EURUSD", d("1.1050"), d("1.1052")))

	closed := disp.Dispatch(ctx, trading.Payload{Signal: "CLOSE"})
	require.NotNil(t, closed.Close)
	assert.Equal(t, []uint64{positions[0].Ticket, positions[1].Ticket}, closed.Close.ClosedTickets)
	assert.Empty(t, closed.Close.Failures)

	positions, err = term.Positions(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, positions)

	// Long: (1.1050 - 1.1000) * 0.10 * 100000 = 50
	// Short: (1.0998 - 1.1052) * 0.05 * 100000 = -27
	acc, err := term.Account(ctx)
	require.NoError(t, err)
	assert.True(t, acc.Balance.Equal(d("10023")), acc.Balance.String())
	assert.True(t, acc.Equity.Equal(acc.Balance))
}

func TestOrderSendRefusals(t *testing.T) {
	term := newTestTerminal(t)
	ctx := context.Background()

	report, err := term.OrderSend(ctx, trading.OrderRequest{Instrument: "EURUSD", Side: trading.SideBuy, Volume: d("0.015")})
	require.NoError(t, err)
	assert.Equal(t, RetcodeInvalidVolume, report.RetCode)

	report, err = term.OrderSend(ctx, trading.OrderRequest{Instrument: "USDTRY", Side: trading.SideBuy, Volume: d("0.01")})
	require.NoError(t, err)
	assert.Equal(t, RetcodeTradeDisabled, report.RetCode)

	report, err = term.OrderSend(ctx, trading.OrderRequest{Instrument: "EURUSD", Side: trading.SideSell, Volume: d("0.01"), Position: 4242})
	require.NoError(t, err)
	assert.Equal(t, RetcodePositionClosed, report.RetCode)

	badSL := d("1.2000")
	report, err = term.OrderSend(ctx, trading.OrderRequest{Instrument: "EURUSD", Side: trading.SideBuy, Volume: d("0.01"), StopLossPrice: &badSL})
	require.NoError(t, err)
	assert.Equal(t, RetcodeInvalidStops, report.RetCode)

	report, err = term.OrderSend(ctx, trading.OrderRequest{
		Instrument:        "EURUSD",
		Side:              trading.SideBuy,
		Volume:            d("0.01"),
		ReferencePrice:    d("1.0900"),
		MaxSlippagePoints: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, RetcodeRequote, report.RetCode)
}

func TestSymbolSelectDisabledInstrument(t *testing.T) {
	term := newTestTerminal(t)
	ctx := context.Background()

	assert.Error(t, term.SymbolSelect(ctx, "USDTRY"))
	assert.ErrorIs(t, term.SymbolSelect(ctx, "NOPE"), trading.ErrInstrumentNotFound)

	q, err := term.SymbolInfo(ctx, "AUDUSD")
	require.NoError(t, err)
	assert.False(t, q.Selected)

	require.NoError(t, term.SymbolSelect(ctx, "AUDUSD"))
	q, err = term.SymbolInfo(ctx, "AUDUSD")
	require.NoError(t, err)
	assert.True(t, q.Selected)
}

func TestDisconnectedTerminal(t *testing.T) {
	term := newTestTerminal(t)
	term.SetConnected(false)

	_, err := term.Account(context.Background())
	assert.ErrorIs(t, err, trading.ErrSessionUnavailable)

	_, err = term.OrderSend(context.Background(), trading.OrderRequest{Instrument: "EURUSD", Volume: d("0.01")})
	assert.ErrorIs(t, err, trading.ErrSessionUnavailable)
}
