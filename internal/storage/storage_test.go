package storage

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "paper.db"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestEnsureAccountKeepsExistingBalance(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureAccount(ctx, 1001, d("10000"), 100))
	require.NoError(t, s.EnsureAccount(ctx, 1001, d("5"), 100))

	acc, err := s.Account(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1001), acc.Login)
	assert.True(t, acc.Balance.Equal(d("10000")))
}

func TestAccountMissing(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.Account(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenAndClosePositionLifecycle(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureAccount(ctx, 1, d("1000"), 100))

	pos, deal, err := s.OpenPosition(ctx, PositionRow{
		Symbol:    "EURUSD",
		Side:      "BUY",
		Volume:    d("0.30"),
		PriceOpen: d("1.1000"),
		SL:        d("1.0890"),
		Magic:     123456,
		Comment:   "TV-BUY",
	})
	require.NoError(t, err)
	assert.NotZero(t, pos.Ticket)
	assert.Equal(t, pos.Ticket, deal.Order)

	got, err := s.Position(ctx, pos.Ticket)
	require.NoError(t, err)
	assert.True(t, got.SL.Equal(d("1.089")))
	assert.True(t, got.TP.IsZero())
	assert.False(t, got.OpenedAt.IsZero())

	_, err = s.ClosePosition(ctx, pos.Ticket, "SELL", d("0.10"), d("1.1010"), d("10"), "Close position")
	require.NoError(t, err)

	got, err = s.Position(ctx, pos.Ticket)
	require.NoError(t, err)
	assert.True(t, got.Volume.Equal(d("0.2")))

	closing, err := s.ClosePosition(ctx, pos.Ticket, "SELL", d("0.20"), d("1.1020"), d("40"), "Close position")
	require.NoError(t, err)
	assert.NotEqual(t, pos.Ticket, closing.Order)

	_, err = s.Position(ctx, pos.Ticket)
	assert.ErrorIs(t, err, ErrNotFound)

	acc, err := s.Account(ctx)
	require.NoError(t, err)
	assert.True(t, acc.Balance.Equal(d("1050")))

	deals, err := s.Deals(ctx)
	require.NoError(t, err)
	require.Len(t, deals, 3)
	assert.Equal(t, "BUY", deals[0].Side)
	assert.True(t, deals[2].Profit.Equal(d("40")))
}

func TestClosePositionRejectsExcessVolume(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureAccount(ctx, 1, d("1000"), 100))

	pos, _, err := s.OpenPosition(ctx, PositionRow{Symbol: "EURUSD", Side: "SELL", Volume: d("0.01"), PriceOpen: d("1.1")})
	require.NoError(t, err)

	_, err = s.ClosePosition(ctx, pos.Ticket, "BUY", d("0.02"), d("1.1"), d("0"), "Close position")
	assert.Error(t, err)

	_, err = s.ClosePosition(ctx, pos.Ticket+99, "BUY", d("0.01"), d("1.1"), d("0"), "Close position")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPositionsFilterBySymbol(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	for _, sym := range []string{"EURUSD", "USDJPY", "EURUSD"} {
		_, _, err := s.OpenPosition(ctx, PositionRow{Symbol: sym, Side: "BUY", Volume: d("0.01"), PriceOpen: d("1")})
		require.NoError(t, err)
	}

	all, err := s.Positions(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	eur, err := s.Positions(ctx, "EURUSD")
	require.NoError(t, err)
	require.Len(t, eur, 2)
	assert.Less(t, eur[0].Ticket, eur[1].Ticket)
}
