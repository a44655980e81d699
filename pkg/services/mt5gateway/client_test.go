package mt5gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mt5_bridge/internal/trading"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(Config{BaseURL: srv.URL + "/", Token: "tok", Login: 5001, Password: "pw", Server: "Demo"}, logger)
}

func TestInitializeSetsConnected(t *testing.T) {
	var got InitializeRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/initialize", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"success":true}`))
	})
	c := newTestClient(t, mux)

	assert.False(t, c.Connected())
	require.NoError(t, c.Initialize(context.Background()))
	assert.True(t, c.Connected())
	assert.Equal(t, int64(5001), got.Login)
	assert.Equal(t, "pw", got.Password)
}

func TestInitializeLoginRefused(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/initialize", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"error":"invalid account"}`))
	})
	c := newTestClient(t, mux)

	err := c.Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid account")
	assert.False(t, c.Connected())
}

func TestSymbolInfoDecodesAndMapsNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/symbols/EURUSD", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol":"EURUSD","bid":1.0998,"ask":1.1,"spread":2,"volume_min":0.01,"volume_max":100,"volume_step":0.01,"point":0.0001,"digits":4,"visible":true}`))
	})
	mux.HandleFunc("/api/v1/symbols/NOPE", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"Symbol NOPE not found"}`))
	})
	c := newTestClient(t, mux)

	q, err := c.SymbolInfo(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.True(t, q.Ask.Equal(decimal.RequireFromString("1.1")))
	assert.True(t, q.Point.Equal(decimal.RequireFromString("0.0001")))
	assert.Equal(t, int32(4), q.Digits)
	assert.True(t, q.Selected)

	_, err = c.SymbolInfo(context.Background(), "NOPE")
	assert.ErrorIs(t, err, trading.ErrInstrumentNotFound)
}

func TestOrderSendEncodesRequest(t *testing.T) {
	var got map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/orders", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"retcode":10009,"order":77,"deal":78,"price":1.1001,"volume":0.01,"comment":"Request executed"}`))
	})
	c := newTestClient(t, mux)

	sl := decimal.RequireFromString("1.089")
	report, err := c.OrderSend(context.Background(), trading.OrderRequest{
		Instrument:        "EURUSD",
		Volume:            decimal.RequireFromString("0.01"),
		Side:              trading.SideBuy,
		ReferencePrice:    decimal.RequireFromString("1.1"),
		StopLossPrice:     &sl,
		MaxSlippagePoints: 10,
		StrategyTag:       123456,
		FillPolicy:        trading.FillImmediateOrCancel,
		TimePolicy:        trading.TimeGoodTillCancel,
		Comment:           "TV-BUY",
	})
	require.NoError(t, err)

	assert.Equal(t, trading.RetcodeDone, report.RetCode)
	assert.Equal(t, uint64(77), report.Order)
	assert.True(t, report.Price.Equal(decimal.RequireFromString("1.1001")))

	assert.Equal(t, "EURUSD", got["symbol"])
	assert.Equal(t, "BUY", got["type"])
	assert.Equal(t, 1.089, got["sl"])
	assert.NotContains(t, got, "tp")
	assert.NotContains(t, got, "position")
	assert.Equal(t, "IOC", got["type_filling"])
	assert.Equal(t, float64(123456), got["magic"])
}

func TestPositionByTicket(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/positions", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ticket") == "100" {
			w.Write([]byte(`{"positions":[{"ticket":100,"symbol":"EURUSD","type":"SELL","volume":0.02,"price_open":1.1}]}`))
			return
		}
		w.Write([]byte(`{"positions":[]}`))
	})
	c := newTestClient(t, mux)

	p, err := c.PositionByTicket(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, trading.SideSell, p.Side)
	assert.True(t, p.Volume.Equal(decimal.RequireFromString("0.02")))

	_, err = c.PositionByTicket(context.Background(), 101)
	assert.ErrorIs(t, err, trading.ErrPositionNotFound)
}

func TestServiceUnavailableDropsConnection(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/initialize", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true}`))
	})
	mux.HandleFunc("/api/v1/account", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"terminal disconnected"}`))
	})
	c := newTestClient(t, mux)
	require.NoError(t, c.Initialize(context.Background()))

	_, err := c.Account(context.Background())
	assert.ErrorIs(t, err, trading.ErrSessionUnavailable)
	assert.False(t, c.Connected())
}
