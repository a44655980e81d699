// Package mt5gateway talks to an HTTP gateway process running next to the
// MT5 terminal. The terminal API is only reachable from that process, so the
// bridge drives it over REST.
package mt5gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"mt5_bridge/internal/trading"
	"mt5_bridge/pkg/services/httpmiddleware"
)

const (
	initializeEndpoint = "/api/v1/initialize"
	symbolsEndpoint    = "/api/v1/symbols/"
	ordersEndpoint     = "/api/v1/orders"
	positionsEndpoint  = "/api/v1/positions"
	accountEndpoint    = "/api/v1/account"
)

// Config настройки шлюза и входа в терминал
type Config struct {
	BaseURL string
	Token   string

	Login    int64
	Password string
	Server   string
	Path     string
}

// Client - клиент для работы с MT5 через шлюз, реализует trading.Session
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	connected atomic.Bool
}

var _ trading.Session = (*Client)(nil)

// NewClient создает клиент шлюза. Вход в терминал выполняет Initialize
func NewClient(cfg Config, logger *slog.Logger) *Client {
	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: httpmiddleware.Wrap(
			httpmiddleware.DefaultTransport(),
			httpmiddleware.RequestGetBodySetter,
			httpmiddleware.BearerAuth(cfg.Token),
			httpmiddleware.Logger(logger, 2048),
		),
	}

	return &Client{
		cfg:        cfg,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// Initialize выполняет вход терминала в настроенный счет
func (c *Client) Initialize(ctx context.Context) error {
	var resp statusResponse
	err := c.do(ctx, http.MethodPost, initializeEndpoint, InitializeRequest{
		Login:    c.cfg.Login,
		Password: c.cfg.Password,
		Server:   c.cfg.Server,
		Path:     c.cfg.Path,
	}, &resp)
	if err != nil {
		c.connected.Store(false)
		return fmt.Errorf("MT5 initialization failed: %w", err)
	}

	if !resp.Success {
		c.connected.Store(false)
		return fmt.Errorf("MT5 login failed: %s", resp.Error)
	}

	c.connected.Store(true)
	c.logger.Info("✅ MT5 initialized", slog.Int64("login", c.cfg.Login), slog.String("server", c.cfg.Server))

	return nil
}

// KeepAlive переподключает терминал каждые interval, пока он отключен,
// до отмены ctx
func (c *Client) KeepAlive(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.Connected() {
				continue
			}
			if err := c.Initialize(ctx); err != nil {
				c.logger.Warn("⚠️ MT5 reconnect failed", slog.Any("error", err))
			}
		}
	}
}

func (c *Client) Connected() bool {
	return c.connected.Load()
}

func (c *Client) SymbolInfo(ctx context.Context, symbol string) (trading.InstrumentQuote, error) {
	var info SymbolInfo
	if err := c.do(ctx, http.MethodGet, symbolsEndpoint+url.PathEscape(symbol), nil, &info); err != nil {
		return trading.InstrumentQuote{}, err
	}

	return trading.InstrumentQuote{
		Instrument: info.Symbol,
		Bid:        info.Bid,
		Ask:        info.Ask,
		Spread:     info.Spread,
		VolumeMin:  info.VolumeMin,
		VolumeMax:  info.VolumeMax,
		VolumeStep: info.VolumeStep,
		Point:      info.Point,
		Digits:     info.Digits,
		Selected:   info.Visible,
	}, nil
}

func (c *Client) SymbolSelect(ctx context.Context, symbol string) error {
	var resp statusResponse
	if err := c.do(ctx, http.MethodPost, symbolsEndpoint+url.PathEscape(symbol)+"/select", nil, &resp); err != nil {
		return err
	}

	if !resp.Success {
		return fmt.Errorf("symbol_select %s: %s", symbol, resp.Error)
	}

	return nil
}

func (c *Client) OrderSend(ctx context.Context, req trading.OrderRequest) (trading.ExecutionReport, error) {
	body := OrderSendRequest{
		Action:      "deal",
		Symbol:      req.Instrument,
		Volume:      req.Volume.InexactFloat64(),
		Type:        string(req.Side),
		Price:       req.ReferencePrice.InexactFloat64(),
		Position:    req.Position,
		Deviation:   req.MaxSlippagePoints,
		Magic:       req.StrategyTag,
		Comment:     req.Comment,
		TypeTime:    string(req.TimePolicy),
		TypeFilling: string(req.FillPolicy),
	}
	if req.StopLossPrice != nil {
		sl := req.StopLossPrice.InexactFloat64()
		body.SL = &sl
	}
	if req.TakeProfitPrice != nil {
		tp := req.TakeProfitPrice.InexactFloat64()
		body.TP = &tp
	}

	var result OrderSendResult
	if err := c.do(ctx, http.MethodPost, ordersEndpoint, body, &result); err != nil {
		return trading.ExecutionReport{}, err
	}

	return trading.ExecutionReport{
		RetCode: result.Retcode,
		Order:   result.Order,
		Deal:    result.Deal,
		Price:   result.Price,
		Volume:  result.Volume,
		Comment: result.Comment,
	}, nil
}

func (c *Client) Positions(ctx context.Context, symbol string) ([]trading.Position, error) {
	path := positionsEndpoint
	if symbol != "" {
		path += "?symbol=" + url.QueryEscape(symbol)
	}

	var resp positionsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	positions := make([]trading.Position, 0, len(resp.Positions))
	for _, p := range resp.Positions {
		positions = append(positions, toPosition(p))
	}

	return positions, nil
}

func (c *Client) PositionByTicket(ctx context.Context, ticket uint64) (trading.Position, error) {
	var resp positionsResponse
	if err := c.do(ctx, http.MethodGet, positionsEndpoint+"?ticket="+strconv.FormatUint(ticket, 10), nil, &resp); err != nil {
		return trading.Position{}, err
	}

	for _, p := range resp.Positions {
		if p.Ticket == ticket {
			return toPosition(p), nil
		}
	}

	return trading.Position{}, trading.ErrPositionNotFound
}

func (c *Client) Account(ctx context.Context) (trading.Account, error) {
	var info AccountInfo
	if err := c.do(ctx, http.MethodGet, accountEndpoint, nil, &info); err != nil {
		return trading.Account{}, err
	}

	return trading.Account{
		Login:      info.Login,
		Balance:    info.Balance,
		Equity:     info.Equity,
		Margin:     info.Margin,
		MarginFree: info.MarginFree,
		Profit:     info.Profit,
	}, nil
}

func toPosition(p PositionInfo) trading.Position {
	side := trading.SideBuy
	if strings.EqualFold(p.Type, string(trading.SideSell)) {
		side = trading.SideSell
	}

	return trading.Position{
		Ticket:          p.Ticket,
		Instrument:      p.Symbol,
		Side:            side,
		Volume:          p.Volume,
		OpenPrice:       p.PriceOpen,
		CurrentPrice:    p.PriceCurrent,
		Profit:          p.Profit,
		StopLossPrice:   p.SL,
		TakeProfitPrice: p.TP,
	}
}

// do отправляет JSON запрос и декодирует 2xx ответ в out. 404 при поиске
// символа дает trading.ErrInstrumentNotFound, 503 помечает сессию
// отключенной
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Gateway request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.Any("error", err))

		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return c.statusError(path, resp.StatusCode, respBody)
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}

	return nil
}

func (c *Client) statusError(path string, status int, body []byte) error {
	var e errorResponse
	_ = json.Unmarshal(body, &e)
	msg := e.Error
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}

	switch {
	case status == http.StatusNotFound && strings.HasPrefix(path, symbolsEndpoint):
		return fmt.Errorf("%s: %w", msg, trading.ErrInstrumentNotFound)
	case status == http.StatusServiceUnavailable:
		c.connected.Store(false)
		return fmt.Errorf("%s: %w", msg, trading.ErrSessionUnavailable)
	}

	return fmt.Errorf("gateway %s returned %d: %s", path, status, msg)
}
