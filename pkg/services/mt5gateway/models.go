package mt5gateway

import (
	"github.com/shopspring/decimal"
)

// InitializeRequest logs the terminal into a trading account.
type InitializeRequest struct {
	Login    int64  `json:"login"`
	Password string `json:"password"`
	Server   string `json:"server"`
	Path     string `json:"path,omitempty"`
}

type statusResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// SymbolInfo mirrors the terminal's symbol_info record.
type SymbolInfo struct {
	Symbol     string          `json:"symbol"`
	Bid        decimal.Decimal `json:"bid"`
	Ask        decimal.Decimal `json:"ask"`
	Spread     int64           `json:"spread"`
	VolumeMin  decimal.Decimal `json:"volume_min"`
	VolumeMax  decimal.Decimal `json:"volume_max"`
	VolumeStep decimal.Decimal `json:"volume_step"`
	Point      decimal.Decimal `json:"point"`
	Digits     int32           `json:"digits"`
	Visible    bool            `json:"visible"`
}

// OrderSendRequest mirrors the terminal's order_send request for a market
// deal. Prices are sent as JSON numbers.
type OrderSendRequest struct {
	Action      string   `json:"action"`
	Symbol      string   `json:"symbol"`
	Volume      float64  `json:"volume"`
	Type        string   `json:"type"`
	Price       float64  `json:"price"`
	SL          *float64 `json:"sl,omitempty"`
	TP          *float64 `json:"tp,omitempty"`
	Position    uint64   `json:"position,omitempty"`
	Deviation   int      `json:"deviation"`
	Magic       int64    `json:"magic"`
	Comment     string   `json:"comment"`
	TypeTime    string   `json:"type_time"`
	TypeFilling string   `json:"type_filling"`
}

// OrderSendResult mirrors the terminal's order_send reply.
type OrderSendResult struct {
	Retcode int             `json:"retcode"`
	Order   uint64          `json:"order"`
	Deal    uint64          `json:"deal"`
	Price   decimal.Decimal `json:"price"`
	Volume  decimal.Decimal `json:"volume"`
	Comment string          `json:"comment"`
}

// PositionInfo mirrors one entry of the terminal's positions_get reply.
type PositionInfo struct {
	Ticket       uint64          `json:"ticket"`
	Symbol       string          `json:"symbol"`
	Type         string          `json:"type"`
	Volume       decimal.Decimal `json:"volume"`
	PriceOpen    decimal.Decimal `json:"price_open"`
	PriceCurrent decimal.Decimal `json:"price_current"`
	Profit       decimal.Decimal `json:"profit"`
	SL           decimal.Decimal `json:"sl"`
	TP           decimal.Decimal `json:"tp"`
}

type positionsResponse struct {
	Positions []PositionInfo `json:"positions"`
}

// AccountInfo mirrors the terminal's account_info record.
type AccountInfo struct {
	Login      int64           `json:"login"`
	Balance    decimal.Decimal `json:"balance"`
	Equity     decimal.Decimal `json:"equity"`
	Margin     decimal.Decimal `json:"margin"`
	MarginFree decimal.Decimal `json:"margin_free"`
	Profit     decimal.Decimal `json:"profit"`
}

type errorResponse struct {
	Error string `json:"error"`
}
