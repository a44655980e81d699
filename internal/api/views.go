package api

import (
	"mt5_bridge/internal/trading"
)

// JSON shapes exposed to webhook callers and dashboards. Decimals are
// rendered as JSON numbers.

type AccountView struct {
	Login      int64   `json:"login"`
	Balance    float64 `json:"balance"`
	Equity     float64 `json:"equity"`
	Margin     float64 `json:"margin"`
	MarginFree float64 `json:"margin_free"`
	Profit     float64 `json:"profit"`
}

func accountView(a trading.Account) AccountView {
	return AccountView{
		Login:      a.Login,
		Balance:    a.Balance.InexactFloat64(),
		Equity:     a.Equity.InexactFloat64(),
		Margin:     a.Margin.InexactFloat64(),
		MarginFree: a.MarginFree.InexactFloat64(),
		Profit:     a.Profit.InexactFloat64(),
	}
}

type SymbolView struct {
	Symbol    string  `json:"symbol"`
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	Spread    int64   `json:"spread"`
	VolumeMin float64 `json:"volume_min"`
	VolumeMax float64 `json:"volume_max"`
	Point     float64 `json:"point"`
	Digits    int32   `json:"digits"`
}

func symbolView(q trading.InstrumentQuote) SymbolView {
	return SymbolView{
		Symbol:    q.Instrument,
		Bid:       q.Bid.InexactFloat64(),
		Ask:       q.Ask.InexactFloat64(),
		Spread:    q.Spread,
		VolumeMin: q.VolumeMin.InexactFloat64(),
		VolumeMax: q.VolumeMax.InexactFloat64(),
		Point:     q.Point.InexactFloat64(),
		Digits:    q.Digits,
	}
}

type PositionView struct {
	Ticket       uint64  `json:"ticket"`
	Symbol       string  `json:"symbol"`
	Type         string  `json:"type"`
	Volume       float64 `json:"volume"`
	PriceOpen    float64 `json:"price_open"`
	PriceCurrent float64 `json:"price_current"`
	Profit       float64 `json:"profit"`
	SL           float64 `json:"sl"`
	TP           float64 `json:"tp"`
}

func positionViews(positions []trading.Position) []PositionView {
	views := make([]PositionView, 0, len(positions))
	for _, p := range positions {
		views = append(views, PositionView{
			Ticket:       p.Ticket,
			Symbol:       p.Instrument,
			Type:         string(p.Side),
			Volume:       p.Volume.InexactFloat64(),
			PriceOpen:    p.OpenPrice.InexactFloat64(),
			PriceCurrent: p.CurrentPrice.InexactFloat64(),
			Profit:       p.Profit.InexactFloat64(),
			SL:           p.StopLossPrice.InexactFloat64(),
			TP:           p.TakeProfitPrice.InexactFloat64(),
		})
	}
	return views
}

type PositionsResponse struct {
	Positions []PositionView `json:"positions"`
}

type HealthResponse struct {
	Status       string       `json:"status"`
	MT5Connected bool         `json:"mt5_connected"`
	Account      *AccountView `json:"account,omitempty"`
	Error        string       `json:"error,omitempty"`
}

// OrderResponse is returned for BUY/SELL signals and single closes.
type OrderResponse struct {
	Success   bool    `json:"success"`
	Ticket    uint64  `json:"ticket,omitempty"`
	Price     float64 `json:"price,omitempty"`
	Volume    float64 `json:"volume,omitempty"`
	ErrorCode int     `json:"error_code,omitempty"`
	Error     string  `json:"error,omitempty"`
}

func orderResponse(res trading.OrderResult) OrderResponse {
	if !res.Accepted {
		return OrderResponse{ErrorCode: res.ErrorCode, Error: res.ErrorMessage}
	}

	return OrderResponse{
		Success: true,
		Ticket:  res.Ticket,
		Price:   res.FilledPrice.InexactFloat64(),
		Volume:  res.FilledVolume.InexactFloat64(),
	}
}

// CloseResponse is returned for CLOSE signals. Failures lists tickets that
// could not be closed; success stays true.
type CloseResponse struct {
	Success       bool              `json:"success"`
	Message       string            `json:"message"`
	ClosedTickets []uint64          `json:"closed_tickets"`
	Failures      map[uint64]string `json:"failures,omitempty"`
}

func closeResponse(o trading.CloseOutcome) CloseResponse {
	resp := CloseResponse{
		Success:       true,
		Message:       o.Message(),
		ClosedTickets: o.ClosedTickets,
	}
	if resp.ClosedTickets == nil {
		resp.ClosedTickets = []uint64{}
	}

	if len(o.Failures) > 0 {
		resp.Failures = make(map[uint64]string, len(o.Failures))
		for ticket, err := range o.Failures {
			resp.Failures[ticket] = err.Error()
		}
	}

	return resp
}

type failureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
