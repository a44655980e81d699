package trading

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Direction is the action requested by an inbound signal.
type Direction string

const (
	DirectionBuy   Direction = "BUY"
	DirectionSell  Direction = "SELL"
	DirectionClose Direction = "CLOSE"
)

// ParseDirection accepts BUY, SELL or CLOSE in any case.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToUpper(strings.TrimSpace(s))); d {
	case DirectionBuy, DirectionSell, DirectionClose:
		return d, nil
	default:
		return "", &ValidationError{Field: "signal", Reason: "Invalid signal. Use BUY, SELL, or CLOSE"}
	}
}

// Side returns the order side for an opening direction.
func (d Direction) Side() (Side, bool) {
	switch d {
	case DirectionBuy:
		return SideBuy, true
	case DirectionSell:
		return SideSell, true
	default:
		return "", false
	}
}

// Side is the side of an order or a position.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the counter side used to close a position.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}

	return SideBuy
}

// FillPolicy governs partial execution of a market order.
type FillPolicy string

const (
	FillImmediateOrCancel FillPolicy = "IOC"
	FillOrKill            FillPolicy = "FOK"
	FillReturn            FillPolicy = "RETURN"
)

// TimePolicy governs the lifetime of an order.
type TimePolicy string

const (
	TimeGoodTillCancel TimePolicy = "GTC"
	TimeDay            TimePolicy = "DAY"
)

// Signal is a validated inbound trading instruction.
type Signal struct {
	Direction         Direction
	Instrument        string
	Volume            decimal.Decimal
	StopLossPercent   decimal.Decimal
	TakeProfitPercent decimal.Decimal
}

// InstrumentQuote is a fresh snapshot of tradable metadata for one instrument.
type InstrumentQuote struct {
	Instrument string
	Bid        decimal.Decimal
	Ask        decimal.Decimal
	Spread     int64
	VolumeMin  decimal.Decimal
	VolumeMax  decimal.Decimal
	VolumeStep decimal.Decimal
	Point      decimal.Decimal
	Digits     int32
	Selected   bool
}

// ReferencePrice is the price an order of the given side executes against:
// ask for BUY, bid for SELL.
func (q InstrumentQuote) ReferencePrice(side Side) decimal.Decimal {
	if side == SideBuy {
		return q.Ask
	}

	return q.Bid
}

// OrderRequest is a market order as submitted to the terminal session.
type OrderRequest struct {
	Instrument      string
	Volume          decimal.Decimal
	Side            Side
	ReferencePrice  decimal.Decimal
	StopLossPrice   *decimal.Decimal
	TakeProfitPrice *decimal.Decimal
	// Position is the ticket being closed; zero for opening orders.
	Position          uint64
	MaxSlippagePoints int
	StrategyTag       int64
	FillPolicy        FillPolicy
	TimePolicy        TimePolicy
	Comment           string
}

// ExecutionReport is the raw reply of the terminal to an order submission.
type ExecutionReport struct {
	RetCode int
	Order   uint64
	Deal    uint64
	Price   decimal.Decimal
	Volume  decimal.Decimal
	Comment string
}

// RetcodeDone is the terminal execution code for a completed request.
const RetcodeDone = 10009

// OrderResult is the normalized outcome of one submission. It is never
// mutated after being returned.
type OrderResult struct {
	Accepted     bool
	Ticket       uint64
	FilledPrice  decimal.Decimal
	FilledVolume decimal.Decimal
	ErrorCode    int
	ErrorMessage string
	// Err carries the taxonomy error behind a rejection, if any.
	Err error
}

func rejected(err error) OrderResult {
	res := OrderResult{Err: err, ErrorMessage: err.Error()}

	if code, ok := RejectionCode(err); ok {
		res.ErrorCode = code
	}

	return res
}

// Position is an open position as reported by the terminal session.
type Position struct {
	Ticket          uint64
	Instrument      string
	Side            Side
	Volume          decimal.Decimal
	OpenPrice       decimal.Decimal
	CurrentPrice    decimal.Decimal
	Profit          decimal.Decimal
	StopLossPrice   decimal.Decimal
	TakeProfitPrice decimal.Decimal
}

// CloseOutcome aggregates the per-ticket results of closing many positions.
type CloseOutcome struct {
	RequestedCount int
	ClosedTickets  []uint64
	Failures       map[uint64]error
}

// Message is the human readable summary reported to webhook callers.
func (o CloseOutcome) Message() string {
	return fmt.Sprintf("Closed %d positions", len(o.ClosedTickets))
}

// Account is a snapshot of the logged-in trading account.
type Account struct {
	Login      int64
	Balance    decimal.Decimal
	Equity     decimal.Decimal
	Margin     decimal.Decimal
	MarginFree decimal.Decimal
	Profit     decimal.Decimal
}
