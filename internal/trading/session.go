// Package trading turns inbound directional signals into validated,
// priced and risk-bounded orders against a terminal session, and reconciles
// open positions when they are closed.
//
// Components hold no mutable state between calls; the only state lives in
// the terminal session. Callers bound every operation with a context
// deadline; nothing here retries.
package trading

import (
	"context"
)

// Session is the terminal capability the core depends on. A single
// authenticated connection serializes calls internally; implementations must
// be safe for concurrent use.
type Session interface {
	// Connected reports whether the terminal is logged in and reachable.
	Connected() bool

	// SymbolInfo returns fresh metadata for symbol or ErrInstrumentNotFound.
	SymbolInfo(ctx context.Context, symbol string) (InstrumentQuote, error)

	// SymbolSelect activates symbol for trading. Repeated calls are no-ops.
	SymbolSelect(ctx context.Context, symbol string) error

	// OrderSend submits one request. A returned error means the request may
	// not have reached the terminal; a report with a non-done code means it
	// was refused.
	OrderSend(ctx context.Context, req OrderRequest) (ExecutionReport, error)

	// Positions lists open positions, for all symbols when symbol is empty.
	Positions(ctx context.Context, symbol string) ([]Position, error)

	// PositionByTicket returns one open position or ErrPositionNotFound.
	PositionByTicket(ctx context.Context, ticket uint64) (Position, error)

	// Account returns the logged-in account snapshot.
	Account(ctx context.Context) (Account, error)
}
