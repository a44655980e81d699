package trading

import (
	"context"
	"errors"
	"fmt"
)

// Resolver fetches fresh tradable metadata for an instrument. Quotes are
// never cached.
type Resolver struct {
	session Session
}

func NewResolver(session Session) *Resolver {
	return &Resolver{session: session}
}

// Resolve returns a quote for symbol after making sure it is active on the
// session. It fails with ErrInstrumentNotFound when the terminal has no
// metadata for symbol and with ErrInstrumentUnselectable when activation is
// refused.
func (r *Resolver) Resolve(ctx context.Context, symbol string) (InstrumentQuote, error) {
	if !r.session.Connected() {
		return InstrumentQuote{}, ErrSessionUnavailable
	}

	quote, err := r.session.SymbolInfo(ctx, symbol)
	if err != nil {
		if errors.Is(err, ErrInstrumentNotFound) {
			return InstrumentQuote{}, fmt.Errorf("Symbol %s not found: %w", symbol, ErrInstrumentNotFound)
		}
		return InstrumentQuote{}, fmt.Errorf("symbol info %s: %w", symbol, err)
	}

	if quote.Selected {
		return quote, nil
	}

	if err := r.session.SymbolSelect(ctx, symbol); err != nil {
		return InstrumentQuote{}, fmt.Errorf("Failed to select symbol %s: %w: %w", symbol, ErrInstrumentUnselectable, err)
	}

	// Prices of a freshly selected symbol are only reliable after selection.
	quote, err = r.session.SymbolInfo(ctx, symbol)
	if err != nil {
		return InstrumentQuote{}, fmt.Errorf("symbol info %s: %w", symbol, err)
	}

	return quote, nil
}
