package trading

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Payload is the inbound webhook body. Unknown fields are ignored.
type Payload struct {
	Signal     string      `json:"signal"`
	Symbol     string      `json:"symbol,omitempty"`
	LotSize    *FlexNumber `json:"lot_size,omitempty"`
	SLPercent  *FlexNumber `json:"sl_percent,omitempty"`
	TPPercent  *FlexNumber `json:"tp_percent,omitempty"`
	Passphrase string      `json:"passphrase,omitempty"`
}

// FlexNumber decodes from a JSON number or a numeric string.
type FlexNumber struct {
	decimal.Decimal
}

func (n *FlexNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("could not convert %q to number", raw)
	}

	n.Decimal = d
	return nil
}

// Defaults are applied to fields a payload omits.
type Defaults struct {
	Instrument        string
	Volume            decimal.Decimal
	StopLossPercent   decimal.Decimal
	TakeProfitPercent decimal.Decimal
}

// DefaultStopLossPercent and DefaultTakeProfitPercent apply when neither the
// payload nor the configuration set them.
var (
	DefaultStopLossPercent   = decimal.NewFromFloat(1.0)
	DefaultTakeProfitPercent = decimal.NewFromFloat(2.0)
)

// ParseSignal validates p and fills omitted fields from defaults.
func ParseSignal(p Payload, defaults Defaults) (Signal, error) {
	dir, err := ParseDirection(p.Signal)
	if err != nil {
		return Signal{}, err
	}

	sig := Signal{
		Direction:         dir,
		Instrument:        strings.ToUpper(strings.TrimSpace(p.Symbol)),
		Volume:            defaults.Volume,
		StopLossPercent:   defaults.StopLossPercent,
		TakeProfitPercent: defaults.TakeProfitPercent,
	}

	if sig.Instrument == "" {
		sig.Instrument = strings.ToUpper(defaults.Instrument)
	}
	if sig.Instrument == "" {
		return Signal{}, &ValidationError{Field: "symbol", Reason: "symbol is required"}
	}

	if p.LotSize != nil {
		sig.Volume = p.LotSize.Decimal
	}
	if !sig.Volume.IsPositive() {
		return Signal{}, &ValidationError{Field: "lot_size", Reason: "lot_size must be a positive number"}
	}

	if p.SLPercent != nil {
		sig.StopLossPercent = p.SLPercent.Decimal
	}
	if sig.StopLossPercent.IsNegative() {
		return Signal{}, &ValidationError{Field: "sl_percent", Reason: "sl_percent must not be negative"}
	}

	if p.TPPercent != nil {
		sig.TakeProfitPercent = p.TPPercent.Decimal
	}
	if sig.TakeProfitPercent.IsNegative() {
		return Signal{}, &ValidationError{Field: "tp_percent", Reason: "tp_percent must not be negative"}
	}

	return sig, nil
}
