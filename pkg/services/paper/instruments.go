package paper

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// TradeMode mirrors the terminal's per-symbol trade permission.
type TradeMode string

const (
	TradeModeFull     TradeMode = "full"
	TradeModeDisabled TradeMode = "disabled"
)

// Instrument is one symbol the paper terminal quotes.
type Instrument struct {
	Symbol       string          `yaml:"symbol"`
	Bid          decimal.Decimal `yaml:"bid"`
	Ask          decimal.Decimal `yaml:"ask"`
	Digits       int32           `yaml:"digits"`
	VolumeMin    decimal.Decimal `yaml:"volume_min"`
	VolumeMax    decimal.Decimal `yaml:"volume_max"`
	VolumeStep   decimal.Decimal `yaml:"volume_step"`
	ContractSize decimal.Decimal `yaml:"contract_size"`
	TradeMode    TradeMode       `yaml:"trade_mode"`
	Visible      bool            `yaml:"visible"`
}

// Point is the smallest price increment.
func (i Instrument) Point() decimal.Decimal {
	return decimal.New(1, -i.Digits)
}

// Spread is the current spread in points.
func (i Instrument) Spread() int64 {
	return i.Ask.Sub(i.Bid).Div(i.Point()).Round(0).IntPart()
}

// AccountSettings seeds a fresh paper account.
type AccountSettings struct {
	Login    int64           `yaml:"login"`
	Balance  decimal.Decimal `yaml:"balance"`
	Leverage int64           `yaml:"leverage"`
}

// File is the YAML document describing the paper terminal.
type File struct {
	Account     AccountSettings `yaml:"account"`
	Instruments []Instrument    `yaml:"instruments"`
}

// LoadFile reads and validates a paper terminal description.
func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read instruments file: %w", err)
	}

	return Parse(data)
}

// Parse decodes a YAML terminal description and fills defaults.
func Parse(data []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parse instruments file: %w", err)
	}

	if f.Account.Login == 0 {
		f.Account.Login = 1000001
	}
	if f.Account.Leverage <= 0 {
		f.Account.Leverage = 100
	}

	seen := make(map[string]bool, len(f.Instruments))
	for i := range f.Instruments {
		inst := &f.Instruments[i]
		inst.Symbol = strings.ToUpper(strings.TrimSpace(inst.Symbol))

		if inst.Symbol == "" {
			return File{}, fmt.Errorf("instrument %d: symbol is required", i)
		}
		if seen[inst.Symbol] {
			return File{}, fmt.Errorf("instrument %s: duplicate symbol", inst.Symbol)
		}
		seen[inst.Symbol] = true

		if !inst.Bid.IsPositive() || inst.Ask.LessThan(inst.Bid) {
			return File{}, fmt.Errorf("instrument %s: bid must be positive and not above ask", inst.Symbol)
		}
		if inst.VolumeMin.IsZero() {
			inst.VolumeMin = decimal.RequireFromString("0.01")
		}
		if inst.VolumeMax.IsZero() {
			inst.VolumeMax = decimal.NewFromInt(100)
		}
		if inst.VolumeStep.IsZero() {
			inst.VolumeStep = inst.VolumeMin
		}
		if inst.ContractSize.IsZero() {
			inst.ContractSize = decimal.NewFromInt(100000)
		}
		if inst.TradeMode == "" {
			inst.TradeMode = TradeModeFull
		}
	}

	return f, nil
}

// DefaultFile is used when no instruments file is configured.
func DefaultFile() File {
	f, err := Parse([]byte(defaultInstruments))
	if err != nil {
		panic(err)
	}
	return f
}

const defaultInstruments = `
account:
  login: 1000001
  leverage: 100
instruments:
  - symbol: EURUSD
    bid: 1.0998
    ask: 1.1000
    digits: 4
    visible: true
  - symbol: GBPUSD
    bid: 1.2650
    ask: 1.2652
    digits: 4
    visible: true
  - symbol: USDJPY
    bid: 149.80
    ask: 149.83
    digits: 2
    visible: false
  - symbol: XAUUSD
    bid: 2034.10
    ask: 2034.40
    digits: 2
    contract_size: 100
    visible: false
`
