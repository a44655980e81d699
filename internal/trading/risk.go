package trading

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// RiskLevels holds the protective prices attached to an opening order.
// A nil level means no stop or target is attached.
type RiskLevels struct {
	StopLoss   *decimal.Decimal
	TakeProfit *decimal.Decimal
}

// ComputeRisk derives stop-loss and take-profit prices from ref. The stop
// lies on the loss side and the target on the gain side of ref for side.
// Results are rounded half-to-even to digits places. A zero percentage omits
// the corresponding level.
func ComputeRisk(side Side, ref, slPercent, tpPercent decimal.Decimal, digits int32) RiskLevels {
	var levels RiskLevels

	lossSign, gainSign := decimal.NewFromInt(-1), decimal.NewFromInt(1)
	if side == SideSell {
		lossSign, gainSign = gainSign, lossSign
	}

	if slPercent.IsPositive() {
		sl := offset(ref, slPercent, lossSign).RoundBank(digits)
		levels.StopLoss = &sl
	}

	if tpPercent.IsPositive() {
		tp := offset(ref, tpPercent, gainSign).RoundBank(digits)
		levels.TakeProfit = &tp
	}

	return levels
}

// offset returns ref * (1 + sign*percent/100).
func offset(ref, percent, sign decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(sign.Mul(percent).Div(hundred))
	return ref.Mul(factor)
}
