package trading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeRiskBuyEURUSD(t *testing.T) {
	levels := ComputeRisk(SideBuy, dec("1.1000"), dec("1.0"), dec("2.0"), 4)

	require.NotNil(t, levels.StopLoss)
	require.NotNil(t, levels.TakeProfit)
	assert.True(t, levels.StopLoss.Equal(dec("1.0890")))
	assert.True(t, levels.TakeProfit.Equal(dec("1.1220")))
}

func TestComputeRiskSellMirrors(t *testing.T) {
	levels := ComputeRisk(SideSell, dec("1.1000"), dec("1.0"), dec("2.0"), 4)

	require.NotNil(t, levels.StopLoss)
	require.NotNil(t, levels.TakeProfit)
	assert.True(t, levels.StopLoss.Equal(dec("1.1110")))
	assert.True(t, levels.TakeProfit.Equal(dec("1.0780")))

	ref := dec("1.1000")
	assert.True(t, levels.StopLoss.GreaterThan(ref))
	assert.True(t, levels.TakeProfit.LessThan(ref))
}

func TestComputeRiskSidesOfReference(t *testing.T) {
	cases := []struct {
		name   string
		side   Side
		ref    string
		digits int32
	}{
		{"buy gold", SideBuy, "2034.57", 2},
		{"sell gold", SideSell, "2034.57", 2},
		{"buy jpy", SideBuy, "148.123", 3},
		{"sell jpy", SideSell, "148.123", 3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ref := dec(tc.ref)
			levels := ComputeRisk(tc.side, ref, dec("0.5"), dec("1.5"), tc.digits)

			require.NotNil(t, levels.StopLoss)
			require.NotNil(t, levels.TakeProfit)
			assert.LessOrEqual(t, -levels.StopLoss.Exponent(), tc.digits)
			assert.LessOrEqual(t, -levels.TakeProfit.Exponent(), tc.digits)

			if tc.side == SideBuy {
				assert.True(t, levels.StopLoss.LessThan(ref))
				assert.True(t, levels.TakeProfit.GreaterThan(ref))
			} else {
				assert.True(t, levels.StopLoss.GreaterThan(ref))
				assert.True(t, levels.TakeProfit.LessThan(ref))
			}
		})
	}
}

func TestComputeRiskZeroPercentOmitsLevel(t *testing.T) {
	levels := ComputeRisk(SideBuy, dec("1.1000"), dec("0"), dec("2.0"), 4)
	assert.Nil(t, levels.StopLoss)
	require.NotNil(t, levels.TakeProfit)

	levels = ComputeRisk(SideSell, dec("1.1000"), dec("1.0"), dec("0"), 4)
	require.NotNil(t, levels.StopLoss)
	assert.Nil(t, levels.TakeProfit)
}

func TestComputeRiskRoundsHalfToEven(t *testing.T) {
	// 2.5 * 1.01 = 2.525 -> 2.52 under half-to-even.
	levels := ComputeRisk(SideBuy, dec("2.5"), dec("0"), dec("1"), 2)
	require.NotNil(t, levels.TakeProfit)
	assert.True(t, levels.TakeProfit.Equal(dec("2.52")), levels.TakeProfit.String())

	// 2.5 * 1.03 = 2.575 -> 2.58 under half-to-even.
	levels = ComputeRisk(SideBuy, dec("2.5"), dec("0"), dec("3"), 2)
	require.NotNil(t, levels.TakeProfit)
	assert.True(t, levels.TakeProfit.Equal(dec("2.58")), levels.TakeProfit.String())
}

func TestComputeRiskIsIdempotent(t *testing.T) {
	a := ComputeRisk(SideSell, dec("0.65432"), dec("1.3"), dec("2.7"), 5)
	b := ComputeRisk(SideSell, dec("0.65432"), dec("1.3"), dec("2.7"), 5)

	require.NotNil(t, a.StopLoss)
	require.NotNil(t, b.StopLoss)
	assert.True(t, a.StopLoss.Equal(*b.StopLoss))
	assert.True(t, a.TakeProfit.Equal(*b.TakeProfit))
}
