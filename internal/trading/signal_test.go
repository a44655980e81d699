package trading

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadAcceptsNumbersAndNumericStrings(t *testing.T) {
	var p Payload
	err := json.Unmarshal([]byte(`{"signal":"buy","symbol":"eurusd","lot_size":"0.2","sl_percent":1.5,"tp_percent":null,"extra":true}`), &p)
	require.NoError(t, err)

	sig, err := ParseSignal(p, Defaults{
		Instrument:        "GBPUSD",
		Volume:            dec("0.01"),
		StopLossPercent:   DefaultStopLossPercent,
		TakeProfitPercent: DefaultTakeProfitPercent,
	})
	require.NoError(t, err)

	assert.Equal(t, DirectionBuy, sig.Direction)
	assert.Equal(t, "EURUSD", sig.Instrument)
	assert.True(t, sig.Volume.Equal(dec("0.2")))
	assert.True(t, sig.StopLossPercent.Equal(dec("1.5")))
	assert.True(t, sig.TakeProfitPercent.Equal(dec("2")))
}

func TestPayloadRejectsNonNumericLotSize(t *testing.T) {
	var p Payload
	err := json.Unmarshal([]byte(`{"signal":"buy","lot_size":"lots"}`), &p)
	assert.Error(t, err)
}

func TestParseSignalAppliesDefaults(t *testing.T) {
	sig, err := ParseSignal(Payload{Signal: " Close "}, Defaults{Instrument: "eurusd", Volume: dec("0.01")})
	require.NoError(t, err)

	assert.Equal(t, DirectionClose, sig.Direction)
	assert.Equal(t, "EURUSD", sig.Instrument)
	assert.True(t, sig.Volume.Equal(dec("0.01")))
}

func TestParseSignalInvalidDirectionMessage(t *testing.T) {
	_, err := ParseSignal(Payload{Signal: "HOLD"}, Defaults{Instrument: "EURUSD", Volume: dec("0.01")})
	require.Error(t, err)
	assert.Equal(t, "Invalid signal. Use BUY, SELL, or CLOSE", err.Error())
}
