package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMARejectsNonPositivePeriod(t *testing.T) {
	_, err := NewSMA(0)
	assert.Error(t, err)

	_, err = NewSMA(-3)
	assert.Error(t, err)
}

func TestSMAWarmupAndValue(t *testing.T) {
	sma, err := NewSMA(3)
	require.NoError(t, err)

	sma.Add(1)
	sma.Add(2)
	assert.False(t, sma.Ready())

	_, err = sma.Value()
	assert.Error(t, err)

	sma.Add(3)
	require.True(t, sma.Ready())

	value, err := sma.Value()
	require.NoError(t, err)
	assert.InDelta(t, 2.0, value, 1e-9)
}

func TestSMASlidesWindow(t *testing.T) {
	sma, err := NewSMA(3)
	require.NoError(t, err)

	for _, v := range []float64{1, 2, 3, 4, 5} {
		sma.Add(v)
	}

	value, err := sma.Value()
	require.NoError(t, err)
	assert.InDelta(t, 4.0, value, 1e-9)
}

func TestRSIAllGainsIs100(t *testing.T) {
	rsi, err := NewRSI(3)
	require.NoError(t, err)

	for _, v := range []float64{100, 101, 102, 103} {
		rsi.Add(v)
	}

	require.True(t, rsi.Ready())

	value, err := rsi.Value()
	require.NoError(t, err)
	assert.InDelta(t, 100.0, value, 1e-9)
}

func TestRSIAllLossesIsZero(t *testing.T) {
	rsi, err := NewRSI(3)
	require.NoError(t, err)

	for _, v := range []float64{103, 102, 101, 100} {
		rsi.Add(v)
	}

	value, err := rsi.Value()
	require.NoError(t, err)
	assert.InDelta(t, 0.0, value, 1e-9)
}

func TestRSIMixedMoves(t *testing.T) {
	rsi, err := NewRSI(2)
	require.NoError(t, err)

	// Deltas: +2 then -1 over the seed window: avgGain=1, avgLoss=0.5.
	rsi.Add(100)
	rsi.Add(102)
	rsi.Add(101)

	require.True(t, rsi.Ready())

	value, err := rsi.Value()
	require.NoError(t, err)
	// RS = 2, RSI = 100 - 100/3.
	assert.InDelta(t, 100-100.0/3.0, value, 1e-9)
}

func TestRSINotReadyBeforeWarmup(t *testing.T) {
	rsi, err := NewRSI(14)
	require.NoError(t, err)

	rsi.Add(100)
	rsi.Add(101)
	assert.False(t, rsi.Ready())

	_, err = rsi.Value()
	assert.Error(t, err)
}
