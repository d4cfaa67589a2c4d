package indicator

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"

	"optionwatch/shared"
)

// syntheticCandles builds candles with the provided closes, one minute apart.
func syntheticCandles(closes []float64) []*shared.Candlestick {
	start := time.Date(2024, time.July, 10, 9, 15, 0, 0, time.UTC)
	candles := make([]*shared.Candlestick, len(closes))
	for idx := range closes {
		candles[idx] = &shared.Candlestick{
			Open:   closes[idx],
			High:   closes[idx],
			Low:    closes[idx],
			Close:  closes[idx],
			Date:   start.Add(time.Duration(idx) * time.Minute),
			Symbol: "NIFTY25JAN24000CE",
		}
	}

	return candles
}

func TestWMA(t *testing.T) {
	// Ensure a wma on too few points errors.
	_, err := WMA([]float64{1, 2}, 3)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInsufficientData))

	// Ensure a non-positive period errors.
	_, err = WMA([]float64{1, 2, 3}, 0)
	assert.Error(t, err)

	// Ensure the weighted average favors recent points: for values 1,2,3 with
	// period 3 the weights are 1,2,3 and the divisor 6, giving (1+4+9)/6.
	values, err := WMA([]float64{1, 2, 3}, 3)
	assert.NoError(t, err)
	assert.Equal(t, len(values), 1)
	assert.True(t, math.Abs(values[0]-14.0/6.0) < 1e-9)

	// Ensure only trailing fully determined values are produced.
	values, err = WMA([]float64{1, 2, 3, 4, 5}, 3)
	assert.NoError(t, err)
	assert.Equal(t, len(values), 3)
}

func TestComputeHMAInsufficientData(t *testing.T) {
	// Ensure the hma errors when fewer candles than the period are supplied.
	closes := make([]float64, HMAPeriod-1)
	for idx := range closes {
		closes[idx] = float64(idx + 1)
	}

	_, err := ComputeHMA(syntheticCandles(closes), HMAPeriod, time.Now())
	assert.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInsufficientData))
}

func TestComputeHMALagOrdering(t *testing.T) {
	// Build a strictly increasing close series longer than the required window
	// so the full sqrt smoothing window applies.
	closes := make([]float64, 80)
	for idx := range closes {
		closes[idx] = float64(idx + 1)
	}
	candles := syntheticCandles(closes)

	now := time.Now()
	series, err := ComputeHMA(candles, HMAPeriod, now)
	assert.NoError(t, err)
	assert.Equal(t, series.Period, HMAPeriod)
	assert.Equal(t, series.ComputedAt, now)
	assert.GreaterThan(t, len(series.Points), 0)
	assert.Equal(t, series.Current, series.Points[len(series.Points)-1].Value)

	// The hull construction reduces lag: on a rising series the wma(55) lags
	// the wma(27), which lags the hma, which stays below the last close.
	wmaHalf, err := WMA(closes, HMAPeriod/2)
	assert.NoError(t, err)
	wmaFull, err := WMA(closes, HMAPeriod)
	assert.NoError(t, err)

	lastClose := closes[len(closes)-1]
	lastHalf := wmaHalf[len(wmaHalf)-1]
	lastFull := wmaFull[len(wmaFull)-1]
	assert.GreaterThan(t, lastHalf, lastFull)
	assert.GreaterThan(t, series.Current, lastHalf)
	assert.GreaterThan(t, lastClose, series.Current)

	// For a linear series the hma sits a constant 4/3 below the last close.
	assert.True(t, math.Abs(series.Current-(lastClose-4.0/3.0)) < 1e-9)

	// Ensure the series points carry the trailing candle timestamps.
	lastPoint := series.Points[len(series.Points)-1]
	assert.Equal(t, lastPoint.Date, candles[len(candles)-1].Date)
}

func TestComputeHMAMinimumWindow(t *testing.T) {
	// Ensure the hma computes from the fixed rolling window size, where the
	// smoothing window clamps to the available margin.
	closes := make([]float64, RequiredCandles)
	for idx := range closes {
		closes[idx] = float64(idx + 1)
	}

	series, err := ComputeHMA(syntheticCandles(closes), HMAPeriod, time.Now())
	assert.NoError(t, err)
	assert.GreaterThan(t, len(series.Points), 0)
	assert.GreaterThan(t, series.Current, 0)
}
