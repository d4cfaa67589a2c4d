package indicator

import (
	"fmt"
	"math"
	"time"

	"optionwatch/shared"
)

const (
	// HMAPeriod is the period used for hull moving average computations.
	HMAPeriod = 55
	// RequiredCandles is the number of candles required to compute the HMA,
	// leaving a small margin above the period.
	RequiredCandles = 60
)

// HMAPoint represents a unit hull moving average value.
type HMAPoint struct {
	Date  time.Time
	Value float64
}

// HMASeries represents a computed hull moving average series. A series is
// never mutated in place; it is replaced wholesale on recomputation.
type HMASeries struct {
	Period     int
	Points     []HMAPoint
	Current    float64
	ComputedAt time.Time
}

// WMA computes the weighted moving average of the provided series. The most
// recent point carries the highest weight. Only trailing, fully determined
// values are returned, so the result has len(series)-period+1 entries.
func WMA(series []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("wma period must be positive, got %d", period)
	}
	if len(series) < period {
		return nil, fmt.Errorf("%w: wma(%d) requires %d points, got %d",
			shared.ErrInsufficientData, period, period, len(series))
	}

	divisor := float64(period*(period+1)) / 2
	values := make([]float64, 0, len(series)-period+1)
	for idx := period - 1; idx < len(series); idx++ {
		var sum float64
		for w := 1; w <= period; w++ {
			sum += series[idx-period+w] * float64(w)
		}
		values = append(values, sum/divisor)
	}

	return values, nil
}

// ComputeHMA computes a hull moving average series from the provided candles
// using the provided period.
//
// For a period n: wmaHalf = WMA(closes, n/2), wmaFull = WMA(closes, n),
// diff = 2*wmaHalf - wmaFull, HMA = WMA(diff, floor(sqrt(n))).
func ComputeHMA(candles []*shared.Candlestick, period int, now time.Time) (*HMASeries, error) {
	if period <= 0 {
		return nil, fmt.Errorf("hma period must be positive, got %d", period)
	}
	if len(candles) < period {
		return nil, fmt.Errorf("%w: hma(%d) requires %d candles, got %d",
			shared.ErrInsufficientData, period, period, len(candles))
	}

	closes := make([]float64, len(candles))
	for idx := range candles {
		closes[idx] = candles[idx].Close
	}

	halfPeriod := period / 2
	sqrtPeriod := int(math.Floor(math.Sqrt(float64(period))))

	wmaHalf, err := WMA(closes, halfPeriod)
	if err != nil {
		return nil, err
	}

	wmaFull, err := WMA(closes, period)
	if err != nil {
		return nil, err
	}

	// Difference the trailing values where both averages are determined.
	offset := len(wmaHalf) - len(wmaFull)
	diff := make([]float64, len(wmaFull))
	for idx := range wmaFull {
		diff[idx] = 2*wmaHalf[idx+offset] - wmaFull[idx]
	}

	// With the minimum candle window the determined difference series can be
	// shorter than the smoothing window; clamp so the final average remains
	// computable over the margin.
	if sqrtPeriod > len(diff) {
		sqrtPeriod = len(diff)
	}

	values, err := WMA(diff, sqrtPeriod)
	if err != nil {
		return nil, err
	}

	// Attach the trailing candle timestamps to the determined values.
	points := make([]HMAPoint, len(values))
	tail := candles[len(candles)-len(values):]
	for idx := range values {
		points[idx] = HMAPoint{
			Date:  tail[idx].Date,
			Value: values[idx],
		}
	}

	series := &HMASeries{
		Period:     period,
		Points:     points,
		Current:    points[len(points)-1].Value,
		ComputedAt: now,
	}

	return series, nil
}
