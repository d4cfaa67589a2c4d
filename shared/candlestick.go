package shared

import (
	"time"
)

// Candlestick represents a unit candlestick for an instrument. Candlesticks are
// immutable once stored.
type Candlestick struct {
	Open   float64
	Low    float64
	High   float64
	Close  float64
	Volume float64
	Date   time.Time

	// Metadata.
	Symbol    string
	Timeframe Timeframe
}

// Quote represents the last traded price of an instrument.
type Quote struct {
	Symbol string
	LTP    float64
	Date   time.Time
}
