package shared

import (
	"fmt"
	"time"
)

const (
	// SessionTimeLayout is the format layout for parsing session times in a day.
	SessionTimeLayout = "15:04"
)

// Timeframe represents the market data time period.
type Timeframe int

const (
	OneMinute Timeframe = iota
	FiveMinute
)

// String stringifies the provided timeframe.
func (t *Timeframe) String() string {
	switch *t {
	case OneMinute:
		return "1m"
	case FiveMinute:
		return "5m"
	default:
		return "unknown"
	}
}

// MarketTime returns the current time in the exchange locale (IST).
func MarketTime() (time.Time, *time.Location, error) {
	loc, err := time.LoadLocation(MarketLocation)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("loading market timezone: %w", err)
	}

	now := time.Now().In(loc)
	return now, loc, nil
}
