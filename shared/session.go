package shared

import (
	"fmt"
	"time"
)

const (
	// Exchange session times (equity derivatives) in market local time (IST).
	MarketOpen  = "09:15"
	MarketClose = "15:30"

	// SessionOpenMinute is the minute-of-day of the session open.
	SessionOpenMinute = 9*60 + 15
	// SessionCloseMinute is the minute-of-day of the session close.
	SessionCloseMinute = 15*60 + 30

	// MarketLocation is the locale used for fetching market time.
	MarketLocation = "Asia/Kolkata"
)

// Session represents the exchange trading session for a day.
type Session struct {
	Open  time.Time
	Close time.Time
}

// NewSession initializes the trading session for the day of the provided time.
func NewSession(now time.Time) (*Session, error) {
	sessionOpen, err := time.Parse(SessionTimeLayout, MarketOpen)
	if err != nil {
		return nil, fmt.Errorf("parsing session open: %w", err)
	}

	sessionClose, err := time.Parse(SessionTimeLayout, MarketClose)
	if err != nil {
		return nil, fmt.Errorf("parsing session close: %w", err)
	}

	loc := now.Location()
	sOpen := time.Date(now.Year(), now.Month(), now.Day(), sessionOpen.Hour(), sessionOpen.Minute(), 0, 0, loc)
	sClose := time.Date(now.Year(), now.Month(), now.Day(), sessionClose.Hour(), sessionClose.Minute(), 0, 0, loc)

	session := &Session{
		Open:  sOpen,
		Close: sClose,
	}

	return session, nil
}

// IsWeekend checks whether the provided time falls on a weekend.
func IsWeekend(now time.Time) bool {
	day := now.Weekday()
	return day == time.Saturday || day == time.Sunday
}

// IsTradingMinute checks whether the provided time's minute of day falls within
// the exchange session.
func IsTradingMinute(now time.Time) bool {
	minute := now.Hour()*60 + now.Minute()
	return minute >= SessionOpenMinute && minute <= SessionCloseMinute
}

// IsMarketOpen checks whether the market is open at the provided time.
func IsMarketOpen(now time.Time) bool {
	return !IsWeekend(now) && IsTradingMinute(now)
}

// SessionCloseAt returns the session close time on the day of the provided time.
func SessionCloseAt(now time.Time) time.Time {
	loc := now.Location()
	return time.Date(now.Year(), now.Month(), now.Day(), SessionCloseMinute/60, SessionCloseMinute%60, 0, 0, loc)
}

// OnBoundary checks whether the provided time is within tolerance of a wall-clock
// boundary of the provided interval.
func OnBoundary(now time.Time, interval time.Duration, tolerance time.Duration) bool {
	offset := now.Sub(now.Truncate(interval))
	return offset <= tolerance || interval-offset <= tolerance
}

// MinuteBoundaryElapsed checks whether at least one full wall-clock minute boundary
// has elapsed between the provided times.
func MinuteBoundaryElapsed(from time.Time, now time.Time) bool {
	return now.Truncate(time.Minute).After(from.Truncate(time.Minute))
}
