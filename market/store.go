package market

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"optionwatch/indicator"
	"optionwatch/shared"
)

const (
	// maxLookBackDays caps how many calendar days the warmup walks backward
	// accumulating trading-hour candles.
	maxLookBackDays = 10
	// refreshInterval is the cadence of incremental candle refreshes.
	refreshInterval = time.Minute * 5
	// boundaryTolerance is the tolerance window around a refresh boundary.
	boundaryTolerance = time.Second * 20
	// staleThreshold forces a refresh when the window has not updated beyond
	// it, covering missed alignment ticks.
	staleThreshold = time.Minute * 10
)

// StoreConfig represents the candle store configuration.
type StoreConfig struct {
	// Provider fetches historical market data.
	Provider shared.MarketDataProvider
	// Period is the hull moving average period.
	Period int
	// WindowSize is the number of candles retained per instrument.
	WindowSize int
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Store holds the candle series of all tracked instruments and keeps their
// hull moving averages current.
type Store struct {
	cfg       *StoreConfig
	series    map[string]*Series
	seriesMtx sync.RWMutex
}

// NewStore initializes a new candle store.
func NewStore(cfg *StoreConfig) *Store {
	if cfg.Period == 0 {
		cfg.Period = indicator.HMAPeriod
	}
	if cfg.WindowSize == 0 {
		cfg.WindowSize = indicator.RequiredCandles
	}

	return &Store{
		cfg:    cfg,
		series: make(map[string]*Series),
	}
}

// filterTradingCandles returns the candles falling within exchange trading
// hours, preserving order.
func filterTradingCandles(candles []shared.Candlestick) []*shared.Candlestick {
	filtered := make([]*shared.Candlestick, 0, len(candles))
	for idx := range candles {
		if !shared.IsTradingMinute(candles[idx].Date) {
			continue
		}
		filtered = append(filtered, &candles[idx])
	}

	return filtered
}

// warmup accumulates trading-hour candles for the provided symbol, walking
// backward day by day and skipping weekends, until the window requirement is
// met or the look-back cap is exceeded.
func (s *Store) warmup(ctx context.Context, symbol string, now time.Time) ([]*shared.Candlestick, error) {
	candles := make([]*shared.Candlestick, 0, s.cfg.WindowSize)

	day := now
	for lookBack := 0; lookBack < maxLookBackDays; lookBack++ {
		if !shared.IsWeekend(day) {
			session, err := shared.NewSession(day)
			if err != nil {
				return nil, fmt.Errorf("creating session: %w", err)
			}

			end := session.Close
			if day.Equal(now) && now.Before(end) {
				end = now
			}

			if end.After(session.Open) {
				fetched, err := s.cfg.Provider.FetchHistoricalCandles(ctx, symbol, shared.FiveMinute, session.Open, end)
				if err != nil {
					return nil, fmt.Errorf("fetching %s candles for %s: %w", symbol, day.Format("2006-01-02"), err)
				}

				dayCandles := filterTradingCandles(fetched)
				candles = append(dayCandles, candles...)

				if len(candles) >= s.cfg.WindowSize {
					return candles[len(candles)-s.cfg.WindowSize:], nil
				}
			}
		}

		day = day.AddDate(0, 0, -1)
	}

	return nil, fmt.Errorf("%w: %d trading-hour candles within %d days for %s, need %d",
		shared.ErrInsufficientHistory, len(candles), maxLookBackDays, symbol, s.cfg.WindowSize)
}

// Track warms up a candle series for the provided symbol and computes its
// initial hull moving average.
func (s *Store) Track(ctx context.Context, symbol string, now time.Time) error {
	s.seriesMtx.RLock()
	_, exists := s.series[symbol]
	s.seriesMtx.RUnlock()
	if exists {
		return nil
	}

	candles, err := s.warmup(ctx, symbol, now)
	if err != nil {
		return err
	}

	series, err := NewSeries(symbol, s.cfg.WindowSize)
	if err != nil {
		return err
	}

	for idx := range candles {
		series.Append(candles[idx])
	}

	err = series.recompute(s.cfg.Period, now)
	if err != nil {
		return err
	}

	s.seriesMtx.Lock()
	s.series[symbol] = series
	s.seriesMtx.Unlock()

	return nil
}

// Untrack removes the candle series for the provided symbol.
func (s *Store) Untrack(symbol string) {
	s.seriesMtx.Lock()
	delete(s.series, symbol)
	s.seriesMtx.Unlock()
}

// HMA returns the current hull moving average series for the provided symbol.
func (s *Store) HMA(symbol string) (*indicator.HMASeries, error) {
	s.seriesMtx.RLock()
	series, ok := s.series[symbol]
	s.seriesMtx.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no candle series tracked for %s", symbol)
	}

	hma := series.HMA()
	if hma == nil {
		return nil, fmt.Errorf("no hull moving average computed yet for %s", symbol)
	}

	return hma, nil
}

// refreshSeries fetches the latest session candle for the provided series,
// appends it and recomputes the derived average.
func (s *Store) refreshSeries(ctx context.Context, series *Series, now time.Time) error {
	start := now.Add(-refreshInterval * 3)
	fetched, err := s.cfg.Provider.FetchHistoricalCandles(ctx, series.symbol, shared.FiveMinute, start, now)
	if err != nil {
		return fmt.Errorf("fetching latest %s candle: %w", series.symbol, err)
	}

	candles := filterTradingCandles(fetched)
	last := series.Last()

	var appended bool
	for idx := range candles {
		if last != nil && !candles[idx].Date.After(last.Date) {
			continue
		}

		series.Append(candles[idx])
		last = candles[idx]
		appended = true
	}

	if !appended {
		// Nothing new from the provider, retry on the next cycle.
		return nil
	}

	return series.recompute(s.cfg.Period, now)
}

// MaybeRefresh incrementally refreshes all tracked series when the provided
// time is aligned to a refresh boundary, or forces a refresh for series gone
// stale beyond the threshold.
func (s *Store) MaybeRefresh(ctx context.Context, now time.Time) {
	if !shared.IsMarketOpen(now) {
		return
	}

	aligned := shared.OnBoundary(now, refreshInterval, boundaryTolerance)

	s.seriesMtx.RLock()
	tracked := make([]*Series, 0, len(s.series))
	for _, series := range s.series {
		tracked = append(tracked, series)
	}
	s.seriesMtx.RUnlock()

	for _, series := range tracked {
		stale := now.Sub(series.LastRefresh()) > staleThreshold
		if !aligned && !stale {
			continue
		}

		err := s.refreshSeries(ctx, series, now)
		if err != nil {
			s.cfg.Logger.Error().Msgf("refreshing %s series: %v", series.symbol, err)
		}
	}
}
