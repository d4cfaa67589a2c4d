package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog/log"

	"optionwatch/indicator"
	"optionwatch/shared"
)

// fakeProvider serves canned candles per day and records fetch calls.
type fakeProvider struct {
	calls   int
	candles func(start time.Time, end time.Time) []shared.Candlestick
	err     error
}

func (p *fakeProvider) FetchQuotes(ctx context.Context, symbols []string) (map[string]shared.Quote, error) {
	return nil, nil
}

func (p *fakeProvider) FetchHistoricalCandles(ctx context.Context, symbol string, timeframe shared.Timeframe, start time.Time, end time.Time) ([]shared.Candlestick, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}

	return p.candles(start, end), nil
}

// sessionCandles generates five minute candles covering [start, end) within
// the trading session.
func sessionCandles(symbol string, start time.Time, end time.Time) []shared.Candlestick {
	candles := make([]shared.Candlestick, 0, 80)
	price := float64(100)
	for at := start; at.Before(end); at = at.Add(time.Minute * 5) {
		candles = append(candles, shared.Candlestick{
			Open:   price,
			High:   price + 1,
			Low:    price - 1,
			Close:  price,
			Volume: 10,
			Date:   at,
			Symbol: symbol,
		})
		price++
	}

	return candles
}

func marketLocation(t *testing.T) *time.Location {
	loc, err := time.LoadLocation(shared.MarketLocation)
	assert.NoError(t, err)
	return loc
}

func TestStoreTrack(t *testing.T) {
	symbol := "NIFTY25JAN24000CE"
	loc := marketLocation(t)

	// Midday wednesday, plenty of session candles available same day.
	now := time.Date(2024, time.July, 10, 14, 0, 0, 0, loc)

	provider := &fakeProvider{
		candles: func(start, end time.Time) []shared.Candlestick {
			return sessionCandles(symbol, start, end)
		},
	}

	store := NewStore(&StoreConfig{
		Provider: provider,
		Logger:   &log.Logger,
	})

	// Ensure tracking warms up the window and computes the average.
	err := store.Track(context.Background(), symbol, now)
	assert.NoError(t, err)

	hma, err := store.HMA(symbol)
	assert.NoError(t, err)
	assert.Equal(t, hma.Period, indicator.HMAPeriod)
	assert.GreaterThan(t, hma.Current, 0)

	// Ensure tracking an already tracked symbol does not refetch.
	calls := provider.calls
	err = store.Track(context.Background(), symbol, now)
	assert.NoError(t, err)
	assert.Equal(t, provider.calls, calls)

	// Ensure untracking removes the series.
	store.Untrack(symbol)
	_, err = store.HMA(symbol)
	assert.Error(t, err)
}

func TestStoreWarmupWalksBack(t *testing.T) {
	symbol := "BANKNIFTY25JAN51000PE"
	loc := marketLocation(t)

	// Monday just after the open: the same day supplies almost no candles, so
	// the warmup must walk back past the weekend to friday.
	now := time.Date(2024, time.July, 8, 9, 40, 0, 0, loc)

	var fetchedDays []time.Time
	provider := &fakeProvider{
		candles: func(start, end time.Time) []shared.Candlestick {
			fetchedDays = append(fetchedDays, start)
			return sessionCandles(symbol, start, end)
		},
	}

	store := NewStore(&StoreConfig{
		Provider: provider,
		Logger:   &log.Logger,
	})

	err := store.Track(context.Background(), symbol, now)
	assert.NoError(t, err)

	// Ensure the weekend was skipped: monday then friday, no saturday/sunday.
	assert.Equal(t, len(fetchedDays), 2)
	assert.Equal(t, fetchedDays[0].Weekday(), time.Monday)
	assert.Equal(t, fetchedDays[1].Weekday(), time.Friday)
}

func TestStoreWarmupInsufficientHistory(t *testing.T) {
	symbol := "FINNIFTY25JAN23000CE"
	loc := marketLocation(t)
	now := time.Date(2024, time.July, 10, 14, 0, 0, 0, loc)

	// A provider with no candles at all exhausts the look-back cap.
	provider := &fakeProvider{
		candles: func(start, end time.Time) []shared.Candlestick {
			return nil
		},
	}

	store := NewStore(&StoreConfig{
		Provider: provider,
		Logger:   &log.Logger,
	})

	err := store.Track(context.Background(), symbol, now)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInsufficientHistory))
}

func TestStoreMaybeRefresh(t *testing.T) {
	symbol := "NIFTY25JAN24000CE"
	loc := marketLocation(t)
	now := time.Date(2024, time.July, 10, 14, 0, 0, 0, loc)

	provider := &fakeProvider{
		candles: func(start, end time.Time) []shared.Candlestick {
			return sessionCandles(symbol, start, end)
		},
	}

	store := NewStore(&StoreConfig{
		Provider: provider,
		Logger:   &log.Logger,
	})

	err := store.Track(context.Background(), symbol, now)
	assert.NoError(t, err)

	series := store.series[symbol]
	firstRefresh := series.LastRefresh()

	// Ensure an unaligned, fresh window is left alone.
	unaligned := now.Add(time.Minute * 2)
	store.MaybeRefresh(context.Background(), unaligned)
	assert.Equal(t, series.LastRefresh(), firstRefresh)

	// Ensure an aligned boundary triggers an incremental refresh that appends
	// the newest candle and recomputes the average.
	aligned := now.Add(time.Minute * 5)
	store.MaybeRefresh(context.Background(), aligned)
	assert.Equal(t, series.LastRefresh(), aligned)
	assert.Equal(t, series.Len(), store.cfg.WindowSize)

	// Ensure a stale window is refreshed even off the boundary.
	stale := aligned.Add(time.Minute * 11)
	store.MaybeRefresh(context.Background(), stale.Add(time.Second*90))
	assert.NotEqual(t, series.LastRefresh(), aligned)

	// Ensure refresh failures leave the series intact.
	provider.err = errors.New("provider down")
	held := series.LastRefresh()
	store.MaybeRefresh(context.Background(), held.Add(time.Minute*15))
	assert.Equal(t, series.LastRefresh(), held)
}

func TestSeriesRing(t *testing.T) {
	symbol := "NIFTY25JAN24000CE"

	// Ensure a series rejects a non-positive size.
	_, err := NewSeries(symbol, 0)
	assert.Error(t, err)

	series, err := NewSeries(symbol, 3)
	assert.NoError(t, err)
	assert.Equal(t, series.Len(), 0)
	assert.Nil(t, series.Last())

	// Ensure appends accumulate until capacity.
	start := time.Date(2024, time.July, 10, 9, 15, 0, 0, time.UTC)
	for idx := range 3 {
		series.Append(&shared.Candlestick{
			Close: float64(idx + 1),
			Date:  start.Add(time.Duration(idx) * time.Minute * 5),
		})
	}
	assert.Equal(t, series.Len(), 3)
	assert.Equal(t, series.Last().Close, 3)

	// Ensure appending at capacity evicts the oldest entry.
	series.Append(&shared.Candlestick{Close: 4, Date: start.Add(time.Minute * 15)})
	assert.Equal(t, series.Len(), 3)
	candles := series.Candles()
	assert.Equal(t, candles[0].Close, 2)
	assert.Equal(t, candles[2].Close, 4)
}
