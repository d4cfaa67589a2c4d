package market

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/atomic"

	"optionwatch/indicator"
	"optionwatch/shared"
)

// Series holds the rolling trading-hours candle window for an instrument and
// the hull moving average derived from it. The window is a fixed-size ring:
// once at capacity, appending a candle evicts the oldest.
type Series struct {
	symbol  string
	data    []*shared.Candlestick
	dataMtx sync.RWMutex
	start   int
	count   int
	size    int

	// The derived series is replaced wholesale on recomputation so readers
	// never observe partial state.
	hma         atomic.Pointer[indicator.HMASeries]
	lastRefresh atomic.Pointer[time.Time]
}

// NewSeries initializes a candle series for the provided symbol.
func NewSeries(symbol string, size int) (*Series, error) {
	if size <= 0 {
		return nil, errors.New("series size must be positive")
	}

	return &Series{
		symbol: symbol,
		data:   make([]*shared.Candlestick, size),
		size:   size,
	}, nil
}

// Append adds the provided candle to the series, evicting the oldest entry
// when the window is at capacity.
func (s *Series) Append(candle *shared.Candlestick) {
	s.dataMtx.Lock()
	defer s.dataMtx.Unlock()

	end := (s.start + s.count) % s.size
	s.data[end] = candle

	if s.count == s.size {
		// Overwrite the oldest entry when the window is at capacity.
		s.start = (s.start + 1) % s.size
	} else {
		s.count++
	}
}

// Last returns the most recent candle of the series.
func (s *Series) Last() *shared.Candlestick {
	s.dataMtx.RLock()
	defer s.dataMtx.RUnlock()

	if s.count == 0 {
		return nil
	}

	end := (s.start + s.count - 1) % s.size
	return s.data[end]
}

// Candles returns the candles of the series in order, oldest first.
func (s *Series) Candles() []*shared.Candlestick {
	s.dataMtx.RLock()
	defer s.dataMtx.RUnlock()

	set := make([]*shared.Candlestick, s.count)
	for i := 0; i < s.count; i++ {
		set[i] = s.data[(s.start+i)%s.size]
	}

	return set
}

// Len returns the number of candles currently held by the series.
func (s *Series) Len() int {
	s.dataMtx.RLock()
	defer s.dataMtx.RUnlock()

	return s.count
}

// HMA returns the current hull moving average series, or nil when it has not
// been computed yet.
func (s *Series) HMA() *indicator.HMASeries {
	return s.hma.Load()
}

// LastRefresh returns the time of the last successful candle refresh.
func (s *Series) LastRefresh() time.Time {
	at := s.lastRefresh.Load()
	if at == nil {
		return time.Time{}
	}

	return *at
}

// recompute replaces the derived hull moving average from the current window.
func (s *Series) recompute(period int, now time.Time) error {
	series, err := indicator.ComputeHMA(s.Candles(), period, now)
	if err != nil {
		return err
	}

	s.hma.Store(series)
	s.lastRefresh.Store(&now)

	return nil
}
