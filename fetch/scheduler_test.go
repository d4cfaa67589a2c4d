package fetch

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog/log"

	"optionwatch/shared"
)

type fakeQuoteSource struct {
	batches [][]string
	quotes  map[string]shared.Quote
	err     error
}

func (f *fakeQuoteSource) fetch(ctx context.Context, symbols []string) (map[string]shared.Quote, error) {
	f.batches = append(f.batches, symbols)
	if f.err != nil {
		return nil, f.err
	}

	quotes := make(map[string]shared.Quote, len(symbols))
	for _, symbol := range symbols {
		if quote, ok := f.quotes[symbol]; ok {
			quotes[symbol] = quote
		}
	}

	return quotes, nil
}

func setupScheduler(t *testing.T, symbols []string, source *fakeQuoteSource) (*Scheduler, *[]string) {
	applied := []string{}

	if source.quotes == nil {
		source.quotes = make(map[string]shared.Quote)
		for _, symbol := range symbols {
			source.quotes[symbol] = shared.Quote{Symbol: symbol, LTP: 100}
		}
	}

	scheduler, err := NewScheduler(&SchedulerConfig{
		FetchQuotes: source.fetch,
		Symbols: func() []string {
			return symbols
		},
		ApplyQuote: func(quote *shared.Quote, now time.Time) {
			applied = append(applied, quote.Symbol)
		},
		BatchSize: 2,
		Limiter:   NewRateLimiter(),
		Logger:    &log.Logger,
	})
	assert.NoError(t, err)

	return scheduler, &applied
}

func TestSchedulerBatchRotation(t *testing.T) {
	symbols := []string{"A", "B", "C", "D", "E"}
	source := &fakeQuoteSource{}
	scheduler, applied := setupScheduler(t, symbols, source)

	// Ensure one batch of two symbols is polled per tick and three ticks
	// cover all five monitored symbols.
	now := time.Date(2024, time.July, 10, 10, 0, 0, 0, time.UTC)
	for idx := 0; idx < 3; idx++ {
		scheduler.Tick(context.Background(), now.Add(time.Duration(idx)*time.Second*2))
	}

	assert.Equal(t, len(source.batches), 3)
	for _, batch := range source.batches {
		assert.LessThanOrEqual(t, len(batch), 2)
	}

	covered := append([]string{}, *applied...)
	sort.Strings(covered)
	assert.Equal(t, covered, []string{"A", "A", "B", "C", "D", "E"})
}

func TestSchedulerEmptyWatchlist(t *testing.T) {
	source := &fakeQuoteSource{}
	scheduler, _ := setupScheduler(t, []string{}, source)

	// Ensure ticks with nothing monitored make no requests.
	scheduler.Tick(context.Background(), time.Now())
	assert.Equal(t, len(source.batches), 0)
}

func TestSchedulerFetchError(t *testing.T) {
	source := &fakeQuoteSource{err: errors.New("timeout")}
	scheduler, applied := setupScheduler(t, []string{"A", "B"}, source)

	// Ensure a failed poll applies nothing.
	scheduler.Tick(context.Background(), time.Now())
	assert.Equal(t, len(source.batches), 1)
	assert.Equal(t, len(*applied), 0)
}

func TestSchedulerPartialResponse(t *testing.T) {
	source := &fakeQuoteSource{
		quotes: map[string]shared.Quote{
			"A": {Symbol: "A", LTP: 101},
		},
	}
	scheduler, applied := setupScheduler(t, []string{"A", "B"}, source)

	// Ensure symbols missing from the response are skipped while the rest
	// are applied.
	scheduler.Tick(context.Background(), time.Now())
	assert.Equal(t, *applied, []string{"A"})
}

func TestSchedulerRateLimit(t *testing.T) {
	source := &fakeQuoteSource{}
	scheduler, _ := setupScheduler(t, []string{"A", "B"}, source)

	now := time.Date(2024, time.July, 10, 10, 0, 0, 0, time.UTC)
	scheduler.Tick(context.Background(), now)

	// Ensure a tick inside the minimum request spacing is deferred.
	scheduler.Tick(context.Background(), now.Add(time.Millisecond*50))
	assert.Equal(t, len(source.batches), 1)

	scheduler.Tick(context.Background(), now.Add(time.Second*2))
	assert.Equal(t, len(source.batches), 2)
}
