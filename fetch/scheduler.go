package fetch

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"optionwatch/shared"
)

// defaultBatchSize is the number of symbols quoted per poll tick.
const defaultBatchSize = 2

// SchedulerConfig represents the quote scheduler configuration.
type SchedulerConfig struct {
	// FetchQuotes fetches the last traded prices for the provided symbols.
	FetchQuotes func(ctx context.Context, symbols []string) (map[string]shared.Quote, error)
	// Symbols returns the symbols currently being monitored.
	Symbols func() []string
	// ApplyQuote relays a fetched quote for evaluation.
	ApplyQuote func(quote *shared.Quote, now time.Time)
	// BatchSize is the number of symbols quoted per tick.
	BatchSize int
	// Limiter enforces the broker request budget.
	Limiter *RateLimiter
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sanely initializes the scheduler.
func (cfg *SchedulerConfig) Validate() error {
	var errs error

	if cfg.FetchQuotes == nil {
		errs = errors.Join(errs, errors.New("fetch quotes function cannot be nil"))
	}
	if cfg.Symbols == nil {
		errs = errors.Join(errs, errors.New("symbols function cannot be nil"))
	}
	if cfg.ApplyQuote == nil {
		errs = errors.Join(errs, errors.New("apply quote function cannot be nil"))
	}
	if cfg.Limiter == nil {
		errs = errors.Join(errs, errors.New("rate limiter cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, errors.New("logger cannot be nil"))
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}

	return errs
}

// Scheduler polls quotes for monitored symbols in rotating batches, spreading
// requests across ticks to stay within the broker request budget.
type Scheduler struct {
	cfg     *SchedulerConfig
	cursor  int
	ticking atomic.Bool
}

// NewScheduler initializes a quote scheduler.
func NewScheduler(cfg *SchedulerConfig) (*Scheduler, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &Scheduler{cfg: cfg}, nil
}

// nextBatch selects the next rotating batch from the provided symbols.
func (s *Scheduler) nextBatch(symbols []string) []string {
	if len(symbols) == 0 {
		return nil
	}

	if s.cursor >= len(symbols) {
		s.cursor = 0
	}

	batch := make([]string, 0, s.cfg.BatchSize)
	for idx := 0; idx < s.cfg.BatchSize && idx < len(symbols); idx++ {
		batch = append(batch, symbols[(s.cursor+idx)%len(symbols)])
	}

	s.cursor = (s.cursor + len(batch)) % len(symbols)

	return batch
}

// Tick polls quotes for the next batch of monitored symbols. Overlapping
// ticks are skipped rather than queued.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	if !s.ticking.CompareAndSwap(false, true) {
		s.cfg.Logger.Debug().Msg("skipping overlapping poll tick")
		return
	}
	defer s.ticking.Store(false)

	batch := s.nextBatch(s.cfg.Symbols())
	if len(batch) == 0 {
		return
	}

	if !s.cfg.Limiter.Acquire(now) {
		s.cfg.Logger.Debug().Msg("request budget exhausted, deferring poll tick")
		return
	}

	quotes, err := s.cfg.FetchQuotes(ctx, batch)
	if err != nil {
		// Entries keep their last known state until the next successful poll.
		s.cfg.Logger.Error().Err(err).Strs("symbols", batch).Msg("fetching quotes")
		return
	}

	for _, symbol := range batch {
		quote, ok := quotes[symbol]
		if !ok {
			s.cfg.Logger.Warn().Str("symbol", symbol).Msg("no quote in poll response")
			continue
		}

		s.cfg.ApplyQuote(&quote, now)
	}
}
