package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"optionwatch/fetch"
	"optionwatch/indicator"
	"optionwatch/market"
	"optionwatch/monitor"
	"optionwatch/shared"
	"optionwatch/trade"
)

const (
	// pollInterval is the quote polling cadence.
	pollInterval = time.Second * 2
	// refreshCheckInterval is the cadence for candle refresh checks.
	refreshCheckInterval = time.Second * 30
	// handoffRemovalDelay is how long an entered instrument without auto exit
	// rules lingers before its position is handed off to the trader.
	handoffRemovalDelay = time.Second * 30
	// persistTimeout bounds snapshot writes to the state store.
	persistTimeout = time.Second * 5

	// entryTag annotates orders originating from crossover triggers.
	entryTag = "hma-crossover"
)

// EngineConfig represents the monitoring engine configuration.
type EngineConfig struct {
	// MarketData fetches quotes and historical candles.
	MarketData shared.MarketDataProvider
	// Executor formats, validates and submits orders.
	Executor shared.OrderExecutionService
	// TradeLog records executed trades.
	TradeLog shared.TradeLogSink
	// StateStore persists engine state snapshots.
	StateStore shared.StateStore
	// PollInterval overrides the quote polling cadence when positive.
	PollInterval time.Duration
	// BatchSize overrides the symbols quoted per poll tick when positive.
	BatchSize int
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sanely initializes the engine.
func (cfg *EngineConfig) Validate() error {
	var errs error

	if cfg.MarketData == nil {
		errs = errors.Join(errs, errors.New("market data provider cannot be nil"))
	}
	if cfg.Executor == nil {
		errs = errors.Join(errs, errors.New("order execution service cannot be nil"))
	}
	if cfg.TradeLog == nil {
		errs = errors.Join(errs, errors.New("trade log sink cannot be nil"))
	}
	if cfg.StateStore == nil {
		errs = errors.Join(errs, errors.New("state store cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, errors.New("logger cannot be nil"))
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = pollInterval
	}

	return errs
}

// Engine drives option monitoring: it keeps candle histories and hull moving
// averages current, polls quotes in rate limited batches and fires entry and
// exit triggers per instrument.
type Engine struct {
	cfg       *EngineConfig
	store     *market.Store
	registry  *monitor.Registry
	evaluator *monitor.Evaluator
	scheduler *fetch.Scheduler
	jobs      gocron.Scheduler
	running   atomic.Bool
	ctx       context.Context
}

// NewEngine initializes the monitoring engine.
func NewEngine(cfg *EngineConfig) (*Engine, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	e := &Engine{cfg: cfg}

	e.store = market.NewStore(&market.StoreConfig{
		Provider:   cfg.MarketData,
		Period:     indicator.HMAPeriod,
		WindowSize: indicator.RequiredCandles,
		Logger:     cfg.Logger,
	})

	e.registry = monitor.NewRegistry(&monitor.RegistryConfig{
		Persist: e.persistSnapshot,
		Logger:  cfg.Logger,
	})

	e.evaluator = monitor.NewEvaluator(&monitor.EvaluatorConfig{
		ExecuteEntry: e.executeEntry,
		ExecuteExit:  e.executeExit,
		Logger:       cfg.Logger,
	})

	e.scheduler, err = fetch.NewScheduler(&fetch.SchedulerConfig{
		FetchQuotes: cfg.MarketData.FetchQuotes,
		Symbols:     e.registry.Symbols,
		ApplyQuote:  e.applyQuote,
		BatchSize:   cfg.BatchSize,
		Limiter:     fetch.NewRateLimiter(),
		Logger:      cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	return e, nil
}

// persistSnapshot serializes the provided registry snapshot to the state
// store. Persistence failures are logged, in-memory state stays authoritative.
func (e *Engine) persistSnapshot(snapshot *monitor.RegistrySnapshot) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		e.cfg.Logger.Error().Err(err).Msg("serializing registry snapshot")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	err = e.cfg.StateStore.Save(ctx, data)
	if err != nil {
		e.cfg.Logger.Error().Err(err).Msg("saving registry snapshot")
	}
}

// restore repopulates the registry from the persisted snapshot, if any.
func (e *Engine) restore(ctx context.Context, now time.Time) {
	data, err := e.cfg.StateStore.Load(ctx)
	if err != nil {
		e.cfg.Logger.Error().Err(err).Msg("loading registry snapshot")
		return
	}
	if data == nil {
		return
	}

	var snapshot monitor.RegistrySnapshot
	err = json.Unmarshal(data, &snapshot)
	if err != nil {
		e.cfg.Logger.Error().Err(err).Msg("deserializing registry snapshot")
		return
	}

	restored := e.registry.Restore(&snapshot, now)
	if restored == 0 {
		return
	}

	// Restored entries need fresh candle histories before evaluation.
	for _, entry := range e.registry.Entries() {
		err = e.store.Track(ctx, entry.Symbol, now)
		if err != nil {
			e.cfg.Logger.Error().Err(err).Str("symbol", entry.Symbol).
				Msg("dropping restored instrument without candle history")
			e.registry.Remove(entry.ID)
		}
	}

	e.cfg.Logger.Info().Int("restored", e.registry.Len()).Msg("restored monitored instruments")
}

// Start restores persisted state and begins polling. It is idempotent while
// already running.
func (e *Engine) Start(ctx context.Context, now time.Time) error {
	if !e.running.CompareAndSwap(false, true) {
		return errors.New("engine already running")
	}

	e.ctx = ctx
	e.restore(ctx, now)

	jobs, err := gocron.NewScheduler()
	if err != nil {
		e.running.Store(false)
		return fmt.Errorf("creating job scheduler: %w", err)
	}

	_, err = jobs.NewJob(gocron.DurationJob(e.cfg.PollInterval), gocron.NewTask(e.pollTick))
	if err != nil {
		e.running.Store(false)
		return fmt.Errorf("creating poll job: %w", err)
	}

	_, err = jobs.NewJob(gocron.DurationJob(refreshCheckInterval), gocron.NewTask(e.refreshTick))
	if err != nil {
		e.running.Store(false)
		return fmt.Errorf("creating refresh job: %w", err)
	}

	e.jobs = jobs
	jobs.Start()

	e.cfg.Logger.Info().Msg("monitoring engine started")

	return nil
}

// Stop halts polling and discards monitoring state. Positions already entered
// remain with the broker.
func (e *Engine) Stop(ctx context.Context) error {
	if !e.running.CompareAndSwap(true, false) {
		return nil
	}

	err := e.jobs.Shutdown()
	if err != nil {
		e.cfg.Logger.Error().Err(err).Msg("shutting down job scheduler")
	}

	for _, symbol := range e.registry.Symbols() {
		e.store.Untrack(symbol)
	}
	e.registry.Clear()

	err = e.cfg.StateStore.Clear(ctx)
	if err != nil {
		e.cfg.Logger.Error().Err(err).Msg("clearing persisted snapshot")
	}

	e.cfg.Logger.Info().Msg("monitoring engine stopped")

	return nil
}

// IsRunning reports whether the engine is polling.
func (e *Engine) IsRunning() bool {
	return e.running.Load()
}

// AddInstrument begins monitoring the instrument described by the provided
// config.
func (e *Engine) AddInstrument(ctx context.Context, cfg *monitor.EntryConfig, now time.Time) (*monitor.Entry, error) {
	entry, err := monitor.NewEntry(cfg, now)
	if err != nil {
		return nil, err
	}

	if existing := e.registry.Find(cfg.Symbol); existing != nil {
		return nil, fmt.Errorf("%s is already being monitored", cfg.Symbol)
	}

	err = e.store.Track(ctx, cfg.Symbol, now)
	if err != nil {
		return nil, fmt.Errorf("warming up candle history for %s: %w", cfg.Symbol, err)
	}

	err = e.registry.Add(entry)
	if err != nil {
		e.store.Untrack(cfg.Symbol)
		return nil, err
	}

	e.cfg.Logger.Info().Str("symbol", cfg.Symbol).Str("id", entry.ID).Msg("monitoring instrument")

	return entry, nil
}

// RemoveInstrument stops monitoring the instrument with the provided id.
func (e *Engine) RemoveInstrument(id string) bool {
	var symbol string
	for _, entry := range e.registry.Entries() {
		if entry.ID == id {
			symbol = entry.Symbol
			break
		}
	}

	removed := e.registry.Remove(id)
	if removed && symbol != "" {
		e.store.Untrack(symbol)
	}

	return removed
}

// ListMonitored returns all monitored instruments.
func (e *Engine) ListMonitored() []*monitor.Entry {
	return e.registry.Entries()
}

// pollTick polls the next batch of quotes during market hours.
func (e *Engine) pollTick() {
	now, _, err := shared.MarketTime()
	if err != nil {
		e.cfg.Logger.Error().Err(err).Msg("fetching market time")
		return
	}

	if !shared.IsMarketOpen(now) {
		return
	}

	e.scheduler.Tick(e.ctx, now)
}

// refreshTick refreshes candle histories on five minute boundaries.
func (e *Engine) refreshTick() {
	now, _, err := shared.MarketTime()
	if err != nil {
		e.cfg.Logger.Error().Err(err).Msg("fetching market time")
		return
	}

	e.store.MaybeRefresh(e.ctx, now)
}

// applyQuote updates the instrument monitoring the quoted symbol and runs its
// trigger evaluation.
func (e *Engine) applyQuote(quote *shared.Quote, now time.Time) {
	// Quotes arriving after a stop are discarded.
	if !e.running.Load() {
		return
	}

	entry := e.registry.Find(quote.Symbol)
	if entry == nil {
		return
	}

	entry.CurrentLTP = quote.LTP
	entry.LastUpdate = now

	hma, err := e.store.HMA(quote.Symbol)
	if err != nil {
		e.cfg.Logger.Error().Err(err).Str("symbol", quote.Symbol).Msg("fetching hull moving average")
		return
	}

	entry.HMAValue = hma.Current
	entry.LastHMAUpdate = hma.ComputedAt

	beforeStatus := entry.Status
	beforeTrailing := entry.TrailingLevel
	e.evaluator.Evaluate(entry, quote.LTP, now)

	// The trailing level ratchet is position state that survives a restore,
	// so its changes snapshot alongside status transitions.
	if entry.Status != beforeStatus || entry.TrailingLevel != beforeTrailing {
		e.registry.Persist()
	}
}

// hasAutoExit reports whether the provided instrument has any automatic exit
// rule configured.
func hasAutoExit(entry *monitor.Entry) bool {
	return entry.AutoExitOnTarget || entry.AutoExitOnStopLoss || entry.TrailingStopLoss ||
		entry.TimeBasedExit || entry.ExitAtMarketClose
}

// executeEntry formats, validates and submits the entry trade for the
// provided instrument.
func (e *Engine) executeEntry(entry *monitor.Entry, ltp float64, now time.Time) error {
	var limitPrice float64
	if entry.EntryMethod == shared.Limit {
		limitPrice = ltp
	}

	req, err := e.cfg.Executor.Format(entry.Symbol, entry.Lots, shared.Buy, entry.EntryMethod,
		limitPrice, trade.DefaultProduct, entryTag)
	if err != nil {
		return fmt.Errorf("formatting entry order: %w", err)
	}

	result, err := e.cfg.Executor.Submit(e.ctx, req)
	if err != nil {
		return fmt.Errorf("submitting entry order: %w", err)
	}

	_, err = e.cfg.TradeLog.Record(e.ctx, &shared.TradeRecord{
		Symbol:    entry.Symbol,
		Action:    shared.Buy,
		Quantity:  req.Quantity,
		Price:     ltp,
		OrderType: entry.EntryMethod,
		Status:    result.Status,
		Remarks:   "hull moving average crossover entry",
	})
	if err != nil {
		// The order is already with the broker, a trade log failure must not
		// unwind the entry.
		e.cfg.Logger.Error().Err(err).Str("symbol", entry.Symbol).Msg("recording entry trade")
	}

	// Instruments without auto exit rules are handed off to the trader after
	// a short grace period for inspection.
	if !hasAutoExit(entry) {
		time.AfterFunc(handoffRemovalDelay, func() {
			if e.RemoveInstrument(entry.ID) {
				e.cfg.Logger.Info().Str("symbol", entry.Symbol).
					Msg("position handed off, monitoring removed")
			}
		})
	}

	return nil
}

// executeExit formats, validates and submits the exit trade for the provided
// instrument, then retires it from monitoring.
func (e *Engine) executeExit(entry *monitor.Entry, ltp float64, reason string, now time.Time) error {
	req, err := e.cfg.Executor.Format(entry.Symbol, entry.Lots, shared.Sell, shared.Market,
		0, trade.DefaultProduct, entryTag)
	if err != nil {
		return fmt.Errorf("formatting exit order: %w", err)
	}

	result, err := e.cfg.Executor.Submit(e.ctx, req)
	if err != nil {
		return fmt.Errorf("submitting exit order: %w", err)
	}

	pnl := trade.PNL(entry.EntryPrice, ltp, req.Quantity)

	_, err = e.cfg.TradeLog.Record(e.ctx, &shared.TradeRecord{
		Symbol:    entry.Symbol,
		Action:    shared.Sell,
		Quantity:  req.Quantity,
		Price:     ltp,
		OrderType: shared.Market,
		Status:    result.Status,
		PNL:       pnl,
		Remarks:   reason,
	})
	if err != nil {
		e.cfg.Logger.Error().Err(err).Str("symbol", entry.Symbol).Msg("recording exit trade")
	}

	e.cfg.Logger.Info().Str("symbol", entry.Symbol).Float64("pnl", pnl).
		Str("reason", reason).Msg("position exited")

	time.AfterFunc(handoffRemovalDelay, func() {
		e.RemoveInstrument(entry.ID)
	})

	return nil
}
