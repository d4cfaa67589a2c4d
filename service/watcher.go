package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"

	"optionwatch/database"
	"optionwatch/engine"
	"optionwatch/fetch"
	"optionwatch/monitor"
	"optionwatch/shared"
	"optionwatch/trade"
)

// shutdownTimeout bounds the final state teardown on shutdown.
const shutdownTimeout = time.Second * 5

// WatcherConfig represents the configuration struct for the watcher service.
type WatcherConfig struct {
	// Symbols are option symbols to monitor from startup.
	Symbols []string
	// BrokerBaseURL is the broker api base url.
	BrokerBaseURL string
	// BrokerAPIKey is the broker api key.
	BrokerAPIKey string
	// DBEndpoint represents the database connection endpoint.
	DBEndpoint string
	// DBUser is the database user.
	DBUser string
	// DBPass is the database user pass.
	DBPass string
	// PollIntervalSeconds overrides the quote polling cadence when positive.
	PollIntervalSeconds int
	// BatchSize overrides the symbols quoted per poll tick when positive.
	BatchSize int
	// Cancel is the context cancellation function.
	Cancel context.CancelFunc
}

// Validate asserts the config has sane inputs.
func (cfg *WatcherConfig) Validate() error {
	var errs error

	if cfg.BrokerBaseURL == "" {
		errs = errors.Join(errs, fmt.Errorf("broker base url cannot be an empty string"))
	}
	if cfg.BrokerAPIKey == "" {
		errs = errors.Join(errs, fmt.Errorf("broker api key cannot be an empty string"))
	}
	if cfg.DBEndpoint == "" {
		errs = errors.Join(errs, fmt.Errorf("database endpoint cannot be an empty string"))
	}
	if cfg.Cancel == nil {
		errs = errors.Join(errs, fmt.Errorf("context cancellation function cannot be nil"))
	}

	return errs
}

// Watcher represents the option monitoring service.
type Watcher struct {
	cfg    *WatcherConfig
	engine *engine.Engine
	logger *zerolog.Logger
}

// NewWatcher initializes a new watcher service.
func NewWatcher(ctx context.Context, cfg *WatcherConfig) (*Watcher, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	logger := log.With().Str("service", "watcher").Logger()

	broker := fetch.NewBrokerClient(&fetch.BrokerConfig{
		BaseURL: cfg.BrokerBaseURL,
		APIKey:  cfg.BrokerAPIKey,
	})

	dbLogger := logger.With().Str("component", "database").Logger()
	db, err := database.NewDatabase(ctx, &database.DatabaseConfig{
		Endpoint: cfg.DBEndpoint,
		User:     cfg.DBUser,
		Pass:     cfg.DBPass,
		Logger:   &dbLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating database: %v", err)
	}

	tradeLogger := logger.With().Str("component", "trademanager").Logger()
	tradeMgr, err := trade.NewManager(&trade.ManagerConfig{
		Router:   broker,
		LotSizes: trade.NewLotSizes(),
		Logger:   &tradeLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating trade manager: %v", err)
	}

	engineLogger := logger.With().Str("component", "engine").Logger()
	monitorEngine, err := engine.NewEngine(&engine.EngineConfig{
		MarketData:   broker,
		Executor:     tradeMgr,
		TradeLog:     db,
		StateStore:   db,
		PollInterval: time.Duration(cfg.PollIntervalSeconds) * time.Second,
		BatchSize:    cfg.BatchSize,
		Logger:       &engineLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating monitoring engine: %v", err)
	}

	service := &Watcher{
		cfg:    cfg,
		engine: monitorEngine,
		logger: &logger,
	}

	return service, nil
}

// Engine returns the monitoring engine.
func (w *Watcher) Engine() *engine.Engine {
	return w.engine
}

// Run handles the lifecycle processes of the watcher service.
func (w *Watcher) Run(ctx context.Context) error {
	now, _, err := shared.MarketTime()
	if err != nil {
		return fmt.Errorf("fetching market time: %v", err)
	}

	err = w.engine.Start(ctx, now)
	if err != nil {
		return fmt.Errorf("starting monitoring engine: %v", err)
	}

	for _, symbol := range w.cfg.Symbols {
		_, err := w.engine.AddInstrument(ctx, &monitor.EntryConfig{
			Symbol:            symbol,
			Lots:              1,
			EntryMethod:       shared.Market,
			ExitAtMarketClose: true,
		}, now)
		if err != nil {
			w.logger.Error().Err(err).Str("symbol", symbol).Msg("monitoring startup instrument")
		}
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err = w.engine.Stop(stopCtx)
	if err != nil {
		w.logger.Error().Err(err).Msg("stopping monitoring engine")
	}

	return nil
}
