package monitor

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"optionwatch/shared"
)

// EvaluatorConfig represents the crossover and exit evaluator configuration.
type EvaluatorConfig struct {
	// ExecuteEntry formats, validates and submits the entry trade for the
	// provided instrument.
	ExecuteEntry func(entry *Entry, ltp float64, now time.Time) error
	// ExecuteExit formats, validates and submits the exit trade for the
	// provided instrument, annotated with the firing rule.
	ExecuteExit func(entry *Entry, ltp float64, reason string, now time.Time) error
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Evaluator drives the per-instrument trigger state machine on each fresh
// last traded price.
type Evaluator struct {
	cfg *EvaluatorConfig
}

// NewEvaluator initializes a new trigger evaluator.
func NewEvaluator(cfg *EvaluatorConfig) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// Evaluate advances the provided entry's state machine with a fresh price.
func (v *Evaluator) Evaluate(entry *Entry, ltp float64, now time.Time) {
	switch entry.Status {
	case Waiting:
		v.evaluateCrossover(entry, ltp, now)
	case Entered:
		v.evaluateExits(entry, ltp, now)
	default:
		// do nothing.
	}
}

// evaluateCrossover detects a price crossover above the hull moving average
// and fires the entry once it is confirmed by a completed one minute candle
// holding above the average.
func (v *Evaluator) evaluateCrossover(entry *Entry, ltp float64, now time.Time) {
	if entry.HMAValue == 0 {
		// No average computed yet, nothing to cross.
		return
	}

	above := ltp > entry.HMAValue
	defer func() {
		entry.PreviousPriceAboveHMA = above
	}()

	if !entry.Observed {
		// Only record the initial state, a first observation already above
		// the average is not a transition.
		entry.Observed = true
		return
	}

	if !entry.CrossoverSignalAt.IsZero() {
		if !above {
			// Price fell back below the average before confirmation, cancel
			// the pending signal and re-arm.
			v.cfg.Logger.Info().Msgf("%s: crossover signal cancelled, ltp %.2f back below hma %.2f",
				entry.Symbol, ltp, entry.HMAValue)
			entry.CrossoverSignalAt = time.Time{}
			return
		}

		if !shared.MinuteBoundaryElapsed(entry.CrossoverSignalAt, now) {
			// Still inside the signal's minute, keep waiting.
			return
		}

		// Confirmed: one completed minute holding above the average. The
		// pending signal is cleared regardless of the entry outcome.
		entry.CrossoverSignalAt = time.Time{}

		err := v.cfg.ExecuteEntry(entry, ltp, now)
		if err != nil {
			v.cfg.Logger.Error().Msgf("%s: executing entry: %v", entry.Symbol, err)
			return
		}

		entry.Status = Entered
		entry.EntryPrice = ltp
		entry.EnteredAt = now
		return
	}

	if above && !entry.PreviousPriceAboveHMA {
		// Price newly above the average, register the crossover and wait for
		// confirmation.
		entry.CrossoverSignalAt = now
		v.cfg.Logger.Info().Msgf("%s: crossover registered, ltp %.2f above hma %.2f",
			entry.Symbol, ltp, entry.HMAValue)
	}
}

// evaluateExits checks the exit rules in priority order: target, stop loss,
// trailing stop, then time based rules. The first satisfied rule wins.
func (v *Evaluator) evaluateExits(entry *Entry, ltp float64, now time.Time) {
	reason := v.firingExitRule(entry, ltp, now)
	if reason == "" {
		return
	}

	err := v.cfg.ExecuteExit(entry, ltp, reason, now)
	if err != nil {
		// The exit is not marked complete, it is retried on the next tick.
		v.cfg.Logger.Error().Msgf("%s: executing exit: %v", entry.Symbol, err)
		return
	}

	entry.Status = Exited
}

// firingExitRule returns the justification of the first satisfied exit rule,
// or an empty string when none fire.
func (v *Evaluator) firingExitRule(entry *Entry, ltp float64, now time.Time) string {
	profit := ltp - entry.EntryPrice

	if entry.AutoExitOnTarget && entry.TargetValue() > 0 && profit >= entry.TargetValue() {
		return fmt.Sprintf("target reached: ltp %.2f is %.2f points above entry %.2f",
			ltp, profit, entry.EntryPrice)
	}

	if entry.AutoExitOnStopLoss && entry.StopLossValue() > 0 && profit <= -entry.StopLossValue() {
		return fmt.Sprintf("stop loss hit: ltp %.2f is %.2f points below entry %.2f",
			ltp, -profit, entry.EntryPrice)
	}

	if entry.TrailingStopLoss && profit > 0 {
		initialStop := entry.EntryPrice - entry.StopLossValue()
		if entry.TrailingLevel > initialStop && ltp <= entry.TrailingLevel {
			return fmt.Sprintf("trailing stop hit: ltp %.2f fell to trailing level %.2f",
				ltp, entry.TrailingLevel)
		}

		// Ratchet the trailing level up with the price.
		if level := ltp - entry.TrailingStopLossOffset; level > entry.TrailingLevel {
			entry.TrailingLevel = level
		}
	}

	if entry.TimeBasedExit && entry.ExitAfterMinutes > 0 && !entry.EnteredAt.IsZero() {
		held := now.Sub(entry.EnteredAt)
		if held >= time.Duration(entry.ExitAfterMinutes)*time.Minute {
			return fmt.Sprintf("time based exit: position held %d minutes, limit %d",
				int(held.Minutes()), entry.ExitAfterMinutes)
		}
	}

	if entry.ExitAtMarketClose && !now.Before(shared.SessionCloseAt(now)) {
		return "market close exit: session close reached"
	}

	return ""
}
