package monitor

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"optionwatch/shared"
)

// OptionType represents the type of an option contract.
type OptionType int

const (
	Call OptionType = iota
	Put
)

// String stringifies the provided option type.
func (o *OptionType) String() string {
	switch *o {
	case Call:
		return "CE"
	case Put:
		return "PE"
	default:
		return "unknown"
	}
}

// TriggerStatus represents the lifecycle state of a monitored instrument.
type TriggerStatus int

const (
	Waiting TriggerStatus = iota
	Entered
	Exited
)

// String stringifies the provided trigger status.
func (s *TriggerStatus) String() string {
	switch *s {
	case Waiting:
		return "waiting"
	case Entered:
		return "entered"
	case Exited:
		return "exited"
	default:
		return "unknown"
	}
}

// ThresholdType represents how a target or stop loss threshold is expressed.
type ThresholdType int

const (
	Points ThresholdType = iota
	Percent
)

// String stringifies the provided threshold type.
func (t *ThresholdType) String() string {
	switch *t {
	case Points:
		return "POINTS"
	case Percent:
		return "PERCENT"
	default:
		return "unknown"
	}
}

// EntryConfig represents the user supplied configuration of a monitored
// instrument. Configuration fields survive snapshot restores.
type EntryConfig struct {
	Symbol                 string             `json:"symbol"`
	OptionType             OptionType         `json:"optionType"`
	Lots                   int                `json:"lots"`
	TargetPoints           float64            `json:"targetPoints"`
	StopLossPoints         float64            `json:"stopLossPoints"`
	TargetType             ThresholdType      `json:"targetType"`
	StopLossType           ThresholdType      `json:"stopLossType"`
	AutoExitOnTarget       bool               `json:"autoExitOnTarget"`
	AutoExitOnStopLoss     bool               `json:"autoExitOnStopLoss"`
	TrailingStopLoss       bool               `json:"trailingStopLoss"`
	TrailingStopLossOffset float64            `json:"trailingStopLossOffset"`
	TimeBasedExit          bool               `json:"timeBasedExit"`
	ExitAfterMinutes       int                `json:"exitAfterMinutes"`
	ExitAtMarketClose      bool               `json:"exitAtMarketClose"`
	EntryMethod            shared.EntryMethod `json:"entryMethod"`
}

// Validate asserts the entry config has sane inputs.
func (cfg *EntryConfig) Validate() error {
	var errs error

	if cfg.Symbol == "" {
		errs = errors.Join(errs, errors.New("symbol cannot be an empty string"))
	}
	if cfg.Lots <= 0 {
		errs = errors.Join(errs, errors.New("lots must be positive"))
	}
	if cfg.TrailingStopLoss && cfg.TrailingStopLossOffset <= 0 {
		errs = errors.Join(errs, errors.New("trailing stop loss offset must be positive"))
	}
	if cfg.TimeBasedExit && cfg.ExitAfterMinutes <= 0 && !cfg.ExitAtMarketClose {
		errs = errors.Join(errs, errors.New("time based exit requires exit minutes or market close exit"))
	}

	return errs
}

// Entry represents a monitored instrument. Exactly one entry may exist per
// symbol at any time.
type Entry struct {
	ID string `json:"id"`
	EntryConfig

	// Live state.
	Status            TriggerStatus `json:"triggerStatus"`
	CurrentLTP        float64       `json:"currentLtp"`
	HMAValue          float64       `json:"hmaValue"`
	EntryPrice        float64       `json:"entryPrice"`
	EnteredAt         time.Time     `json:"enteredAt"`
	TrailingLevel     float64       `json:"trailingLevel"`
	CrossoverSignalAt time.Time     `json:"crossoverSignalAt"`
	AddedAt           time.Time     `json:"addedAt"`

	// Volatile observation state, reset on restore to force fresh
	// observation instead of trusting a stale snapshot.
	LastUpdate            time.Time `json:"lastUpdate"`
	LastHMAUpdate         time.Time `json:"lastHmaUpdate"`
	PreviousPriceAboveHMA bool      `json:"previousPriceAboveHma"`
	Observed              bool      `json:"observed"`
}

// NewEntry initializes a monitored instrument entry from the provided config.
func NewEntry(cfg *EntryConfig, now time.Time) (*Entry, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	entry := &Entry{
		ID:          uuid.New().String(),
		EntryConfig: *cfg,
		Status:      Waiting,
		AddedAt:     now,
	}

	return entry, nil
}

// TargetValue returns the target threshold in points.
func (e *Entry) TargetValue() float64 {
	if e.TargetType == Percent {
		return e.EntryPrice * e.TargetPoints / 100
	}

	return e.TargetPoints
}

// StopLossValue returns the stop loss threshold in points.
func (e *Entry) StopLossValue() float64 {
	if e.StopLossType == Percent {
		return e.EntryPrice * e.StopLossPoints / 100
	}

	return e.StopLossPoints
}

// resetVolatile clears observation state after a snapshot restore. A pending
// crossover signal is also discarded since the observation that produced it
// is no longer trusted.
func (e *Entry) resetVolatile() {
	e.CurrentLTP = 0
	e.HMAValue = 0
	e.LastUpdate = time.Time{}
	e.LastHMAUpdate = time.Time{}
	e.PreviousPriceAboveHMA = false
	e.Observed = false
	e.CrossoverSignalAt = time.Time{}
}
