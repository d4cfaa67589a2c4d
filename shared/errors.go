package shared

import "errors"

// Engine error taxonomy. Data layer and I/O failures are recovered locally
// (skip and retry); only add/remove preconditions surface to callers.
var (
	// ErrInsufficientData indicates too few candles were supplied for an
	// indicator computation.
	ErrInsufficientData = errors.New("insufficient candle data")
	// ErrInsufficientHistory indicates the candle look-back cap was exceeded
	// before enough trading-hour candles accumulated.
	ErrInsufficientHistory = errors.New("insufficient candle history")
	// ErrQuoteFetch indicates a transient quote fetch failure.
	ErrQuoteFetch = errors.New("quote fetch failed")
	// ErrOrderValidation indicates a malformed entry or exit order.
	ErrOrderValidation = errors.New("order validation failed")
	// ErrPersistence indicates a state snapshot or restore failure.
	ErrPersistence = errors.New("state persistence failed")
)
