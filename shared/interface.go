package shared

import (
	"context"
	"time"
)

// MarketDataProvider defines the requirements for fetching market data.
type MarketDataProvider interface {
	// FetchQuotes fetches the last traded prices for the provided symbols in
	// one bulk request.
	FetchQuotes(ctx context.Context, symbols []string) (map[string]Quote, error)
	// FetchHistoricalCandles fetches historical candles for the provided
	// symbol and date range.
	FetchHistoricalCandles(ctx context.Context, symbol string, timeframe Timeframe, start time.Time, end time.Time) ([]Candlestick, error)
}

// OrderRouter defines the requirements for routing orders to the broker.
type OrderRouter interface {
	// PlaceOrder submits the provided order request.
	PlaceOrder(ctx context.Context, req *OrderRequest) (*OrderResult, error)
}

// OrderExecutionService defines the requirements for formatting, validating
// and submitting orders.
type OrderExecutionService interface {
	// Format creates an order request from the provided trade details.
	Format(symbol string, lots int, side OrderSide, method EntryMethod, limitPrice float64, product string, tag string) (*OrderRequest, error)
	// Validate asserts the provided order request is well formed.
	Validate(req *OrderRequest) error
	// Submit validates and submits the provided order request.
	Submit(ctx context.Context, req *OrderRequest) (*OrderResult, error)
}

// TradeLogSink defines the requirements for recording trades.
type TradeLogSink interface {
	// Record persists the provided trade record, assigning its id and timestamp.
	Record(ctx context.Context, record *TradeRecord) (*TradeRecord, error)
}

// StateStore defines the requirements for persisting engine state snapshots.
type StateStore interface {
	// Save persists the provided serialized snapshot.
	Save(ctx context.Context, snapshot []byte) error
	// Load fetches the persisted snapshot, returning nil when none exists.
	Load(ctx context.Context) ([]byte, error)
	// Clear removes the persisted snapshot.
	Clear(ctx context.Context) error
}

// LotSizeResolver defines the requirements for resolving index lot sizes.
type LotSizeResolver interface {
	// QuantityFromLots converts the provided lots to an order quantity for
	// the index underlying the provided symbol.
	QuantityFromLots(symbol string, lots int) (int, error)
}
