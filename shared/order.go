package shared

import "time"

// OrderSide represents the side of an order.
type OrderSide int

const (
	Buy OrderSide = iota
	Sell
)

// String stringifies the provided order side.
func (s *OrderSide) String() string {
	switch *s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "unknown"
	}
}

// EntryMethod represents the order placement method.
type EntryMethod int

const (
	Market EntryMethod = iota
	Limit
)

// String stringifies the provided entry method.
func (m *EntryMethod) String() string {
	switch *m {
	case Market:
		return "MARKET"
	case Limit:
		return "LIMIT"
	default:
		return "unknown"
	}
}

// OrderRequest represents a formatted order ready for submission.
type OrderRequest struct {
	Symbol     string
	Quantity   int
	Side       OrderSide
	Method     EntryMethod
	LimitPrice float64
	Product    string
	Tag        string
}

// OrderResult represents the broker acknowledgement for a submitted order.
// The engine does not block on fill confirmation.
type OrderResult struct {
	OrderID string
	Status  string
}

// TradeRecord represents a trade log entry. The trade log sink assigns the
// id and timestamp on record.
type TradeRecord struct {
	ID        string
	Symbol    string
	Action    OrderSide
	Quantity  int
	Price     float64
	OrderType EntryMethod
	Status    string
	PNL       float64
	Remarks   string
	CreatedOn time.Time
}
