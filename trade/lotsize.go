package trade

import (
	"fmt"
	"strings"
)

// lotSizes maps index underlyings to their exchange mandated lot sizes.
var lotSizes = map[string]int{
	"NIFTY":      75,
	"BANKNIFTY":  35,
	"FINNIFTY":   65,
	"MIDCPNIFTY": 120,
	"SENSEX":     20,
}

// LotSizes resolves order quantities from exchange lot sizes.
type LotSizes struct{}

// NewLotSizes initializes a lot size resolver.
func NewLotSizes() *LotSizes {
	return &LotSizes{}
}

// QuantityFromLots converts the provided lots to an order quantity for the
// index underlying the provided symbol. The underlying is matched by the
// longest known prefix of the symbol.
func (l *LotSizes) QuantityFromLots(symbol string, lots int) (int, error) {
	if lots <= 0 {
		return 0, fmt.Errorf("lots must be positive, got %d", lots)
	}

	match := ""
	for underlying := range lotSizes {
		if strings.HasPrefix(symbol, underlying) && len(underlying) > len(match) {
			match = underlying
		}
	}

	if match == "" {
		return 0, fmt.Errorf("no known underlying for symbol %s", symbol)
	}

	return lots * lotSizes[match], nil
}
