package trade

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"optionwatch/shared"
)

// DefaultProduct is the broker product type used for all orders. Positions
// are intraday only.
const DefaultProduct = "INTRADAY"

// ManagerConfig represents the trade manager configuration.
type ManagerConfig struct {
	// Router routes validated orders to the broker.
	Router shared.OrderRouter
	// LotSizes resolves order quantities from lots.
	LotSizes shared.LotSizeResolver
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sanely initializes the trade manager.
func (cfg *ManagerConfig) Validate() error {
	var errs error

	if cfg.Router == nil {
		errs = errors.Join(errs, errors.New("order router cannot be nil"))
	}
	if cfg.LotSizes == nil {
		errs = errors.Join(errs, errors.New("lot size resolver cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, errors.New("logger cannot be nil"))
	}

	return errs
}

// Manager formats, validates and submits orders.
type Manager struct {
	cfg *ManagerConfig
}

// NewManager initializes a trade manager.
func NewManager(cfg *ManagerConfig) (*Manager, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &Manager{cfg: cfg}, nil
}

// Format creates an order request from the provided trade details.
func (m *Manager) Format(symbol string, lots int, side shared.OrderSide, method shared.EntryMethod, limitPrice float64, product string, tag string) (*shared.OrderRequest, error) {
	quantity, err := m.cfg.LotSizes.QuantityFromLots(symbol, lots)
	if err != nil {
		return nil, fmt.Errorf("resolving quantity for %s: %w", symbol, err)
	}

	req := &shared.OrderRequest{
		Symbol:     symbol,
		Quantity:   quantity,
		Side:       side,
		Method:     method,
		LimitPrice: limitPrice,
		Product:    product,
		Tag:        tag,
	}

	return req, nil
}

// Validate asserts the provided order request is well formed.
func (m *Manager) Validate(req *shared.OrderRequest) error {
	var errs error

	if req.Symbol == "" {
		errs = errors.Join(errs, errors.New("symbol cannot be an empty string"))
	}
	if req.Quantity <= 0 {
		errs = errors.Join(errs, errors.New("quantity must be positive"))
	}
	if req.Method == shared.Limit && req.LimitPrice <= 0 {
		errs = errors.Join(errs, errors.New("limit orders require a positive limit price"))
	}

	if errs != nil {
		return fmt.Errorf("%w: %w", shared.ErrOrderValidation, errs)
	}

	return nil
}

// Submit validates and submits the provided order request. The broker
// acknowledgement is returned without blocking on fill confirmation.
func (m *Manager) Submit(ctx context.Context, req *shared.OrderRequest) (*shared.OrderResult, error) {
	err := m.Validate(req)
	if err != nil {
		return nil, err
	}

	result, err := m.cfg.Router.PlaceOrder(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("placing %s order for %s: %w", req.Side.String(), req.Symbol, err)
	}

	m.cfg.Logger.Info().Str("symbol", req.Symbol).Str("side", req.Side.String()).
		Int("quantity", req.Quantity).Str("orderId", result.OrderID).
		Msg("order submitted")

	return result, nil
}

// PNL returns the realized profit or loss for a round trip at the provided
// quantity.
func PNL(entryPrice float64, exitPrice float64, quantity int) float64 {
	return (exitPrice - entryPrice) * float64(quantity)
}
