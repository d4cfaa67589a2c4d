package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"optionwatch/shared"
)

const (
	quotesPath     = "/v1/market/quotes"
	historicalPath = "/v1/market/candles"
	ordersPath     = "/v1/orders"

	// candleDateLayout is the timestamp format used by the broker api.
	candleDateLayout = "2006-01-02T15:04:05-07:00"
)

// BrokerConfig represents the configuration for the broker client.
type BrokerConfig struct {
	// BaseURL is the broker api base url.
	BaseURL string
	// APIKey is the broker api key.
	APIKey string
}

// BrokerClient represents the broker REST api client. It serves both market
// data fetches and order routing.
type BrokerClient struct {
	cfg   *BrokerConfig
	httpc http.Client
}

// Ensure the BrokerClient implements the MarketDataProvider and OrderRouter
// interfaces.
var _ shared.MarketDataProvider = (*BrokerClient)(nil)
var _ shared.OrderRouter = (*BrokerClient)(nil)

// NewBrokerClient instantiates a new broker client.
func NewBrokerClient(cfg *BrokerConfig) *BrokerClient {
	return &BrokerClient{
		cfg:   cfg,
		httpc: http.Client{Timeout: time.Second * 5},
	}
}

// formURL creates full urls including parameters for the api. The poll and
// refresh jobs call the client from separate goroutines, so the url is built
// on a local builder rather than shared client state.
func (c *BrokerClient) formURL(path string, params string) string {
	var sb strings.Builder
	sb.Grow(len(c.cfg.BaseURL) + len(path) + len(params) + 1)
	sb.WriteString(c.cfg.BaseURL)
	sb.WriteString(path)
	sb.WriteString("?")
	sb.WriteString(params)

	return sb.String()
}

// do executes the provided request and returns the response body.
func (c *BrokerClient) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.cfg.APIKey))
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, gjson.GetBytes(body, "message").String())
	}

	return body, nil
}

// FetchQuotes fetches the last traded prices for the provided symbols in one
// bulk request.
func (c *BrokerClient) FetchQuotes(ctx context.Context, symbols []string) (map[string]shared.Quote, error) {
	params := url.Values{}
	params.Add("symbols", strings.Join(symbols, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.formURL(quotesPath, params.Encode()), nil)
	if err != nil {
		return nil, fmt.Errorf("creating quotes request: %w", err)
	}

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching quotes: %w", shared.ErrQuoteFetch, err)
	}

	quotes := make(map[string]shared.Quote, len(symbols))
	gjson.GetBytes(body, "data").ForEach(func(key, value gjson.Result) bool {
		quote := shared.Quote{
			Symbol: key.String(),
			LTP:    value.Get("ltp").Float(),
		}

		dt, err := time.Parse(candleDateLayout, value.Get("timestamp").String())
		if err == nil {
			quote.Date = dt
		}

		quotes[quote.Symbol] = quote
		return true
	})

	return quotes, nil
}

// ParseCandlesticks parses candlesticks from the provided json data.
func (c *BrokerClient) ParseCandlesticks(data []gjson.Result, symbol string, timeframe shared.Timeframe) ([]shared.Candlestick, error) {
	candles := make([]shared.Candlestick, 0, len(data))

	for idx := range data {
		var candle shared.Candlestick

		candle.Open = data[idx].Get("open").Float()
		candle.High = data[idx].Get("high").Float()
		candle.Low = data[idx].Get("low").Float()
		candle.Close = data[idx].Get("close").Float()
		candle.Volume = data[idx].Get("volume").Float()

		candle.Symbol = symbol
		candle.Timeframe = timeframe

		dt, err := time.Parse(candleDateLayout, data[idx].Get("timestamp").String())
		if err != nil {
			return nil, fmt.Errorf("parsing candlestick date: %w", err)
		}

		candle.Date = dt
		candles = append(candles, candle)
	}

	return candles, nil
}

// FetchHistoricalCandles fetches historical candles for the provided symbol
// and date range.
func (c *BrokerClient) FetchHistoricalCandles(ctx context.Context, symbol string, timeframe shared.Timeframe, start time.Time, end time.Time) ([]shared.Candlestick, error) {
	params := url.Values{}
	params.Add("symbol", symbol)
	params.Add("interval", timeframe.String())
	params.Add("from", start.Format(candleDateLayout))
	if !end.IsZero() {
		params.Add("to", end.Format(candleDateLayout))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.formURL(historicalPath, params.Encode()), nil)
	if err != nil {
		return nil, fmt.Errorf("creating candles request: %w", err)
	}

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching historical data (%s) for %s: %w", timeframe.String(), symbol, err)
	}

	data := gjson.GetBytes(body, "data.candles").Array()

	return c.ParseCandlesticks(data, symbol, timeframe)
}

// PlaceOrder submits the provided order request.
func (c *BrokerClient) PlaceOrder(ctx context.Context, order *shared.OrderRequest) (*shared.OrderResult, error) {
	payload := fmt.Sprintf(`{"symbol":%q,"quantity":%d,"side":%q,"orderType":%q,"price":%.2f,"product":%q,"tag":%q}`,
		order.Symbol, order.Quantity, order.Side.String(), order.Method.String(),
		order.LimitPrice, order.Product, order.Tag)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+ordersPath, strings.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("placing order for %s: %w", order.Symbol, err)
	}

	result := &shared.OrderResult{
		OrderID: gjson.GetBytes(body, "data.orderId").String(),
		Status:  gjson.GetBytes(body, "data.status").String(),
	}

	return result, nil
}
