package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	klog "github.com/Klingon-tech/coinvault/internal/log"
)

// DefaultCoinGeckoURL is the public API base URL.
const DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3"

// maxResponseSize caps API response bodies.
const maxResponseSize = 4 << 20

// APIError is a non-200 response from the API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("coingecko: status %d: %s", e.Status, e.Body)
}

func (e *APIError) Unwrap() error {
	if e.Status == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	return ErrUnavailable
}

// CoinGecko is a PriceSource backed by the CoinGecko REST API.
type CoinGecko struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewCoinGecko creates a client. An empty baseURL selects the public API.
func NewCoinGecko(baseURL, apiKey string, timeout time.Duration) *CoinGecko {
	if baseURL == "" {
		baseURL = DefaultCoinGeckoURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &CoinGecko{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// SimplePrices returns the price of every id in every vs currency. Coins
// the API does not know are absent from the result.
func (c *CoinGecko) SimplePrices(ctx context.Context, ids, vs []string) (Prices, error) {
	ids, err := normalizeIDs("coin id", ids)
	if err != nil {
		return nil, err
	}
	vs, err = normalizeIDs("vs currency", vs)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", strings.Join(vs, ","))
	q.Set("precision", "full")

	var raw map[string]map[string]decimal.Decimal
	if err := c.get(ctx, "/simple/price", q, &raw); err != nil {
		return nil, err
	}

	out := make(Prices, len(raw))
	for id, quotes := range raw {
		for cur, v := range quotes {
			out.set(id, cur, v)
		}
	}
	return out, nil
}

// OHLC returns candles for id quoted in vs over the last days days.
func (c *CoinGecko) OHLC(ctx context.Context, id, vs string, days int) ([]Candle, error) {
	id, vs, err := checkOHLC(id, vs, days)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("vs_currency", vs)
	q.Set("days", strconv.Itoa(days))

	var raw [][]decimal.Decimal
	if err := c.get(ctx, "/coins/"+url.PathEscape(id)+"/ohlc", q, &raw); err != nil {
		return nil, err
	}

	candles := make([]Candle, 0, len(raw))
	for i, row := range raw {
		if len(row) != 5 {
			return nil, fmt.Errorf("coingecko: ohlc row %d has %d fields", i, len(row))
		}
		candles = append(candles, Candle{
			Time:  time.UnixMilli(row[0].IntPart()).UTC(),
			Open:  row[1],
			High:  row[2],
			Low:   row[3],
			Close: row[4],
		})
	}
	return candles, nil
}

func (c *CoinGecko) get(ctx context.Context, path string, q url.Values, out any) error {
	defer klog.Benchmark("coingecko " + path)()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("coingecko: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("coingecko: %w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("coingecko: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		klog.Market.Warn().Int("status", resp.StatusCode).Str("path", path).Msg("CoinGecko request failed")
		msg := strings.TrimSpace(string(body))
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return &APIError{Status: resp.StatusCode, Body: msg}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("coingecko: decode %s: %w", path, err)
	}
	return nil
}
