// Package market fetches coin prices and OHLC candles for display next to
// wallet balances.
package market

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Sentinel errors.
var (
	ErrInvalidRequest = errors.New("invalid market request")
	ErrRateLimited    = errors.New("market api rate limited")
	ErrUnavailable    = errors.New("market data unavailable")
)

// Prices maps coin ID to quote currency to price.
type Prices map[string]map[string]decimal.Decimal

// Price returns the price of id in vs.
func (p Prices) Price(id, vs string) (decimal.Decimal, bool) {
	quotes, ok := p[id]
	if !ok {
		return decimal.Decimal{}, false
	}
	v, ok := quotes[vs]
	return v, ok
}

func (p Prices) set(id, vs string, v decimal.Decimal) {
	quotes, ok := p[id]
	if !ok {
		quotes = make(map[string]decimal.Decimal)
		p[id] = quotes
	}
	quotes[vs] = v
}

// Candle is one OHLC bar. Time is the bar's close time.
type Candle struct {
	Time  time.Time       `json:"time"`
	Open  decimal.Decimal `json:"open"`
	High  decimal.Decimal `json:"high"`
	Low   decimal.Decimal `json:"low"`
	Close decimal.Decimal `json:"close"`
}

// PriceSource provides prices and candles.
type PriceSource interface {
	SimplePrices(ctx context.Context, ids, vs []string) (Prices, error)
	OHLC(ctx context.Context, id, vs string, days int) ([]Candle, error)
}

// ValidOHLCDays lists the candle ranges the API serves.
var ValidOHLCDays = []int{1, 7, 14, 30, 90, 180, 365}

// normalizeIDs lowercases, trims, dedups and sorts ids.
func normalizeIDs(field string, ids []string) ([]string, error) {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.ToLower(strings.TrimSpace(id))
		if id == "" {
			continue
		}
		if strings.ContainsAny(id, ",/?&") {
			return nil, fmt.Errorf("%w: %s %q", ErrInvalidRequest, field, id)
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no %s", ErrInvalidRequest, field)
	}
	sort.Strings(out)
	return out, nil
}

func checkOHLC(id, vs string, days int) (string, string, error) {
	ids, err := normalizeIDs("coin id", []string{id})
	if err != nil {
		return "", "", err
	}
	vss, err := normalizeIDs("vs currency", []string{vs})
	if err != nil {
		return "", "", err
	}
	for _, d := range ValidOHLCDays {
		if d == days {
			return ids[0], vss[0], nil
		}
	}
	return "", "", fmt.Errorf("%w: days must be one of %v", ErrInvalidRequest, ValidOHLCDays)
}
