package market

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	klog "github.com/Klingon-tech/coinvault/internal/log"
)

type priceKey struct{ id, vs string }

type priceEntry struct {
	value   decimal.Decimal
	fetched time.Time
}

type candleKey struct {
	id, vs string
	days   int
}

type candleEntry struct {
	candles []Candle
	fetched time.Time
}

// Cache is a PriceSource that keeps results of another source for a TTL.
// When the source fails, expired entries are served instead of an error.
type Cache struct {
	src PriceSource
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	prices  map[priceKey]priceEntry
	candles map[candleKey]candleEntry
}

// NewCache wraps src. A zero ttl fetches on every call and only uses the
// cache as a fallback.
func NewCache(src PriceSource, ttl time.Duration) *Cache {
	return &Cache{
		src:     src,
		ttl:     ttl,
		now:     time.Now,
		prices:  make(map[priceKey]priceEntry),
		candles: make(map[candleKey]candleEntry),
	}
}

func (c *Cache) fresh(fetched time.Time) bool {
	return c.now().Sub(fetched) < c.ttl
}

// SimplePrices returns cached prices, fetching only coins with a missing
// or expired quote.
func (c *Cache) SimplePrices(ctx context.Context, ids, vs []string) (Prices, error) {
	ids, err := normalizeIDs("coin id", ids)
	if err != nil {
		return nil, err
	}
	vs, err = normalizeIDs("vs currency", vs)
	if err != nil {
		return nil, err
	}

	out := make(Prices)
	var stale []string
	c.mu.RLock()
	for _, id := range ids {
		complete := true
		for _, cur := range vs {
			e, ok := c.prices[priceKey{id, cur}]
			if !ok || !c.fresh(e.fetched) {
				complete = false
				continue
			}
			out.set(id, cur, e.value)
		}
		if !complete {
			stale = append(stale, id)
		}
	}
	c.mu.RUnlock()

	if len(stale) == 0 {
		return out, nil
	}

	fetched, err := c.Refresh(ctx, stale, vs)
	if err != nil {
		served := c.fillStale(out, stale, vs)
		if served == 0 && len(out) == 0 {
			return nil, err
		}
		klog.Market.Warn().Err(err).Int("stale", served).Msg("Serving cached prices")
		return out, nil
	}
	for id, quotes := range fetched {
		for cur, v := range quotes {
			out.set(id, cur, v)
		}
	}
	return out, nil
}

// fillStale copies expired entries for ids into out and returns how many
// it copied.
func (c *Cache) fillStale(out Prices, ids, vs []string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, id := range ids {
		for _, cur := range vs {
			if _, ok := out.Price(id, cur); ok {
				continue
			}
			if e, ok := c.prices[priceKey{id, cur}]; ok {
				out.set(id, cur, e.value)
				n++
			}
		}
	}
	return n
}

// Refresh fetches prices from the source regardless of the TTL and stores
// them.
func (c *Cache) Refresh(ctx context.Context, ids, vs []string) (Prices, error) {
	prices, err := c.src.SimplePrices(ctx, ids, vs)
	if err != nil {
		return nil, fmt.Errorf("refresh prices: %w", err)
	}
	now := c.now()
	c.mu.Lock()
	for id, quotes := range prices {
		for cur, v := range quotes {
			c.prices[priceKey{id, cur}] = priceEntry{value: v, fetched: now}
		}
	}
	c.mu.Unlock()
	return prices, nil
}

// OHLC returns cached candles for the range or fetches them.
func (c *Cache) OHLC(ctx context.Context, id, vs string, days int) ([]Candle, error) {
	id, vs, err := checkOHLC(id, vs, days)
	if err != nil {
		return nil, err
	}
	key := candleKey{id, vs, days}

	c.mu.RLock()
	e, ok := c.candles[key]
	c.mu.RUnlock()
	if ok && c.fresh(e.fetched) {
		return append([]Candle(nil), e.candles...), nil
	}

	candles, err := c.src.OHLC(ctx, id, vs, days)
	if err != nil {
		if ok {
			klog.Market.Warn().Err(err).Str("id", id).Int("days", days).Msg("Serving cached candles")
			return append([]Candle(nil), e.candles...), nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.candles[key] = candleEntry{candles: candles, fetched: c.now()}
	c.mu.Unlock()
	return append([]Candle(nil), candles...), nil
}

// Len returns the number of cached quotes and candle series.
func (c *Cache) Len() (prices, series int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.prices), len(c.candles)
}
