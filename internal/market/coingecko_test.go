package market

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *CoinGecko {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewCoinGecko(srv.URL, "test-key", 5*time.Second)
}

func TestCoinGecko_SimplePrices(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/simple/price" {
			t.Errorf("path = %s, want /simple/price", r.URL.Path)
		}
		if got := r.URL.Query().Get("ids"); got != "bitcoin,ethereum" {
			t.Errorf("ids = %q, want sorted bitcoin,ethereum", got)
		}
		if got := r.URL.Query().Get("vs_currencies"); got != "eur,usd" {
			t.Errorf("vs_currencies = %q", got)
		}
		if got := r.Header.Get("x-cg-demo-api-key"); got != "test-key" {
			t.Errorf("api key header = %q", got)
		}
		w.Write([]byte(`{"bitcoin":{"usd":67187.3358,"eur":61000.1},"ethereum":{"usd":3456.78,"eur":3100}}`))
	})

	prices, err := c.SimplePrices(context.Background(), []string{"Ethereum", "bitcoin", "bitcoin"}, []string{"usd", "EUR"})
	if err != nil {
		t.Fatalf("SimplePrices() error: %v", err)
	}
	btc, ok := prices.Price("bitcoin", "usd")
	if !ok || !btc.Equal(decimal.RequireFromString("67187.3358")) {
		t.Errorf("bitcoin/usd = %s, %v", btc, ok)
	}
	eth, ok := prices.Price("ethereum", "eur")
	if !ok || !eth.Equal(decimal.NewFromInt(3100)) {
		t.Errorf("ethereum/eur = %s, %v", eth, ok)
	}
}

func TestCoinGecko_OHLC(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/bitcoin/ohlc" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("days") != "7" || r.URL.Query().Get("vs_currency") != "usd" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		w.Write([]byte(`[[1709395200000,61942,62211,61721,61845],[1709409600000,61845,62500.5,61800,62400]]`))
	})

	candles, err := c.OHLC(context.Background(), "bitcoin", "usd", 7)
	if err != nil {
		t.Fatalf("OHLC() error: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("got %d candles, want 2", len(candles))
	}
	if !candles[0].Time.Equal(time.UnixMilli(1709395200000)) {
		t.Errorf("Time = %v", candles[0].Time)
	}
	if !candles[1].High.Equal(decimal.RequireFromString("62500.5")) {
		t.Errorf("High = %s, want 62500.5", candles[1].High)
	}
}

func TestCoinGecko_OHLC_BadRow(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[[1709395200000,61942,62211]]`))
	})
	if _, err := c.OHLC(context.Background(), "bitcoin", "usd", 1); err == nil {
		t.Error("OHLC() accepted a short row")
	}
}

func TestCoinGecko_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		sentinel error
	}{
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited},
		{"server error", http.StatusInternalServerError, ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error":"nope"}`))
			})
			_, err := c.SimplePrices(context.Background(), []string{"bitcoin"}, []string{"usd"})
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("error = %v, want %v", err, tt.sentinel)
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) || apiErr.Status != tt.status {
				t.Errorf("error = %v, want *APIError with status %d", err, tt.status)
			}
		})
	}
}

func TestCoinGecko_InvalidRequests(t *testing.T) {
	called := false
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	ctx := context.Background()

	if _, err := c.SimplePrices(ctx, nil, []string{"usd"}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("no ids error = %v", err)
	}
	if _, err := c.SimplePrices(ctx, []string{"bit,coin"}, []string{"usd"}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("comma id error = %v", err)
	}
	if _, err := c.OHLC(ctx, "bitcoin", "usd", 3); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("bad days error = %v", err)
	}
	if _, err := c.OHLC(ctx, "", "usd", 7); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("empty id error = %v", err)
	}
	if called {
		t.Error("invalid request reached the server")
	}
}

func TestCoinGecko_ContextCanceled(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.SimplePrices(ctx, []string{"bitcoin"}, []string{"usd"}); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
