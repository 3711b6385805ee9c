package market

import (
	"context"
	"errors"
	"sync"
	"time"

	klog "github.com/Klingon-tech/coinvault/internal/log"
)

// ErrRefresherRunning is returned by Start on a running refresher.
var ErrRefresherRunning = errors.New("refresher already running")

// Refresher keeps a Cache warm by refreshing a fixed set of coins on an
// interval. It runs only between Start and Stop.
type Refresher struct {
	cache    *Cache
	ids      []string
	vs       []string
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRefresher creates a stopped refresher.
func NewRefresher(cache *Cache, ids, vs []string, interval time.Duration) *Refresher {
	return &Refresher{
		cache:    cache,
		ids:      append([]string(nil), ids...),
		vs:       append([]string(nil), vs...),
		interval: interval,
	}
}

// Start refreshes once immediately and then every interval until Stop is
// called or ctx is done.
func (r *Refresher) Start(ctx context.Context) error {
	if r.interval <= 0 {
		return errors.New("refresh interval must be positive")
	}
	if _, err := normalizeIDs("coin id", r.ids); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return ErrRefresherRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.run(ctx, r.done)

	klog.Market.Info().Strs("coins", r.ids).Dur("interval", r.interval).Msg("Price refresher started")
	return nil
}

// Stop stops the refresher and waits for an in-flight refresh to return.
// Stopping a stopped refresher does nothing.
func (r *Refresher) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	klog.Market.Info().Msg("Price refresher stopped")
}

// Running reports whether the refresher has been started and not stopped.
func (r *Refresher) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

func (r *Refresher) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	r.refresh(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	prices, err := r.cache.Refresh(ctx, r.ids, r.vs)
	if err != nil {
		if ctx.Err() == nil {
			klog.Market.Warn().Err(err).Msg("Price refresh failed")
		}
		return
	}
	klog.Market.Debug().Int("coins", len(prices)).Msg("Prices refreshed")
}
