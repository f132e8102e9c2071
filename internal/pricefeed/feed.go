package pricefeed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"price-action-bets/internal/betting"
	"price-action-bets/internal/scheduler"
)

// Feed polls a Source on a fixed interval and exposes the latest known price
// per asset. A failed refresh keeps the previous snapshots, so consumers see
// stale-but-available data instead of nothing.
type Feed struct {
	source   Source
	assets   []betting.Asset
	interval time.Duration
	logger   zerolog.Logger

	mu        sync.RWMutex
	latest    map[betting.Asset]Snapshot
	listeners []RefreshFunc

	now func() time.Time
}

// NewFeed constructs a feed tracking the given assets.
func NewFeed(source Source, assets []betting.Asset, interval time.Duration, logger zerolog.Logger) *Feed {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Feed{
		source:   source,
		assets:   assets,
		interval: interval,
		logger:   logger.With().Str("component", "pricefeed").Logger(),
		latest:   make(map[betting.Asset]Snapshot),
		now:      time.Now,
	}
}

// OnRefresh registers a listener called after every successful refresh.
// Listeners must be registered before Run starts.
func (f *Feed) OnRefresh(fn RefreshFunc) {
	f.listeners = append(f.listeners, fn)
}

// Refresh fetches current prices for all tracked assets. On failure the
// previous snapshots stay in place and the error wraps ErrFeedUnavailable so
// callers can distinguish a degraded feed from a hard failure.
func (f *Feed) Refresh(ctx context.Context) error {
	prices, err := f.source.FetchPrices(ctx, f.assets)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}

	// Validate the whole payload before touching state; snapshots are
	// replaced wholesale or not at all.
	for _, asset := range f.assets {
		if _, ok := prices[asset]; !ok {
			return fmt.Errorf("%w: missing price for %s", ErrFeedUnavailable, asset)
		}
	}

	fetchedAt := f.now().UTC()

	f.mu.Lock()
	for _, asset := range f.assets {
		f.latest[asset] = Snapshot{Asset: asset, Price: prices[asset], FetchedAt: fetchedAt}
	}
	f.mu.Unlock()

	f.logger.Debug().Time("fetched_at", fetchedAt).Int("assets", len(f.assets)).Msg("prices refreshed")

	for _, fn := range f.listeners {
		fn(ctx, fetchedAt)
	}
	return nil
}

// Latest returns the most recent successfully fetched snapshot for the asset.
// Never blocks.
func (f *Feed) Latest(asset betting.Asset) (Snapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	snap, ok := f.latest[asset]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNotYetAvailable, asset)
	}
	return snap, nil
}

// LatestPrice adapts Latest to the engine's PriceSource contract.
func (f *Feed) LatestPrice(asset betting.Asset) (decimal.Decimal, time.Time, error) {
	snap, err := f.Latest(asset)
	if err != nil {
		return decimal.Decimal{}, time.Time{}, err
	}
	return snap.Price, snap.FetchedAt, nil
}

// Run refreshes on the configured interval until ctx is cancelled. Refresh
// failures are logged and the loop continues; the cadence is independent of
// bet activity.
func (f *Feed) Run(ctx context.Context) error {
	// Prime the cache so bets can be placed before the first tick.
	if err := f.Refresh(ctx); err != nil {
		f.logger.Warn().Err(err).Msg("initial price fetch failed")
	}

	loop := scheduler.New(scheduler.Options{Interval: f.interval}, f.logger)
	return loop.Run(ctx, func(ctx context.Context, _ time.Time) error {
		return f.Refresh(ctx)
	})
}

var _ betting.PriceSource = (*Feed)(nil)
