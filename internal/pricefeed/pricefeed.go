package pricefeed

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"price-action-bets/internal/betting"
)

var (
	// ErrFeedUnavailable marks a failed or malformed fetch from the external
	// price source. The previous snapshot is retained.
	ErrFeedUnavailable = errors.New("pricefeed: source unavailable")

	// ErrNotYetAvailable means no successful fetch has happened yet for the
	// asset.
	ErrNotYetAvailable = errors.New("pricefeed: no snapshot yet")
)

// Snapshot is an immutable point-in-time price reading. Replaced wholesale on
// each successful refresh, never partially updated.
type Snapshot struct {
	Asset     betting.Asset
	Price     decimal.Decimal
	FetchedAt time.Time
}

// Source retrieves current prices for a set of assets from the external
// price provider.
type Source interface {
	FetchPrices(ctx context.Context, assets []betting.Asset) (map[betting.Asset]decimal.Decimal, error)
}

// RefreshFunc is invoked after every successful refresh with the fetch time.
type RefreshFunc func(ctx context.Context, fetchedAt time.Time)
