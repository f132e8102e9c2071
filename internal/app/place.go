package app

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"price-action-bets/internal/betting"
)

// PlaceAndWait places a single bet against the configured ledger and feed,
// then blocks until it settles. Exercises the whole pipeline from the CLI
// without a UI in front of it.
func (a *App) PlaceAndWait(ctx context.Context, opts PlaceOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	settled := make(chan betting.Bet, 1)
	events := betting.Events{
		OnBetSettled: func(bet betting.Bet) {
			select {
			case settled <- bet:
			default:
			}
		},
	}

	feed := a.newFeed()
	engine := a.newEngine(feed, store, events)
	defer engine.Close()

	// Need a reference price before placement.
	if err := feed.Refresh(ctx); err != nil {
		return fmt.Errorf("initial price fetch: %w", err)
	}

	runCtx, stopFeed := context.WithCancel(ctx)
	defer stopFeed()

	feedDone := make(chan struct{})
	go func() {
		defer close(feedDone)
		_ = feed.Run(runCtx)
	}()

	bet, err := engine.Place(ctx,
		opts.Account,
		betting.Asset(opts.Asset),
		betting.Direction(opts.Direction),
		decimal.NewFromFloat(opts.Amount),
		opts.Duration,
	)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "placed bet %s: %s %s, stake %s at %s, settles %s\n",
		bet.ID, bet.Asset, bet.Direction, bet.Amount.String(),
		bet.StartPrice.StringFixed(2), bet.EndTime.UTC().Format("15:04:05"))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case result := <-settled:
		stopFeed()
		<-feedDone
		fmt.Fprintf(os.Stdout, "bet %s %s: start %s, end %s (%s%%)\n",
			result.ID, result.Status,
			result.StartPrice.StringFixed(2), result.EndPrice.StringFixed(2),
			result.PriceChangePct().StringFixed(2))
		return nil
	}
}
