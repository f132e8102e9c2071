package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"price-action-bets/internal/storage"
)

// Show prints recent settlements from the history store.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show settlements")
	}
	if closeStore != nil {
		defer closeStore()
	}

	var settlements []storage.Settlement
	if opts.Account != "" {
		settlements, err = store.ListSettlementsForAccount(ctx, opts.Account, opts.Limit)
	} else {
		settlements, err = store.ListRecentSettlements(ctx, opts.Limit)
	}
	if err != nil {
		return err
	}
	if len(settlements) == 0 {
		fmt.Fprintln(os.Stdout, "no settlements found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Settled (UTC)\tAccount\tAsset\tDirection\tStake\tStart\tEnd\tStatus")

	for _, s := range settlements {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.EndTime.UTC().Format(time.RFC3339),
			s.Account,
			s.Asset,
			s.Direction,
			s.Amount.String(),
			s.StartPrice.StringFixed(2),
			s.EndPrice.StringFixed(2),
			s.Status,
		)
	}

	writer.Flush()
	return nil
}
