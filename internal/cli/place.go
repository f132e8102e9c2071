package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"price-action-bets/internal/app"
)

var (
	placeAccount   string
	placeAsset     string
	placeDirection string
	placeAmount    float64
	placeDuration  time.Duration
)

var placeCmd = &cobra.Command{
	Use:   "place",
	Short: "Place a single bet and wait for its settlement",
	RunE: func(cmd *cobra.Command, args []string) error {
		if placeAccount == "" {
			return errors.New("--account is required")
		}
		if placeAmount <= 0 {
			return errors.New("--amount must be greater than zero")
		}

		opts := app.PlaceOptions{
			Account:   placeAccount,
			Asset:     placeAsset,
			Direction: placeDirection,
			Amount:    placeAmount,
			Duration:  placeDuration,
		}

		return getApp().PlaceAndWait(cmd.Context(), opts)
	},
}

func init() {
	placeCmd.Flags().StringVar(&placeAccount, "account", "", "Account name to bet from")
	placeCmd.Flags().StringVar(&placeAsset, "asset", "BTC", "Asset to bet on (BTC, SOL)")
	placeCmd.Flags().StringVar(&placeDirection, "direction", "HIGHER", "Predicted direction (HIGHER, LOWER)")
	placeCmd.Flags().Float64Var(&placeAmount, "amount", 0, "Stake amount")
	placeCmd.Flags().DurationVar(&placeDuration, "duration", time.Minute, "Bet window (must be a permitted duration)")
}
