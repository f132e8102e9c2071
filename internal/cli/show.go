package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"price-action-bets/internal/app"
)

var (
	showAccount string
	showLimit   int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent settlements",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Account: showAccount,
			Limit:   showLimit,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().StringVar(&showAccount, "account", "", "Filter by account name")
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of settlements to display")
}
