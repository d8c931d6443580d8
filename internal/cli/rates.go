package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"exchange-rates-client/internal/app"
)

var (
	ratesPage     int
	ratesPageSize int
	ratesBank     string
	ratesFrom     string
	ratesTo       string
)

var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "List the latest rates, optionally filtered",
	RunE: func(cmd *cobra.Command, args []string) error {
		if ratesPage < 1 {
			return fmt.Errorf("--page must be at least 1")
		}
		if ratesPageSize < 0 {
			return fmt.Errorf("--page-size cannot be negative")
		}

		opts := app.RatesOptions{
			Page:     ratesPage,
			PageSize: ratesPageSize,
			Bank:     ratesBank,
			From:     ratesFrom,
			To:       ratesTo,
		}
		return getApp().ListRates(cmd.Context(), opts)
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Recompute rates on the server and list the first page (admin)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Refresh(cmd.Context())
	},
}

var currenciesCmd = &cobra.Command{
	Use:   "currencies",
	Short: "List reference currencies",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Currencies(cmd.Context())
	},
}

var banksCmd = &cobra.Command{
	Use:   "banks",
	Short: "List the banks usable with --bank",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Banks(cmd.Context())
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [source]",
	Short: "Collect rates from every source or one named source (admin)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source := ""
		if len(args) == 1 {
			source = args[0]
		}
		return getApp().Fetch(cmd.Context(), source)
	},
}

func init() {
	ratesCmd.Flags().IntVar(&ratesPage, "page", 1, "Page to display; clamped to the last page")
	ratesCmd.Flags().IntVar(&ratesPageSize, "page-size", 0, "Rows per page (defaults to rates.page_size)")
	ratesCmd.Flags().StringVar(&ratesBank, "bank", "", "Only rates from this source")
	ratesCmd.Flags().StringVar(&ratesFrom, "from", "", "Only rates from this currency code")
	ratesCmd.Flags().StringVar(&ratesTo, "to", "", "Only rates into this currency code")
}
