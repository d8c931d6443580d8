package cli

import (
	"github.com/spf13/cobra"

	"exchange-rates-client/internal/app"
)

var historyOpts app.HistoryOptions

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the rate history of a pair with its trend",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().History(cmd.Context(), historyOpts)
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyOpts.Period, "period", "", "today, week or month (defaults to history.default_period)")
	historyCmd.Flags().StringVar(&historyOpts.From, "from", "", "Base currency (defaults to history.from)")
	historyCmd.Flags().StringVar(&historyOpts.To, "to", "", "Quote currency (defaults to history.to)")
	historyCmd.Flags().StringVar(&historyOpts.Source, "source", "", "Only samples from this source")
	historyCmd.Flags().StringVar(&historyOpts.CSVPath, "csv", "", "Write the annotated samples to this CSV file")
	historyCmd.Flags().StringVar(&historyOpts.PNGPath, "png", "", "Render the buy and sell lines to this PNG file")
}
