package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"exchange-rates-client/internal/app"
)

var (
	convertType   string
	convertSource string
)

var convertCmd = &cobra.Command{
	Use:     "convert <amount> <from> <to>",
	Short:   "Convert an amount between currencies",
	Example: "  ratesctl convert 100 USD UAH --type sell",
	Args:    cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if convertType != "" && convertType != "buy" && convertType != "sell" {
			return errors.New("--type must be buy or sell")
		}

		opts := app.ConvertOptions{
			Amount: args[0],
			From:   args[1],
			To:     args[2],
			Type:   convertType,
			Source: convertSource,
		}
		return getApp().Convert(cmd.Context(), opts)
	},
}

func init() {
	convertCmd.Flags().StringVar(&convertType, "type", "", "Use the buy or sell rate")
	convertCmd.Flags().StringVar(&convertSource, "source", "", "Only rates from this source")
}
