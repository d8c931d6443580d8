package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"exchange-rates-client/internal/app"
)

var (
	simulateSource   string
	simulatePair     string
	simulatePrevious float64
	simulateCurrent  float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Send a synthetic rate move through the configured alert channels",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulatePrevious <= 0 || simulateCurrent <= 0 {
			return errors.New("--previous and --current must be greater than zero")
		}

		opts := app.SimulateOptions{
			Source:   simulateSource,
			Pair:     simulatePair,
			Previous: decimal.NewFromFloat(simulatePrevious),
			Current:  decimal.NewFromFloat(simulateCurrent),
		}
		return getApp().SimulateAlert(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateSource, "source", "simulated", "Source name shown in the alert")
	simulateCmd.Flags().StringVar(&simulatePair, "pair", "USD/UAH", "Currency pair shown in the alert")
	simulateCmd.Flags().Float64Var(&simulatePrevious, "previous", 0, "Buy rate before the move")
	simulateCmd.Flags().Float64Var(&simulateCurrent, "current", 0, "Buy rate after the move")
}
