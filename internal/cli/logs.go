package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"exchange-rates-client/internal/api"
)

var (
	logsCount int
	logsLevel string
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent server log records (admin)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if logsCount <= 0 {
			return fmt.Errorf("--count must be greater than zero")
		}
		return getApp().Logs(cmd.Context(), logsCount, logsLevel)
	},
}

func init() {
	logsCmd.Flags().IntVar(&logsCount, "count", api.DefaultLogCount, "Number of records to display")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Only records of this level")
}
