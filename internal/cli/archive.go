package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"exchange-rates-client/internal/app"
)

var (
	archiveLimit  int
	archiveAlerts bool
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Inspect the rate archive written by watch --archive",
}

var archiveShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recently archived rates",
	RunE: func(cmd *cobra.Command, args []string) error {
		if archiveLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ArchiveOptions{
			Limit:  archiveLimit,
			Alerts: archiveAlerts,
		}

		return getApp().ShowArchive(cmd.Context(), opts)
	},
}

func init() {
	archiveShowCmd.Flags().IntVar(&archiveLimit, "limit", 20, "Number of rows to display")
	archiveShowCmd.Flags().BoolVar(&archiveAlerts, "alerts", false, "Show emitted alerts instead of rates")

	archiveCmd.AddCommand(archiveShowCmd)
}
