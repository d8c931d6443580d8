package cli

import (
	"github.com/spf13/cobra"

	"exchange-rates-client/internal/app"
)

var watchOpts app.WatchOptions

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll rates on an interval, archive them and alert on moves",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Watch(cmd.Context(), watchOpts)
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchOpts.Interval, "interval", 0, "Polling interval (defaults to watch.interval)")
	watchCmd.Flags().BoolVar(&watchOpts.Recompute, "recompute", false, "Ask the server to recompute before every poll (admin)")
	watchCmd.Flags().BoolVar(&watchOpts.Archive, "archive", false, "Archive every polled page to PostgreSQL")
	watchCmd.Flags().BoolVar(&watchOpts.Once, "once", false, "Run a single poll and exit")
}
