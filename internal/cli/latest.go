package cli

import (
	"github.com/spf13/cobra"
)

var latestCmd = &cobra.Command{
	Use:     "latest <source> <pair>",
	Short:   "Show the newest rate a running watch cached in Redis",
	Example: "  ratesctl latest NBU USD/UAH",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Latest(cmd.Context(), args[0], args[1])
	},
}
