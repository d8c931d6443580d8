package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"exchange-rates-client/internal/app"
)

var (
	sourcesActiveOnly bool
	sourceOpts        app.SourceOptions
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Manage rate sources (admin)",
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Sources(cmd.Context(), sourcesActiveOnly)
	},
}

var sourcesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a source",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSourceFields(); err != nil {
			return err
		}
		return getApp().AddSource(cmd.Context(), sourceOpts)
	},
}

var sourcesUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Replace a source definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := requireSourceFields(); err != nil {
			return err
		}
		return getApp().UpdateSource(cmd.Context(), id, sourceOpts)
	},
}

var sourcesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return getApp().DeleteSource(cmd.Context(), id)
	},
}

var sourcesToggleCmd = &cobra.Command{
	Use:   "toggle <id>",
	Short: "Flip the active flag of a source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return getApp().ToggleSource(cmd.Context(), id)
	},
}

var sourcesTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Try a source definition without saving it",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSourceFields(); err != nil {
			return err
		}
		return getApp().TestSource(cmd.Context(), sourceOpts)
	},
}

func requireSourceFields() error {
	if sourceOpts.Name == "" || sourceOpts.URL == "" {
		return errors.New("--name and --url are required")
	}
	if sourceOpts.UpdateIntervalMinutes < 0 {
		return errors.New("--interval cannot be negative")
	}
	return nil
}

func parseID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid source id %q", arg)
	}
	return id, nil
}

func init() {
	sourcesListCmd.Flags().BoolVar(&sourcesActiveOnly, "active", false, "Only sources the server currently polls")

	for _, cmd := range []*cobra.Command{sourcesAddCmd, sourcesUpdateCmd, sourcesTestCmd} {
		cmd.Flags().StringVar(&sourceOpts.Name, "name", "", "Source name")
		cmd.Flags().StringVar(&sourceOpts.URL, "url", "", "Source URL")
		cmd.Flags().StringVar(&sourceOpts.Format, "format", "", "Payload format (defaults to JSON)")
		cmd.Flags().IntVar(&sourceOpts.UpdateIntervalMinutes, "interval", 0, "Update interval in minutes (defaults to 60)")
		cmd.Flags().BoolVar(&sourceOpts.Inactive, "inactive", false, "Create the source disabled")
	}

	sourcesCmd.AddCommand(sourcesListCmd)
	sourcesCmd.AddCommand(sourcesAddCmd)
	sourcesCmd.AddCommand(sourcesUpdateCmd)
	sourcesCmd.AddCommand(sourcesDeleteCmd)
	sourcesCmd.AddCommand(sourcesToggleCmd)
	sourcesCmd.AddCommand(sourcesTestCmd)
}
