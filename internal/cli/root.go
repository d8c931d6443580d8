package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"exchange-rates-client/internal/app"
	"exchange-rates-client/internal/config"
	"exchange-rates-client/internal/logging"
)

var (
	cfgFile   string
	logLevel  string
	ephemeral bool
	appHandle *app.App
)

var rootCmd = &cobra.Command{
	Use:           "ratesctl",
	Short:         "Browse, convert and watch exchange rates from the aggregation service",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if appHandle != nil {
			return nil
		}

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if ephemeral {
			cfg.Session.Ephemeral = true
		}

		logger := logging.NewLogger(cfg.Logging)
		handle, err := app.NewApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		handle.Out = cmd.OutOrStdout()
		handle.Err = cmd.ErrOrStderr()
		appHandle = handle
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if appHandle == nil {
			return nil
		}
		err := appHandle.Close()
		appHandle = nil
		return err
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level defined in config")
	rootCmd.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "Keep the session token in memory only")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(ratesCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(currenciesCmd)
	rootCmd.AddCommand(banksCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(latestCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(versionCmd)
}

func getApp() *app.App {
	if appHandle == nil {
		panic("application not initialized; PersistentPreRunE not executed")
	}
	return appHandle
}
