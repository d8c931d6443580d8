package cli

import (
	"bufio"
	"errors"

	"github.com/spf13/cobra"

	"exchange-rates-client/internal/app"
)

var (
	loginUsername    string
	loginPassword    string
	registerUsername string
	registerEmail    string
	registerPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		reader := bufio.NewReader(cmd.InOrStdin())
		opts := app.LoginOptions{Username: loginUsername, Password: loginPassword}

		var err error
		if opts.Username == "" {
			if opts.Username, err = readLine(reader, "Username: ", cmd.ErrOrStderr()); err != nil {
				return err
			}
		}
		if opts.Password == "" {
			if opts.Password, err = promptPassword(reader, cmd.ErrOrStderr()); err != nil {
				return err
			}
		}
		if opts.Username == "" || opts.Password == "" {
			return errors.New("username and password are required")
		}

		return getApp().Login(cmd.Context(), opts)
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and log in with it",
	RunE: func(cmd *cobra.Command, args []string) error {
		if registerUsername == "" || registerEmail == "" {
			return errors.New("--username and --email are required")
		}

		opts := app.RegisterOptions{
			Username: registerUsername,
			Email:    registerEmail,
			Password: registerPassword,
		}
		if opts.Password == "" {
			var err error
			reader := bufio.NewReader(cmd.InOrStdin())
			if opts.Password, err = promptPassword(reader, cmd.ErrOrStderr()); err != nil {
				return err
			}
		}
		if opts.Password == "" {
			return errors.New("password is required")
		}

		return getApp().Register(cmd.Context(), opts)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Logout(cmd.Context())
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().WhoAmI(cmd.Context())
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Account username (prompted when empty)")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Account password (prompted when empty)")

	registerCmd.Flags().StringVarP(&registerUsername, "username", "u", "", "Account username")
	registerCmd.Flags().StringVar(&registerEmail, "email", "", "Account email")
	registerCmd.Flags().StringVar(&registerPassword, "password", "", "Account password (prompted when empty)")
}
