package app

import (
	"context"
	"fmt"
	"time"

	"exchange-rates-client/internal/auth"
)

// LoginOptions carry the credentials of the login command.
type LoginOptions struct {
	Username string
	Password string
}

// RegisterOptions carry the fields of the register command.
type RegisterOptions struct {
	Username string
	Email    string
	Password string
}

// Login authenticates and stores the session token.
func (a *App) Login(ctx context.Context, opts LoginOptions) error {
	user, err := a.Auth.Login(ctx, opts.Username, opts.Password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "logged in as %s (%s)\n", user.Username, user.Role)
	return nil
}

// Register creates an account and logs in with it.
func (a *App) Register(ctx context.Context, opts RegisterOptions) error {
	user, err := a.Auth.Register(ctx, opts.Username, opts.Email, opts.Password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "registered and logged in as %s\n", user.Username)
	return nil
}

// Logout ends the session locally and on the server.
func (a *App) Logout(ctx context.Context) error {
	if err := a.Auth.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.Out, "logged out")
	return nil
}

// WhoAmI prints the user behind the stored token.
func (a *App) WhoAmI(ctx context.Context) error {
	user, err := a.Auth.CheckAuth(ctx)
	if err == auth.ErrNotAuthenticated { //nolint:errorlint // bare sentinel means no token at all
		fmt.Fprintln(a.Out, "not logged in")
		return nil
	}
	if err != nil {
		return err
	}

	writer := newTable(a.Out)
	fmt.Fprintf(writer, "Username\t%s\n", user.Username)
	fmt.Fprintf(writer, "Email\t%s\n", user.Email)
	fmt.Fprintf(writer, "Role\t%s\n", user.Role)
	if exp, ok := a.Session.TokenExpiry(); ok {
		fmt.Fprintf(writer, "Expires\t%s\n", exp.UTC().Format(time.RFC3339))
	}
	return writer.Flush()
}
