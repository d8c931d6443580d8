package api

import (
	"context"
	"net/http"
)

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, creds Credentials) (AuthResponse, error) {
	var out AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", creds, &out)
	return out, err
}

// Register creates an account and returns its bearer token.
func (c *Client) Register(ctx context.Context, reg Registration) (AuthResponse, error) {
	var out AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/register", reg, &out)
	return out, err
}

// Me returns the user the current bearer token belongs to.
func (c *Client) Me(ctx context.Context) (UserInfo, error) {
	var out meResponse
	err := c.get(ctx, "/auth/me", nil, &out)
	return out.User, err
}

// Logout ends the server-side session.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}
