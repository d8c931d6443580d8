package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultBaseURL is the rates API of a local development server.
const DefaultBaseURL = "http://localhost:5099/api"

// Client calls the rates API. Requests go through httpClient, whose transport
// carries the session credentials; the CSRF token itself is obtained through
// csrfClient so that it never re-enters the CSRF handling.
type Client struct {
	baseURL    string
	httpClient *http.Client
	csrfClient *http.Client
	logger     zerolog.Logger
}

// NewClient constructs an API client. A nil csrfClient reuses httpClient.
func NewClient(baseURL string, httpClient, csrfClient *http.Client, logger zerolog.Logger) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if csrfClient == nil {
		csrfClient = httpClient
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		csrfClient: csrfClient,
		logger:     logger.With().Str("component", "api_client").Logger(),
	}
}

// BaseURL returns the API root all paths are relative to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchCSRFToken obtains a fresh antiforgery token.
func (c *Client) FetchCSRFToken(ctx context.Context) (string, error) {
	var out csrfResponse
	if err := c.send(ctx, c.csrfClient, http.MethodGet, "/auth/csrf-token", nil, nil, &out); err != nil {
		return "", err
	}
	return out.CSRFToken, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.send(ctx, c.httpClient, http.MethodGet, path, query, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	return c.send(ctx, c.httpClient, method, path, nil, in, out)
}

func (c *Client) send(ctx context.Context, client *http.Client, method, path string, query url.Values, in, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read %s %s: %w", ErrTransport, method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseHTTPError(method, path, resp.StatusCode, payload)
	}

	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
