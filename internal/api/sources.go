package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
)

// Sources lists every configured source.
func (c *Client) Sources(ctx context.Context) ([]Source, error) {
	var out []Source
	err := c.get(ctx, "/ApiSources", nil, &out)
	return out, err
}

// ActiveSources lists the sources currently collected from. They double as
// the bank filter values.
func (c *Client) ActiveSources(ctx context.Context) ([]Source, error) {
	var out []Source
	err := c.get(ctx, "/ApiSources/active", nil, &out)
	return out, err
}

// CreateSource adds a source definition.
func (c *Client) CreateSource(ctx context.Context, src Source) (Source, error) {
	var out Source
	err := c.do(ctx, http.MethodPost, "/ApiSources", src, &out)
	return out, err
}

// UpdateSource replaces the definition of source id.
func (c *Client) UpdateSource(ctx context.Context, id int, src Source) error {
	src.ID = id
	return c.do(ctx, http.MethodPut, sourcePath(id), src, nil)
}

// DeleteSource removes source id.
func (c *Client) DeleteSource(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, sourcePath(id), nil, nil)
}

// ToggleSource flips the active flag of source id.
func (c *Client) ToggleSource(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodPatch, sourcePath(id)+"/toggle", nil, nil)
}

// TestSource asks the server to try a definition without saving it. The
// result is returned as sent.
func (c *Client) TestSource(ctx context.Context, src Source) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, http.MethodPost, "/ApiSources/test", src, &out)
	return out, err
}

func sourcePath(id int) string {
	return "/ApiSources/" + url.PathEscape(strconv.Itoa(id))
}
