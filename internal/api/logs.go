package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// DefaultLogCount is how many log records are requested by default.
const DefaultLogCount = 50

// Logs reads the newest server log records, optionally of one level.
func (c *Client) Logs(ctx context.Context, count int, level string) ([]LogEntry, error) {
	if count <= 0 {
		return nil, fmt.Errorf("log count must be positive, got %d", count)
	}
	params := url.Values{}
	params.Set("count", strconv.Itoa(count))
	if level != "" {
		params.Set("level", level)
	}

	var out []LogEntry
	err := c.get(ctx, "/Logs", params, &out)
	return out, err
}
