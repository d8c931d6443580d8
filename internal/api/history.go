package api

import (
	"context"
	"net/url"
)

// History reads the samples of one period.
func (c *Client) History(ctx context.Context, q HistoryQuery) (History, error) {
	period, err := ParsePeriod(string(q.Period))
	if err != nil {
		return History{}, err
	}

	params := url.Values{}
	if q.From != "" {
		params.Set("from", q.From)
	}
	if q.To != "" {
		params.Set("to", q.To)
	}
	if q.Source != "" {
		params.Set("source", q.Source)
	}

	var out History
	if err := c.get(ctx, "/History/"+string(period), params, &out); err != nil {
		return History{}, err
	}
	return out, nil
}
