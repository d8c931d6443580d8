package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// LatestRates reads a page of the newest rates without filters.
func (c *Client) LatestRates(ctx context.Context, page, pageSize int) (RatePage, error) {
	var out RatePage
	err := c.get(ctx, "/ExchangeRates/latest", pageParams(page, pageSize), &out)
	return out, err
}

// FilterRates reads a page of rates narrowed by bank and currencies.
func (c *Client) FilterRates(ctx context.Context, q RateQuery) (RatePage, error) {
	params := pageParams(q.Page, q.PageSize)
	if q.Bank != "" {
		params.Set("bank", q.Bank)
	}
	if q.From != "" {
		params.Set("from", q.From)
	}
	if q.To != "" {
		params.Set("to", q.To)
	}

	var out RatePage
	err := c.get(ctx, "/ExchangeRates/filter", params, &out)
	return out, err
}

// FetchAll makes the server collect rates from every active source.
func (c *Client) FetchAll(ctx context.Context) (FetchResult, error) {
	var out FetchResult
	err := c.do(ctx, http.MethodPost, "/ExchangeRates/fetch", nil, &out)
	return out, err
}

// FetchSource makes the server collect rates from one named source.
func (c *Client) FetchSource(ctx context.Context, sourceName string) (FetchResult, error) {
	var out FetchResult
	err := c.do(ctx, http.MethodPost, "/ExchangeRates/fetch/"+url.PathEscape(sourceName), nil, &out)
	return out, err
}

// Currencies lists the reference currencies.
func (c *Client) Currencies(ctx context.Context) ([]Currency, error) {
	var out []Currency
	err := c.get(ctx, "/Currencies", nil, &out)
	return out, err
}

func pageParams(page, pageSize int) url.Values {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("pageSize", strconv.Itoa(pageSize))
	return params
}
