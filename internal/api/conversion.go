package api

import (
	"context"
	"errors"
	"net/url"
)

// ErrInvalidAmount is returned before any request when the amount is not positive.
var ErrInvalidAmount = errors.New("amount must be greater than zero")

// Convert converts an amount between currencies.
func (c *Client) Convert(ctx context.Context, req ConversionRequest) (ConversionResult, error) {
	if !req.Amount.IsPositive() {
		return ConversionResult{}, ErrInvalidAmount
	}
	if req.From == "" || req.To == "" {
		return ConversionResult{}, errors.New("from and to currencies required")
	}

	params := url.Values{}
	params.Set("from", req.From)
	params.Set("to", req.To)
	params.Set("amount", req.Amount.String())
	if req.Type != "" {
		params.Set("type", req.Type)
	}
	if req.Source != "" {
		params.Set("source", req.Source)
	}

	var out ConversionResult
	err := c.get(ctx, "/Conversion", params, &out)
	return out, err
}
