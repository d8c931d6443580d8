package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"exchange-rates-client/internal/api"
)

// ConvertOptions are the inputs of the convert command.
type ConvertOptions struct {
	Amount string
	From   string
	To     string
	Type   string
	Source string
}

// Convert prints the server's conversion of an amount.
func (a *App) Convert(ctx context.Context, opts ConvertOptions) error {
	amount, err := decimal.NewFromString(strings.TrimSpace(opts.Amount))
	if err != nil {
		return fmt.Errorf("%w: %q", api.ErrInvalidAmount, opts.Amount)
	}

	res, err := a.API.Convert(ctx, api.ConversionRequest{
		From:   strings.ToUpper(opts.From),
		To:     strings.ToUpper(opts.To),
		Amount: amount,
		Type:   opts.Type,
		Source: opts.Source,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.Out, "%s %s = %s %s\n", amount.String(), res.FromCurrencyCode, formatDecimal(res.ConvertedAmount, 2), res.ToCurrencyCode)
	fmt.Fprintf(a.Out, "rate %s from %s at %s UTC\n", formatDecimal(res.ExchangeRate, 4), res.SourceName, formatTime(res.RateDate.Time))
	return nil
}
