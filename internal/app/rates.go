package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"exchange-rates-client/internal/rates"
)

// RatesOptions select the page and filters of the rates table.
type RatesOptions struct {
	Page     int
	PageSize int
	Bank     string
	From     string
	To       string
}

func (o RatesOptions) filters() rates.Filters {
	return rates.Filters{
		Bank: strings.TrimSpace(o.Bank),
		From: strings.ToUpper(strings.TrimSpace(o.From)),
		To:   strings.ToUpper(strings.TrimSpace(o.To)),
	}
}

// ListRates loads and prints one page of the rates table.
func (a *App) ListRates(ctx context.Context, opts RatesOptions) error {
	if opts.PageSize > 0 && opts.PageSize != a.Config.Rates.PageSize {
		a.Rates = rates.NewStore(a.API, opts.PageSize, a.Logger)
	}

	if err := a.Rates.SetFilters(ctx, opts.filters()); err != nil {
		return err
	}

	if opts.Page > 1 {
		requested, err := a.Rates.SetPage(ctx, opts.Page)
		if errors.Is(err, rates.ErrPageOutOfRange) {
			// the table shrank since the first page was read; the store
			// already points at the new last page
			err = a.Rates.FetchRates(ctx)
		}
		if err != nil {
			return err
		}
		if requested != opts.Page {
			a.Logger.Info().Int("requested", opts.Page).Int("page", requested).Msg("page out of range, showing last page")
		}
	}

	renderRates(a.Out, a.Rates.State())
	return nil
}

// Refresh asks the server to recompute rates and prints the reloaded page.
// Both failures are reported; the page is printed when the reload worked.
func (a *App) Refresh(ctx context.Context) error {
	if err := a.requireAdmin(ctx); err != nil {
		return err
	}

	res, err := a.Rates.RefreshRates(ctx)
	state := a.Rates.State()
	if state.Loaded && state.Err == nil {
		fmt.Fprintf(a.Out, "recomputed %d rates\n", res.Count)
		renderRates(a.Out, state)
	}
	return err
}

// Currencies prints the reference currency list.
func (a *App) Currencies(ctx context.Context) error {
	currencies, err := a.Rates.FetchCurrencies(ctx)
	if err != nil {
		return err
	}

	writer := newTable(a.Out)
	fmt.Fprintln(writer, "Code\tName\tSymbol")
	for _, c := range currencies {
		fmt.Fprintf(writer, "%s\t%s\t%s\n", c.Code, c.Name, c.Symbol)
	}
	return writer.Flush()
}

// Banks prints the sources that can be used as a bank filter.
func (a *App) Banks(ctx context.Context) error {
	banks, err := a.Rates.FetchBanks(ctx)
	if err != nil {
		return err
	}
	for _, b := range banks {
		fmt.Fprintln(a.Out, b.Name)
	}
	return nil
}

func renderRates(out io.Writer, state rates.State) {
	if len(state.Rates) == 0 {
		fmt.Fprintln(out, "no rates found")
		return
	}

	writer := newTable(out)
	fmt.Fprintln(writer, "Source\tPair\tBuy\tSell\tFetched (UTC)")
	for _, r := range state.Rates {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\n",
			sanitizeInline(r.SourceName),
			r.Pair(),
			formatDecimal(r.BuyRate, 4),
			formatDecimal(r.SellRate, 4),
			formatTime(r.FetchedAt.Time),
		)
	}
	writer.Flush()

	env := state.Envelope
	fmt.Fprintf(out, "page %d of %d (%d rates)", env.Page, env.TotalPages, env.TotalCount)
	if state.Filters.Any() {
		fmt.Fprintf(out, " filtered by %s", describeFilters(state.Filters))
	}
	fmt.Fprintln(out)
}

func describeFilters(f rates.Filters) string {
	var parts []string
	if f.Bank != "" {
		parts = append(parts, "bank="+f.Bank)
	}
	if f.From != "" {
		parts = append(parts, "from="+f.From)
	}
	if f.To != "" {
		parts = append(parts, "to="+f.To)
	}
	return strings.Join(parts, " ")
}

func newTable(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04")
}
