package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"exchange-rates-client/internal/api"
	"exchange-rates-client/internal/trend"
)

// HistoryOptions select the history window and its exports.
type HistoryOptions struct {
	Period  string
	From    string
	To      string
	Source  string
	CSVPath string
	PNGPath string
}

// History prints the annotated rate history of a pair and optionally writes
// it as CSV and PNG.
func (a *App) History(ctx context.Context, opts HistoryOptions) error {
	if opts.Period == "" {
		opts.Period = a.Config.History.DefaultPeriod
	}
	period, err := api.ParsePeriod(opts.Period)
	if err != nil {
		return err
	}
	if opts.From == "" {
		opts.From = a.Config.History.From
	}
	if opts.To == "" {
		opts.To = a.Config.History.To
	}

	query := api.HistoryQuery{
		Period: period,
		From:   strings.ToUpper(opts.From),
		To:     strings.ToUpper(opts.To),
		Source: opts.Source,
	}
	history, err := a.API.History(ctx, query)
	if err != nil {
		return err
	}

	series := trend.Compute(history.Data)
	if len(series.Points) == 0 {
		fmt.Fprintln(a.Out, "no history samples found")
		return nil
	}
	a.Logger.Debug().Int("samples", len(series.Points)).Str("period", string(period)).Msg("history loaded")

	renderHistory(a.Out, series)

	if opts.CSVPath != "" {
		if err := writeHistoryCSV(opts.CSVPath, series); err != nil {
			return err
		}
		fmt.Fprintf(a.Out, "wrote %s\n", opts.CSVPath)
	}

	if opts.PNGPath != "" {
		title := fmt.Sprintf("%s/%s (%s)", query.From, query.To, period)
		err := writeHistoryPNG(opts.PNGPath, series, title)
		switch {
		case errors.Is(err, trend.ErrFlatSeries):
			fmt.Fprintln(a.Out, "rate is stable over the window, chart skipped")
		case err != nil:
			return err
		default:
			fmt.Fprintf(a.Out, "wrote %s\n", opts.PNGPath)
		}
	}

	return nil
}

func renderHistory(out io.Writer, series trend.Series) {
	writer := newTable(out)
	fmt.Fprintln(writer, "Date (UTC)\tSource\tBuy\tSell\tChange\tTrend")
	for _, p := range series.Points {
		change := "-"
		if p.Change != nil {
			change = p.Change.StringFixed(4)
		}
		direction := string(p.Direction)
		if direction == "" {
			direction = "-"
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\n",
			formatTime(p.Date.Time),
			sanitizeInline(p.Source),
			formatDecimal(p.Buy, 4),
			formatDecimal(p.Sell, 4),
			change,
			direction,
		)
	}
	writer.Flush()

	fmt.Fprintf(out, "min %s  max %s  spread %s", formatDecimal(series.MinBuy, 4), formatDecimal(series.MaxBuy, 4), formatDecimal(series.Spread, 4))
	if series.Flat {
		fmt.Fprint(out, "  (stable)")
	}
	fmt.Fprintln(out)
}

func writeHistoryCSV(path string, series trend.Series) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return trend.WriteCSV(file, series)
}

func writeHistoryPNG(path string, series trend.Series, title string) error {
	// checked before creating the file so a flat window leaves nothing behind
	if series.Flat {
		return trend.ErrFlatSeries
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return trend.RenderPNG(file, series, title)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
