package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"exchange-rates-client/internal/storage"
)

// ArchiveOptions configure the archive show command.
type ArchiveOptions struct {
	Limit  int
	Alerts bool
}

// ShowArchive prints the most recently archived rows, or alerts.
func (a *App) ShowArchive(ctx context.Context, opts ArchiveOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show archive")
	}
	if closeStore != nil {
		defer closeStore()
	}

	if opts.Alerts {
		return a.showAlerts(ctx, opts.Limit, store)
	}

	snapshots, err := store.ListRecentSnapshots(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(snapshots) == 0 {
		fmt.Fprintln(a.Out, "no snapshots found")
		return nil
	}

	total, err := store.CountSnapshots(ctx)
	if err != nil {
		return err
	}

	writer := newTable(a.Out)
	fmt.Fprintln(writer, "Observed (UTC)\tSource\tPair\tBuy\tSell\tFetched (UTC)")
	for _, snap := range snapshots {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s/%s\t%s\t%s\t%s\n",
			snap.ObservedAt.UTC().Format(time.RFC3339),
			sanitizeInline(snap.SourceName),
			snap.FromCurrency,
			snap.ToCurrency,
			formatDecimal(snap.BuyRate, 4),
			formatDecimal(snap.SellRate, 4),
			formatTime(snap.FetchedAt),
		)
	}
	writer.Flush()

	fmt.Fprintf(a.Out, "%d of %d archived rows\n", len(snapshots), total)
	return nil
}

func (a *App) showAlerts(ctx context.Context, limit int, store storage.AlertStore) error {
	alerts, err := store.ListRecentAlerts(ctx, limit)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Fprintln(a.Out, "no alerts found")
		return nil
	}

	writer := newTable(a.Out)
	fmt.Fprintln(writer, "Observed (UTC)\tSource\tPair\tPrevious\tCurrent\tChange%\tDirection\tChannels")
	for _, rec := range alerts {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.ObservedAt.UTC().Format(time.RFC3339),
			sanitizeInline(rec.SourceName),
			rec.Pair,
			formatDecimal(rec.PreviousBuy, 4),
			formatDecimal(rec.CurrentBuy, 4),
			formatDecimal(rec.ChangePct, 3),
			rec.Direction,
			strings.Join(rec.Channels, ","),
		)
	}
	return writer.Flush()
}
