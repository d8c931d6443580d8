package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"exchange-rates-client/internal/cache"
)

// Latest prints the cached newest rate of one source and pair, as published
// by a running watch.
func (a *App) Latest(ctx context.Context, source, pair string) error {
	if a.Config.Cache.Addr == "" {
		return errors.New("cache.addr not configured; cannot read cached rates")
	}

	from, to, ok := strings.Cut(strings.ToUpper(pair), "/")
	if !ok || from == "" || to == "" {
		return errors.New("pair must look like USD/UAH")
	}

	reader, err := cache.NewRedis(ctx, a.Config.Cache, a.Logger)
	if err != nil {
		return err
	}
	defer reader.Close()

	snap, err := reader.Latest(ctx, source, from, to)
	if errors.Is(err, cache.ErrMiss) {
		fmt.Fprintf(a.Out, "no cached rate for %s %s/%s\n", source, from, to)
		return nil
	}
	if err != nil {
		return err
	}

	writer := newTable(a.Out)
	fmt.Fprintln(writer, "Source\tPair\tBuy\tSell\tFetched (UTC)\tObserved (UTC)")
	fmt.Fprintf(writer, "%s\t%s/%s\t%s\t%s\t%s\t%s\n",
		sanitizeInline(snap.SourceName),
		snap.FromCurrency,
		snap.ToCurrency,
		formatDecimal(snap.BuyRate, 4),
		formatDecimal(snap.SellRate, 4),
		formatTime(snap.FetchedAt),
		snap.ObservedAt.UTC().Format(time.RFC3339),
	)
	return writer.Flush()
}
