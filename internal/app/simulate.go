package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"exchange-rates-client/internal/api"
	"exchange-rates-client/internal/rates"
	"exchange-rates-client/internal/service"
)

// SimulateOptions describe a synthetic move of one pair.
type SimulateOptions struct {
	Source   string
	Pair     string
	Previous decimal.Decimal
	Current  decimal.Decimal
}

// SimulateAlert runs two watch ticks over a fixed rate table, moving the buy
// rate from Previous to Current, so the configured alert channels can be
// checked end to end without touching the server.
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is not enabled")
	}

	from, to, ok := strings.Cut(strings.ToUpper(opts.Pair), "/")
	if !ok || from == "" || to == "" {
		return errors.New("pair must look like USD/UAH")
	}

	source := &staticRates{row: api.Rate{
		SourceName:       opts.Source,
		FromCurrencyCode: from,
		ToCurrencyCode:   to,
		BuyRate:          opts.Previous,
		SellRate:         opts.Previous,
	}}

	cfg := *a.Config
	cfg.Watch.TriggerRecompute = false
	cfg.Watch.LockKey = 0
	svc := service.New(&cfg, nil, source, nil, nil, a.newNotifier(), a.Logger)

	at := time.Now().UTC()
	if err := svc.ProcessTick(ctx, at); err != nil {
		return err
	}

	var report service.TickReport
	svc.OnTick(func(r service.TickReport) { report = r })

	source.row.BuyRate = opts.Current
	source.row.SellRate = opts.Current
	if err := svc.ProcessTick(ctx, at.Add(cfg.Watch.Interval)); err != nil {
		return err
	}

	if report.Alerts == 0 {
		fmt.Fprintf(a.Out, "move below watch.threshold_pct (%.3f%%), no alert sent\n", cfg.Watch.ThresholdPct)
		return nil
	}
	fmt.Fprintf(a.Out, "alert sent to %s\n", strings.Join(cfg.Alerting.Channels, ", "))
	return nil
}

// staticRates serves a one-row rate table.
type staticRates struct {
	row api.Rate
}

func (s *staticRates) FetchRates(context.Context) error {
	return nil
}

func (s *staticRates) RefreshRates(context.Context) (api.FetchResult, error) {
	return api.FetchResult{Count: 1}, nil
}

func (s *staticRates) State() rates.State {
	row := s.row
	row.FetchedAt = api.Timestamp{Time: time.Now().UTC()}
	return rates.State{
		Page:     1,
		PageSize: 1,
		Rates:    []api.Rate{row},
		Envelope: rates.Envelope{Page: 1, PageSize: 1, TotalCount: 1, TotalPages: 1},
		Loaded:   true,
	}
}

var _ service.RatesSource = (*staticRates)(nil)
