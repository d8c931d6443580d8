package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"exchange-rates-client/internal/cache"
	"exchange-rates-client/internal/scheduler"
	"exchange-rates-client/internal/service"
	"exchange-rates-client/internal/storage"
)

// WatchOptions override the watch section of the config for one run.
type WatchOptions struct {
	Interval  time.Duration
	Recompute bool
	Archive   bool
	Once      bool
}

// Watch polls the rates table until interrupted, archiving rows and alerting
// on moves as configured.
func (a *App) Watch(ctx context.Context, opts WatchOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := *a.Config
	if opts.Interval > 0 {
		cfg.Watch.Interval = opts.Interval
	}
	if opts.Recompute {
		cfg.Watch.TriggerRecompute = true
	}
	if opts.Archive {
		cfg.Watch.Archive = true
	}

	if cfg.Watch.TriggerRecompute {
		if err := a.requireAdmin(ctx); err != nil {
			return fmt.Errorf("recompute needs an admin session: %w", err)
		}
	}

	var (
		archive    storage.SnapshotStore
		alertStore storage.AlertStore
	)
	if cfg.Watch.Archive {
		store, closeStore, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		if store == nil {
			return errors.New("database.dsn not configured; cannot archive")
		}
		defer closeStore()
		archive = store
		alertStore = store
	}

	sched := scheduler.New(scheduler.Options{
		Interval:        cfg.Watch.Interval,
		AlignToInterval: cfg.Watch.AlignToInterval,
		StartupDelay:    cfg.Watch.StartupDelay,
		Immediate:       true,
	}, a.Logger)

	svc := service.New(&cfg, sched, a.Rates, archive, alertStore, a.newNotifier(), a.Logger)
	svc.OnTick(func(r service.TickReport) {
		if r.Skipped {
			fmt.Fprintf(a.Out, "%s  skipped, another watcher holds the lock\n", r.At.UTC().Format(time.RFC3339))
			return
		}
		fmt.Fprintf(a.Out, "%s  rows=%d archived=%d cached=%d alerts=%d\n", r.At.UTC().Format(time.RFC3339), r.Rows, r.Archived, r.Cached, r.Alerts)
	})

	if cfg.Cache.Addr != "" {
		publisher, err := cache.NewRedis(ctx, cfg.Cache, a.Logger)
		if err != nil {
			return err
		}
		defer publisher.Close()
		svc.SetPublisher(publisher)
	}

	if err := svc.Seed(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("starting without archived baseline")
	}

	if opts.Once {
		return svc.ProcessTick(ctx, time.Now().UTC())
	}

	a.Logger.Info().Dur("interval", cfg.Watch.Interval).Msg("starting watch")
	err := svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("watch terminated with error")
		return err
	}

	a.Logger.Info().Msg("watch stopped")
	return nil
}
