package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"exchange-rates-client/internal/alerting"
	"exchange-rates-client/internal/api"
	"exchange-rates-client/internal/config"
	"exchange-rates-client/internal/rates"
	"exchange-rates-client/internal/scheduler"
	"exchange-rates-client/internal/storage"
)

var hundred = decimal.NewFromInt(100)

// RatesSource is the part of the rates store the watcher polls.
type RatesSource interface {
	FetchRates(ctx context.Context) error
	RefreshRates(ctx context.Context) (api.FetchResult, error)
	State() rates.State
}

// Publisher shares the newest polled rates with other readers.
type Publisher interface {
	PublishLatest(ctx context.Context, snapshots []storage.Snapshot) error
}

// TickReport summarises one watch tick.
type TickReport struct {
	At       time.Time
	Rows     int
	Archived int
	Cached   int
	Alerts   int
	Skipped  bool
}

// Service polls the rates table, archives what it sees and alerts on moves.
type Service struct {
	scheduler  *scheduler.Scheduler
	rates      RatesSource
	archive    storage.SnapshotStore
	alertStore storage.AlertStore
	locker     storage.AdvisoryLocker
	notifier   alerting.Notifier
	publisher  Publisher
	logger     zerolog.Logger

	recompute bool
	threshold decimal.Decimal
	channels  []string
	alertsOn  bool
	lockKey   int64

	mu       sync.Mutex
	previous map[string]decimal.Decimal
	onTick   func(TickReport)
}

// New constructs the watch service. archive, alertStore and notifier may be nil.
func New(cfg *config.Config, sched *scheduler.Scheduler, source RatesSource, archive storage.SnapshotStore, alertStore storage.AlertStore, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	threshold := decimal.Zero
	if cfg.Watch.ThresholdPct > 0 {
		threshold = decimal.NewFromFloat(cfg.Watch.ThresholdPct)
	}

	var locker storage.AdvisoryLocker
	if l, ok := archive.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		scheduler:  sched,
		rates:      source,
		archive:    archive,
		alertStore: alertStore,
		locker:     locker,
		notifier:   notifier,
		logger:     logger.With().Str("component", "watch").Logger(),
		recompute:  cfg.Watch.TriggerRecompute,
		threshold:  threshold,
		channels:   cfg.Alerting.Channels,
		alertsOn:   cfg.Alerting.Enabled,
		lockKey:    cfg.Watch.LockKey,
		previous:   make(map[string]decimal.Decimal),
	}
}

// OnTick registers a callback receiving every tick report.
func (s *Service) OnTick(fn func(TickReport)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTick = fn
}

// SetPublisher makes every tick publish its rows to p.
func (s *Service) SetPublisher(p Publisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publisher = p
}

// Seed primes the move detector with the newest archived rates so that the
// first tick after a restart can alert.
func (s *Service) Seed(ctx context.Context) error {
	if s.archive == nil {
		return nil
	}
	latest, err := s.archive.LatestSnapshots(ctx)
	if err != nil {
		return fmt.Errorf("seed from archive: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, snap := range latest {
		s.previous[snap.Key()] = snap.BuyRate
	}
	s.logger.Debug().Int("series", len(latest)).Msg("seeded from archive")
	return nil
}

// Run begins the polling loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessTick)
}

// ProcessTick runs one poll unless another watcher holds the archive lock.
func (s *Service) ProcessTick(ctx context.Context, at time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("tick", at).Msg("skip tick because advisory lock held elsewhere")
		s.report(TickReport{At: at, Skipped: true})
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	report, err := s.executeTick(ctx, at)
	if err != nil {
		return err
	}
	s.report(report)
	return nil
}

func (s *Service) executeTick(ctx context.Context, at time.Time) (TickReport, error) {
	report := TickReport{At: at}

	if s.recompute {
		if _, err := s.rates.RefreshRates(ctx); err != nil {
			// the page re-read may still have succeeded
			if st := s.rates.State(); st.Err != nil || !st.Loaded {
				return report, err
			}
			s.logger.Warn().Err(err).Msg("recompute failed, continuing with re-read page")
		}
	} else if err := s.rates.FetchRates(ctx); err != nil {
		return report, fmt.Errorf("poll rates: %w", err)
	}

	state := s.rates.State()
	report.Rows = len(state.Rates)

	snapshots := make([]storage.Snapshot, 0, len(state.Rates))
	for _, r := range state.Rates {
		snapshots = append(snapshots, storage.Snapshot{
			SourceName:   r.SourceName,
			FromCurrency: r.FromCurrencyCode,
			ToCurrency:   r.ToCurrencyCode,
			BuyRate:      r.BuyRate,
			SellRate:     r.SellRate,
			FetchedAt:    r.FetchedAt.Time,
			ObservedAt:   at,
		})
	}

	if s.archive != nil && len(snapshots) > 0 {
		if err := s.archive.UpsertSnapshots(ctx, snapshots); err != nil {
			s.logger.Error().Err(err).Time("tick", at).Msg("failed to archive snapshots")
		} else {
			report.Archived = len(snapshots)
		}
	}

	s.mu.Lock()
	publisher := s.publisher
	s.mu.Unlock()
	if publisher != nil && len(snapshots) > 0 {
		if err := publisher.PublishLatest(ctx, snapshots); err != nil {
			s.logger.Error().Err(err).Time("tick", at).Msg("failed to publish latest rates")
		} else {
			report.Cached = len(snapshots)
		}
	}

	report.Alerts = s.detectMoves(ctx, at, snapshots)

	s.logger.Info().Time("tick", at).
		Int("rows", report.Rows).
		Int("archived", report.Archived).
		Int("cached", report.Cached).
		Int("alerts", report.Alerts).
		Msg("tick recorded")
	return report, nil
}

// detectMoves compares every row with the previous observation of its series
// and alerts when the buy rate moved by at least the threshold.
func (s *Service) detectMoves(ctx context.Context, at time.Time, snapshots []storage.Snapshot) int {
	s.mu.Lock()
	var moves []alerting.Notification
	for _, snap := range snapshots {
		key := snap.Key()
		prev, seen := s.previous[key]
		s.previous[key] = snap.BuyRate
		if !seen || prev.IsZero() {
			continue
		}

		change := snap.BuyRate.Sub(prev).Div(prev).Mul(hundred)
		if s.threshold.IsZero() || change.Abs().LessThan(s.threshold) {
			continue
		}
		moves = append(moves, alerting.Notification{
			ObservedAt:   at,
			SourceName:   snap.SourceName,
			Pair:         snap.FromCurrency + "/" + snap.ToCurrency,
			PreviousBuy:  prev,
			CurrentBuy:   snap.BuyRate,
			ChangePct:    change,
			ThresholdPct: s.threshold,
			Direction:    classifyMove(change),
			Channels:     s.channels,
		})
	}
	s.mu.Unlock()

	if !s.alertsOn || s.notifier == nil {
		return 0
	}

	for _, note := range moves {
		if s.alertStore != nil {
			record := storage.AlertRecord{
				ObservedAt:   note.ObservedAt,
				SourceName:   note.SourceName,
				Pair:         note.Pair,
				PreviousBuy:  note.PreviousBuy,
				CurrentBuy:   note.CurrentBuy,
				ChangePct:    note.ChangePct,
				ThresholdPct: note.ThresholdPct,
				Direction:    note.Direction,
				Channels:     note.Channels,
			}
			if _, err := s.alertStore.InsertAlert(ctx, record); err != nil {
				s.logger.Error().Err(err).Str("pair", note.Pair).Msg("failed to persist alert record")
			}
		}
		if err := s.notifier.Notify(ctx, note); err != nil {
			s.logger.Error().Err(err).Str("pair", note.Pair).Msg("failed to dispatch alert")
		}
	}
	return len(moves)
}

func (s *Service) report(r TickReport) {
	s.mu.Lock()
	fn := s.onTick
	s.mu.Unlock()
	if fn != nil {
		fn(r)
	}
}

func classifyMove(d decimal.Decimal) string {
	switch d.Sign() {
	case 1:
		return "up"
	case -1:
		return "down"
	default:
		return "flat"
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
