package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	upsertSnapshotSQL = `INSERT INTO rate_snapshots (
        source_name,
        from_code,
        to_code,
        buy_rate,
        sell_rate,
        fetched_at,
        observed_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    )
    ON CONFLICT (source_name, from_code, to_code, fetched_at) DO UPDATE
    SET
        buy_rate    = EXCLUDED.buy_rate,
        sell_rate   = EXCLUDED.sell_rate,
        observed_at = EXCLUDED.observed_at;`

	listRecentSnapshotsSQL = `SELECT
        source_name,
        from_code,
        to_code,
        buy_rate::text,
        sell_rate::text,
        fetched_at,
        observed_at,
        created_at
    FROM rate_snapshots
    ORDER BY observed_at DESC, source_name, from_code, to_code
    LIMIT $1;`

	latestSnapshotsSQL = `SELECT DISTINCT ON (source_name, from_code, to_code)
        source_name,
        from_code,
        to_code,
        buy_rate::text,
        sell_rate::text,
        fetched_at,
        observed_at,
        created_at
    FROM rate_snapshots
    ORDER BY source_name, from_code, to_code, fetched_at DESC;`

	countSnapshotsSQL = `SELECT COUNT(*) FROM rate_snapshots;`

	insertAlertSQL = `INSERT INTO rate_alerts (
        observed_at,
        source_name,
        pair,
        previous_buy,
        current_buy,
        change_pct,
        threshold_pct,
        direction,
        channels
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    )
    ON CONFLICT (observed_at, source_name, pair) DO UPDATE
    SET change_pct    = EXCLUDED.change_pct,
        threshold_pct = EXCLUDED.threshold_pct,
        direction     = EXCLUDED.direction,
        channels      = EXCLUDED.channels
    RETURNING id, created_at;`

	listRecentAlertsSQL = `SELECT
        id,
        observed_at,
        source_name,
        pair,
        previous_buy::text,
        current_buy::text,
        change_pct::text,
        threshold_pct::text,
        direction,
        channels,
        created_at
    FROM rate_alerts
    ORDER BY created_at DESC
    LIMIT $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// SnapshotStore archives rate rows.
type SnapshotStore interface {
	UpsertSnapshots(ctx context.Context, snapshots []Snapshot) error
	ListRecentSnapshots(ctx context.Context, limit int) ([]Snapshot, error)
	LatestSnapshots(ctx context.Context) ([]Snapshot, error)
	CountSnapshots(ctx context.Context) (int64, error)
}

// AlertStore defines operations for alert auditing.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error)
	ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to snapshots and alerts.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// a failed unlock is released with the session when the connection closes
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

// UpsertSnapshots archives rows in one batch.
func (s *Store) UpsertSnapshots(ctx context.Context, snapshots []Snapshot) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if len(snapshots) == 0 {
		return nil
	}

	results := pool.SendBatch(ctx, snapshotBatch(snapshots))
	defer results.Close()

	for i := range snapshots {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert snapshot %s: %w", snapshots[i].Key(), err)
		}
	}
	return nil
}

// ListRecentSnapshots lists the most recently observed rows.
func (s *Store) ListRecentSnapshots(ctx context.Context, limit int) ([]Snapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSnapshotsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent snapshots: %w", queryErr)
	}
	return collectSnapshots(rows, limit)
}

// LatestSnapshots returns the newest row of every source and pair.
func (s *Store) LatestSnapshots(ctx context.Context) ([]Snapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, latestSnapshotsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("latest snapshots: %w", queryErr)
	}
	return collectSnapshots(rows, 0)
}

// CountSnapshots counts archived rows.
func (s *Store) CountSnapshots(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countSnapshotsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count snapshots: %w", scanErr)
	}
	return count, nil
}

// InsertAlert persists an alert emission.
func (s *Store) InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRecord{}, err
	}

	row := pool.QueryRow(ctx, insertAlertSQL, alertArgs(alert)...)

	rec := alert
	if scanErr := row.Scan(&rec.ID, &rec.CreatedAt); scanErr != nil {
		return AlertRecord{}, fmt.Errorf("insert alert: %w", scanErr)
	}
	return rec, nil
}

// ListRecentAlerts lists most recent alerts.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]AlertRecord, 0, limit)
	for rows.Next() {
		rec, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

func collectSnapshots(rows pgx.Rows, capacity int) ([]Snapshot, error) {
	defer rows.Close()

	snapshots := make([]Snapshot, 0, capacity)
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return snapshots, nil
}

// snapshotBatch queues one upsert per row. Decimals travel as text so that
// numeric columns keep their exact scale.
func snapshotBatch(snapshots []Snapshot) *pgx.Batch {
	batch := &pgx.Batch{}
	for _, snap := range snapshots {
		batch.Queue(upsertSnapshotSQL,
			snap.SourceName,
			snap.FromCurrency,
			snap.ToCurrency,
			snap.BuyRate.String(),
			snap.SellRate.String(),
			snap.FetchedAt,
			snap.ObservedAt,
		)
	}
	return batch
}

func alertArgs(alert AlertRecord) []any {
	return []any{
		alert.ObservedAt,
		alert.SourceName,
		alert.Pair,
		alert.PreviousBuy.String(),
		alert.CurrentBuy.String(),
		alert.ChangePct.String(),
		alert.ThresholdPct.String(),
		alert.Direction,
		alert.Channels,
	}
}

func scanAlert(row pgx.Row) (AlertRecord, error) {
	var (
		rec                                  AlertRecord
		previous, current, change, threshold string
	)
	if err := row.Scan(
		&rec.ID,
		&rec.ObservedAt,
		&rec.SourceName,
		&rec.Pair,
		&previous,
		&current,
		&change,
		&threshold,
		&rec.Direction,
		&rec.Channels,
		&rec.CreatedAt,
	); err != nil {
		return AlertRecord{}, err
	}

	if err := parseDecimals(
		decimalField{"previous buy", previous, &rec.PreviousBuy},
		decimalField{"current buy", current, &rec.CurrentBuy},
		decimalField{"change pct", change, &rec.ChangePct},
		decimalField{"threshold pct", threshold, &rec.ThresholdPct},
	); err != nil {
		return AlertRecord{}, err
	}
	return rec, nil
}

func scanSnapshot(row pgx.Row) (Snapshot, error) {
	var (
		snap      Snapshot
		buy, sell string
	)
	if err := row.Scan(
		&snap.SourceName,
		&snap.FromCurrency,
		&snap.ToCurrency,
		&buy,
		&sell,
		&snap.FetchedAt,
		&snap.ObservedAt,
		&snap.CreatedAt,
	); err != nil {
		return Snapshot{}, err
	}

	if err := parseDecimals(
		decimalField{"buy rate", buy, &snap.BuyRate},
		decimalField{"sell rate", sell, &snap.SellRate},
	); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

type decimalField struct {
	name string
	raw  string
	dst  *decimal.Decimal
}

func parseDecimals(fields ...decimalField) error {
	for _, f := range fields {
		value, err := decimal.NewFromString(f.raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", f.name, err)
		}
		*f.dst = value
	}
	return nil
}

var (
	_ SnapshotStore  = (*Store)(nil)
	_ AlertStore     = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
