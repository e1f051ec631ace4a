package ledger

import (
	"context"
	"fmt"
	"time"

	models "github.com/relaygrid/pointsx/pkg/db/models/ledger"
)

// Granularity selects which rollup table a query touches.
type Granularity string

const (
	Hourly Granularity = "hourly"
	Daily  Granularity = "daily"
)

func (g Granularity) table() string {
	if g == Daily {
		return "rollups_daily"
	}
	return "rollups_hourly"
}

// EarnedPointsByAccount sums earn-type credits per account over [start, end).
// Conversion debits are excluded: rollups represent earned activity, not net
// balance.
func (db *DB) EarnedPointsByAccount(ctx context.Context, start, end time.Time) (map[string]int64, error) {
	query := `
		SELECT account_id, SUM(amount)
		FROM ledger_events
		WHERE occurred_at >= $1 AND occurred_at < $2 AND amount > 0 AND type <> $3
		GROUP BY account_id
	`
	rows, err := db.GetExecutor(ctx).Query(ctx, query, start, end, string(models.TypeConvert))
	if err != nil {
		return nil, fmt.Errorf("earned points by account: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var accountID string
		var sum int64
		if err := rows.Scan(&accountID, &sum); err != nil {
			return nil, err
		}
		out[accountID] = sum
	}
	return out, rows.Err()
}

// HeartbeatMinutesByAccount counts distinct heartbeat minute-buckets per
// account over [start, end). Minutes are distinct across an account's
// devices, so uptime can never exceed the window length.
func (db *DB) HeartbeatMinutesByAccount(ctx context.Context, start, end time.Time) (map[string]int64, error) {
	query := `
		SELECT d.account_id, COUNT(DISTINCT h.minute)
		FROM heartbeats h
		JOIN devices d ON d.id = h.device_id
		WHERE h.minute >= $1 AND h.minute < $2
		GROUP BY d.account_id
	`
	rows, err := db.GetExecutor(ctx).Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("heartbeat minutes by account: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var accountID string
		var minutes int64
		if err := rows.Scan(&accountID, &minutes); err != nil {
			return nil, err
		}
		out[accountID] = minutes
	}
	return out, rows.Err()
}

// AvgDownloadByAccount averages probe download bandwidth per account over
// [start, end).
func (db *DB) AvgDownloadByAccount(ctx context.Context, start, end time.Time) (map[string]float64, error) {
	query := `
		SELECT d.account_id, AVG(p.download_mbps)
		FROM quality_probes p
		JOIN devices d ON d.id = p.device_id
		WHERE p.started_at >= $1 AND p.started_at < $2
		GROUP BY d.account_id
	`
	rows, err := db.GetExecutor(ctx).Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("avg download by account: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var accountID string
		var avg float64
		if err := rows.Scan(&accountID, &avg); err != nil {
			return nil, err
		}
		out[accountID] = avg
	}
	return out, rows.Err()
}

// UpsertRollup writes one rollup row. Re-running a window overwrites the row
// with values recomputed from raw data, never accumulates.
func (db *DB) UpsertRollup(ctx context.Context, g Granularity, r *models.Rollup) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (window_start, account_id, points_earned, uptime_pct, avg_download_mbps, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (window_start, account_id) DO UPDATE SET
			points_earned = EXCLUDED.points_earned,
			uptime_pct = EXCLUDED.uptime_pct,
			avg_download_mbps = EXCLUDED.avg_download_mbps,
			updated_at = now()
	`, g.table())

	exec := db.GetExecutor(ctx)
	_, err := exec.Exec(ctx, query,
		r.WindowStart, r.AccountID, r.PointsEarned, r.UptimePct, r.AvgDownloadMbps)
	if err != nil {
		return fmt.Errorf("upsert %s rollup: %w", g, err)
	}
	return nil
}

// GetRollup reads one rollup row for a window.
func (db *DB) GetRollup(ctx context.Context, g Granularity, windowStart time.Time, ref models.AccountRef) (*models.Rollup, error) {
	query := fmt.Sprintf(`
		SELECT window_start, account_id, points_earned, uptime_pct, avg_download_mbps, updated_at
		FROM %s WHERE window_start = $1 AND account_id = $2
	`, g.table())

	var r models.Rollup
	err := db.GetExecutor(ctx).QueryRow(ctx, query, windowStart, ref.Key()).Scan(
		&r.WindowStart, &r.AccountID, &r.PointsEarned, &r.UptimePct, &r.AvgDownloadMbps, &r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get %s rollup: %w", g, err)
	}
	return &r, nil
}

// ListRollups returns the most recent rollup rows for an account, newest first.
func (db *DB) ListRollups(ctx context.Context, g Granularity, ref models.AccountRef, limit int) ([]*models.Rollup, error) {
	query := fmt.Sprintf(`
		SELECT window_start, account_id, points_earned, uptime_pct, avg_download_mbps, updated_at
		FROM %s WHERE account_id = $1
		ORDER BY window_start DESC
		LIMIT $2
	`, g.table())

	rows, err := db.GetExecutor(ctx).Query(ctx, query, ref.Key(), limit)
	if err != nil {
		return nil, fmt.Errorf("list %s rollups: %w", g, err)
	}
	defer rows.Close()

	out := make([]*models.Rollup, 0, limit)
	for rows.Next() {
		var r models.Rollup
		if err := rows.Scan(&r.WindowStart, &r.AccountID, &r.PointsEarned,
			&r.UptimePct, &r.AvgDownloadMbps, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
