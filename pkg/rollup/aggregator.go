package rollup

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/relaygrid/pointsx/pkg/db/ledger"
	models "github.com/relaygrid/pointsx/pkg/db/models/ledger"
	"github.com/relaygrid/pointsx/pkg/reward"
	"go.uber.org/zap"
)

// Store is the slice of the ledger store the aggregator reads and writes.
// *ledger.DB satisfies it; tests substitute a fake.
type Store interface {
	EarnedPointsByAccount(ctx context.Context, start, end time.Time) (map[string]int64, error)
	HeartbeatMinutesByAccount(ctx context.Context, start, end time.Time) (map[string]int64, error)
	AvgDownloadByAccount(ctx context.Context, start, end time.Time) (map[string]float64, error)
	UpsertRollup(ctx context.Context, g ledger.Granularity, r *models.Rollup) error
	MaxRiskScore(ctx context.Context, accountID string) (int, error)
	Award(ctx context.Context, ev *models.LedgerEvent) (ledger.AwardResult, error)
}

// Aggregator materializes hourly and daily summaries from raw ledger,
// heartbeat and probe data. Every run is an idempotent function of the
// window's raw data: re-running after a crash overwrites the same rows and
// the bonus pass dedupes on (account, window).
type Aggregator struct {
	store  Store
	rule   reward.Rule
	logger *zap.Logger
	pool   pond.Pool
}

// New creates an aggregator with a bounded upsert pool.
func New(store Store, rule reward.Rule, logger *zap.Logger, workers int) *Aggregator {
	if workers <= 0 {
		workers = 8
	}
	return &Aggregator{
		store:  store,
		rule:   rule,
		logger: logger,
		pool:   pond.NewPool(workers),
	}
}

// RunHourly materializes the hourly rollup for w and then runs the quality
// bonus pass over it. Returns the number of accounts processed.
func (a *Aggregator) RunHourly(ctx context.Context, w Window) (int, error) {
	rollups, err := a.materialize(ctx, ledger.Hourly, w)
	if err != nil {
		return 0, err
	}
	if err := a.awardBonuses(ctx, w, rollups); err != nil {
		return 0, err
	}
	return len(rollups), nil
}

// RunDaily materializes the daily rollup for w.
func (a *Aggregator) RunDaily(ctx context.Context, w Window) (int, error) {
	rollups, err := a.materialize(ctx, ledger.Daily, w)
	if err != nil {
		return 0, err
	}
	return len(rollups), nil
}

// materialize computes one rollup row per account seen in the window plus the
// synthetic system row, and upserts them in parallel.
func (a *Aggregator) materialize(ctx context.Context, g ledger.Granularity, w Window) ([]*models.Rollup, error) {
	earned, err := a.store.EarnedPointsByAccount(ctx, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s %s: %w", g, w, err)
	}
	minutes, err := a.store.HeartbeatMinutesByAccount(ctx, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s %s: %w", g, w, err)
	}
	bandwidth, err := a.store.AvgDownloadByAccount(ctx, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s %s: %w", g, w, err)
	}

	accounts := make(map[string]struct{}, len(earned))
	for id := range earned {
		accounts[id] = struct{}{}
	}
	for id := range minutes {
		accounts[id] = struct{}{}
	}
	for id := range bandwidth {
		accounts[id] = struct{}{}
	}

	ids := make([]string, 0, len(accounts))
	for id := range accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	totalMinutes := w.Minutes()
	rollups := make([]*models.Rollup, 0, len(ids))
	for _, id := range ids {
		rollups = append(rollups, &models.Rollup{
			WindowStart:     w.Start,
			AccountID:       models.RealAccount(id).Key(),
			PointsEarned:    earned[id],
			UptimePct:       float64(minutes[id]) / totalMinutes * 100,
			AvgDownloadMbps: bandwidth[id],
		})
	}

	system := systemRow(w, rollups)

	group := a.pool.NewGroupContext(ctx)
	for _, r := range rollups {
		group.SubmitErr(func() error {
			return a.store.UpsertRollup(ctx, g, r)
		})
	}
	group.SubmitErr(func() error {
		return a.store.UpsertRollup(ctx, g, system)
	})
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("upsert %s rollups %s: %w", g, w, err)
	}

	a.logger.Info("Rollup materialized",
		zap.String("granularity", string(g)),
		zap.String("window", w.String()),
		zap.Int("accounts", len(rollups)))

	return rollups, nil
}

// systemRow sums points and averages quality metrics across the window's
// accounts into the synthetic aggregate row.
func systemRow(w Window, rollups []*models.Rollup) *models.Rollup {
	sys := &models.Rollup{
		WindowStart: w.Start,
		AccountID:   models.SystemAccount().Key(),
	}
	if len(rollups) == 0 {
		return sys
	}

	var uptimeSum, bwSum float64
	for _, r := range rollups {
		sys.PointsEarned += r.PointsEarned
		uptimeSum += r.UptimePct
		bwSum += r.AvgDownloadMbps
	}
	n := float64(len(rollups))
	sys.UptimePct = uptimeSum / n
	sys.AvgDownloadMbps = bwSum / n
	return sys
}

// awardBonuses scores each account's hourly rollup and credits eligible
// accounts through the ledger writer. The (account, windowStart) dedupe key
// makes a re-run a no-op.
func (a *Aggregator) awardBonuses(ctx context.Context, w Window, rollups []*models.Rollup) error {
	for _, r := range rollups {
		risk, err := a.store.MaxRiskScore(ctx, r.AccountID)
		if err != nil {
			return err
		}

		result := reward.Score(a.rule, reward.Input{
			UptimePct:    r.UptimePct,
			DownloadMbps: r.AvgDownloadMbps,
			RiskScore:    risk,
		})
		if !result.Eligible {
			a.logger.Debug("Account not eligible for quality bonus",
				zap.String("account", r.AccountID),
				zap.String("reason", result.Reason))
			continue
		}

		ev := &models.LedgerEvent{
			AccountID:   r.AccountID,
			Type:        models.TypeQualityBonus,
			Amount:      result.Points,
			Source:      "aggregator",
			RuleVersion: a.rule.Version,
			DedupeKey:   fmt.Sprintf("%s:QUALITY_BONUS:%d", r.AccountID, w.Start.Unix()),
			OccurredAt:  w.End,
			Meta: map[string]string{
				"uptimePct":    fmt.Sprintf("%.2f", r.UptimePct),
				"downloadMbps": fmt.Sprintf("%.2f", r.AvgDownloadMbps),
			},
		}
		awarded, err := a.store.Award(ctx, ev)
		if err != nil {
			return fmt.Errorf("award quality bonus to %s: %w", r.AccountID, err)
		}
		if !awarded.Duplicate {
			a.logger.Info("Quality bonus awarded",
				zap.String("account", r.AccountID),
				zap.Int64("points", result.Points))
		}
	}
	return nil
}
