package rollup_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/relaygrid/pointsx/pkg/db/ledger"
	models "github.com/relaygrid/pointsx/pkg/db/models/ledger"
	"github.com/relaygrid/pointsx/pkg/reward"
	"github.com/relaygrid/pointsx/pkg/rollup"
)

// fakeStore is an in-memory Store. Upserts run on the aggregator's pool, so
// every mutation takes the lock.
type fakeStore struct {
	mu sync.Mutex

	earned    map[string]int64
	minutes   map[string]int64
	bandwidth map[string]float64
	risk      map[string]int

	rollups map[ledger.Granularity]map[string]*models.Rollup // keyed by accountID
	events  map[string]*models.LedgerEvent                   // keyed by dedupe key
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		earned:    map[string]int64{},
		minutes:   map[string]int64{},
		bandwidth: map[string]float64{},
		risk:      map[string]int{},
		rollups:   map[ledger.Granularity]map[string]*models.Rollup{},
		events:    map[string]*models.LedgerEvent{},
	}
}

func (f *fakeStore) EarnedPointsByAccount(_ context.Context, _, _ time.Time) (map[string]int64, error) {
	return f.earned, nil
}

func (f *fakeStore) HeartbeatMinutesByAccount(_ context.Context, _, _ time.Time) (map[string]int64, error) {
	return f.minutes, nil
}

func (f *fakeStore) AvgDownloadByAccount(_ context.Context, _, _ time.Time) (map[string]float64, error) {
	return f.bandwidth, nil
}

func (f *fakeStore) UpsertRollup(_ context.Context, g ledger.Granularity, r *models.Rollup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rollups[g] == nil {
		f.rollups[g] = map[string]*models.Rollup{}
	}
	f.rollups[g][r.AccountID] = r
	return nil
}

func (f *fakeStore) MaxRiskScore(_ context.Context, accountID string) (int, error) {
	return f.risk[accountID], nil
}

func (f *fakeStore) Award(_ context.Context, ev *models.LedgerEvent) (ledger.AwardResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.events[ev.DedupeKey]; exists {
		return ledger.AwardResult{Duplicate: true}, nil
	}
	f.events[ev.DedupeKey] = ev
	return ledger.AwardResult{}, nil
}

func newAggregator(t *testing.T, store *fakeStore) *rollup.Aggregator {
	t.Helper()
	return rollup.New(store, reward.DefaultRule(), zaptest.NewLogger(t), 4)
}

func hour() rollup.Window {
	return rollup.HourWindow(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

func TestRunHourlyMaterializesRollups(t *testing.T) {
	store := newFakeStore()
	store.earned["acct_a"] = 120
	store.minutes["acct_a"] = 33 // 55% of the hour
	store.bandwidth["acct_a"] = 50
	store.earned["acct_b"] = 30
	store.minutes["acct_b"] = 60
	store.bandwidth["acct_b"] = 20

	agg := newAggregator(t, store)
	accounts, err := agg.RunHourly(context.Background(), hour())
	require.NoError(t, err)
	assert.Equal(t, 2, accounts)

	rows := store.rollups[ledger.Hourly]
	require.Len(t, rows, 3) // two accounts plus the system row

	a := rows["acct_a"]
	require.NotNil(t, a)
	assert.Equal(t, int64(120), a.PointsEarned)
	assert.InDelta(t, 55, a.UptimePct, 1e-9)
	assert.Equal(t, 50.0, a.AvgDownloadMbps)
}

func TestRunHourlySystemRowConservation(t *testing.T) {
	store := newFakeStore()
	store.earned["acct_a"] = 100
	store.minutes["acct_a"] = 30
	store.bandwidth["acct_a"] = 40
	store.earned["acct_b"] = 50
	store.minutes["acct_b"] = 60
	store.bandwidth["acct_b"] = 10

	agg := newAggregator(t, store)
	_, err := agg.RunHourly(context.Background(), hour())
	require.NoError(t, err)

	sys := store.rollups[ledger.Hourly][models.SystemAccountKey]
	require.NotNil(t, sys)
	assert.Equal(t, int64(150), sys.PointsEarned, "system points are the sum over accounts")
	assert.InDelta(t, 75, sys.UptimePct, 1e-9, "system uptime is the mean")
	assert.InDelta(t, 25, sys.AvgDownloadMbps, 1e-9, "system bandwidth is the mean")
}

func TestRunHourlyAwardsQualityBonus(t *testing.T) {
	store := newFakeStore()
	// 55% uptime and 50 Mbps at risk 1 scores 14 points under v1.
	store.minutes["acct_a"] = 33
	store.bandwidth["acct_a"] = 50
	store.risk["acct_a"] = 1
	// frozen account, same signals
	store.minutes["acct_frozen"] = 33
	store.bandwidth["acct_frozen"] = 50
	store.risk["acct_frozen"] = 10

	agg := newAggregator(t, store)
	w := hour()
	_, err := agg.RunHourly(context.Background(), w)
	require.NoError(t, err)

	require.Len(t, store.events, 1)
	for _, ev := range store.events {
		assert.Equal(t, "acct_a", ev.AccountID)
		assert.Equal(t, models.TypeQualityBonus, ev.Type)
		assert.Equal(t, int64(14), ev.Amount)
		assert.Equal(t, "v1", ev.RuleVersion)
		assert.Equal(t, w.End, ev.OccurredAt)
	}
}

func TestRunHourlyRerunIsIdempotent(t *testing.T) {
	store := newFakeStore()
	store.minutes["acct_a"] = 60
	store.bandwidth["acct_a"] = 100

	agg := newAggregator(t, store)
	w := hour()

	_, err := agg.RunHourly(context.Background(), w)
	require.NoError(t, err)
	_, err = agg.RunHourly(context.Background(), w)
	require.NoError(t, err)

	assert.Len(t, store.events, 1, "re-run must not double-credit the bonus")
	assert.Len(t, store.rollups[ledger.Hourly], 2, "re-run overwrites the same rows")
}

func TestRunDailySkipsBonuses(t *testing.T) {
	store := newFakeStore()
	store.minutes["acct_a"] = 1440
	store.bandwidth["acct_a"] = 100

	agg := newAggregator(t, store)
	w := rollup.DayWindow(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	accounts, err := agg.RunDaily(context.Background(), w)
	require.NoError(t, err)

	assert.Equal(t, 1, accounts)
	assert.Empty(t, store.events, "bonuses are hourly only")
	require.NotNil(t, store.rollups[ledger.Daily]["acct_a"])
	assert.InDelta(t, 100, store.rollups[ledger.Daily]["acct_a"].UptimePct, 1e-9)
}

func TestRunHourlyEmptyWindow(t *testing.T) {
	store := newFakeStore()

	agg := newAggregator(t, store)
	accounts, err := agg.RunHourly(context.Background(), hour())
	require.NoError(t, err)

	assert.Zero(t, accounts)
	sys := store.rollups[ledger.Hourly][models.SystemAccountKey]
	require.NotNil(t, sys, "system row is written even for an empty window")
	assert.Zero(t, sys.PointsEarned)
}
