package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/relaygrid/pointsx/pkg/db/postgres"
	"go.uber.org/zap"
)

// DB is the points ledger store: accounts, devices, balances, the append-only
// event table, raw heartbeat/probe data and the derived rollup tables.
type DB struct {
	postgres.Client
}

// New creates the ledger store with a component-specific pool configuration.
func New(ctx context.Context, logger *zap.Logger, component string) (*DB, error) {
	client, err := postgres.New(ctx, logger.With(zap.String("component", component)),
		postgres.GetPoolConfigForComponent(component))
	if err != nil {
		return nil, err
	}

	db := &DB{Client: client}
	if err := db.InitializeDB(ctx); err != nil {
		return nil, err
	}

	return db, nil
}

// Close terminates the underlying PostgreSQL connection
func (db *DB) Close() error {
	db.Pool.Close()
	return nil
}

// InitializeDB ensures the required tables exist.
// Creates independent tables in parallel for efficiency.
func (db *DB) InitializeDB(ctx context.Context) error {
	initStart := time.Now()

	// accounts first: everything else references it.
	if err := db.initAccounts(ctx); err != nil {
		return fmt.Errorf("init accounts: %w", err)
	}
	if err := db.initDevices(ctx); err != nil {
		return fmt.Errorf("init devices: %w", err)
	}

	initOps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"balances", db.initBalances},
		{"ledger_events", db.initLedgerEvents},
		{"heartbeats", db.initHeartbeats},
		{"quality_probes", db.initQualityProbes},
		{"rollups_hourly", db.initRollupsHourly},
		{"rollups_daily", db.initRollupsDaily},
	}

	var wg sync.WaitGroup
	errChan := make(chan error, len(initOps))

	for _, op := range initOps {
		wg.Add(1)
		go func(name string, fn func(context.Context) error) {
			defer wg.Done()
			db.Logger.Debug("Initializing table", zap.String("table", name))
			if err := fn(ctx); err != nil {
				errChan <- fmt.Errorf("init %s: %w", name, err)
			}
		}(op.name, op.fn)
	}

	wg.Wait()
	close(errChan)

	for err := range errChan {
		if err != nil {
			return err
		}
	}

	db.Logger.Info("Ledger database initialized", zap.Duration("took", time.Since(initStart)))
	return nil
}

func (db *DB) initAccounts(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`
	return db.Exec(ctx, query)
}

func (db *DB) initDevices(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS devices (
			id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL REFERENCES accounts(id),
			public_key TEXT NOT NULL UNIQUE,
			fingerprint TEXT NOT NULL DEFAULT '',
			region TEXT NOT NULL DEFAULT '',
			asn TEXT NOT NULL DEFAULT '',
			risk_score INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`
	return db.Exec(ctx, query)
}

func (db *DB) initBalances(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS balances (
			account_id TEXT PRIMARY KEY REFERENCES accounts(id),
			points BIGINT NOT NULL DEFAULT 0 CHECK (points >= 0),
			token_amount NUMERIC(20,4) NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`
	return db.Exec(ctx, query)
}

func (db *DB) initLedgerEvents(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS ledger_events (
			id BIGSERIAL PRIMARY KEY,
			account_id TEXT NOT NULL,
			device_id TEXT,
			type TEXT NOT NULL,
			amount BIGINT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			rule_version TEXT NOT NULL DEFAULT '',
			dedupe_key TEXT NOT NULL UNIQUE,
			occurred_at TIMESTAMPTZ NOT NULL,
			meta JSONB
		)
	`
	if err := db.Exec(ctx, query); err != nil {
		return err
	}
	if err := db.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_ledger_events_account_occurred
		ON ledger_events (account_id, occurred_at)`); err != nil {
		return err
	}
	return db.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_ledger_events_account_type_occurred
		ON ledger_events (account_id, type, occurred_at DESC)`)
}

func (db *DB) initHeartbeats(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS heartbeats (
			device_id TEXT NOT NULL REFERENCES devices(id),
			minute TIMESTAMPTZ NOT NULL,
			latency_ms INT NOT NULL DEFAULT 0,
			signature_ok BOOLEAN NOT NULL,
			PRIMARY KEY (device_id, minute)
		)
	`
	return db.Exec(ctx, query)
}

func (db *DB) initQualityProbes(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS quality_probes (
			id BIGSERIAL PRIMARY KEY,
			device_id TEXT NOT NULL REFERENCES devices(id),
			started_at TIMESTAMPTZ NOT NULL,
			download_mbps DOUBLE PRECISION NOT NULL DEFAULT 0,
			upload_mbps DOUBLE PRECISION NOT NULL DEFAULT 0,
			latency_ms INT NOT NULL DEFAULT 0,
			success BOOLEAN NOT NULL DEFAULT true
		)
	`
	if err := db.Exec(ctx, query); err != nil {
		return err
	}
	return db.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_quality_probes_started
		ON quality_probes (started_at)`)
}

func (db *DB) initRollupsHourly(ctx context.Context) error {
	return db.Exec(ctx, rollupTableDDL("rollups_hourly"))
}

func (db *DB) initRollupsDaily(ctx context.Context) error {
	return db.Exec(ctx, rollupTableDDL("rollups_daily"))
}

func rollupTableDDL(table string) string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			window_start TIMESTAMPTZ NOT NULL,
			account_id TEXT NOT NULL,
			points_earned BIGINT NOT NULL DEFAULT 0,
			uptime_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
			avg_download_mbps DOUBLE PRECISION NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (window_start, account_id)
		)
	`, table)
}
