package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	models "github.com/relaygrid/pointsx/pkg/db/models/ledger"
)

// AwardResult reports the outcome of a ledger write. Duplicate means the
// dedupe key had already been applied; the call is still a success and the
// balance was not re-incremented.
type AwardResult struct {
	Duplicate bool
	Balance   int64 // points after the write
}

// insertEvent appends the ledger event. Returns false when the dedupe key
// already exists (conflict swallowed, not an error).
func (db *DB) insertEvent(ctx context.Context, tx pgx.Tx, ev *models.LedgerEvent) (bool, error) {
	query := `
		INSERT INTO ledger_events (account_id, device_id, type, amount, source, rule_version, dedupe_key, occurred_at, meta)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (dedupe_key) DO NOTHING
	`
	tag, err := tx.Exec(ctx, query,
		ev.AccountID, ev.DeviceID, string(ev.Type), ev.Amount, ev.Source,
		ev.RuleVersion, ev.DedupeKey, ev.OccurredAt, ev.Meta)
	if err != nil {
		return false, fmt.Errorf("insert ledger event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// lockBalance creates the balance row if missing and locks it for the rest of
// the transaction. All concurrent writes for the same account serialize here.
func (db *DB) lockBalance(ctx context.Context, tx pgx.Tx, accountID string) (int64, error) {
	if _, err := tx.Exec(ctx,
		`INSERT INTO balances (account_id) VALUES ($1) ON CONFLICT (account_id) DO NOTHING`,
		accountID); err != nil {
		return 0, fmt.Errorf("ensure balance row: %w", err)
	}

	var points int64
	err := tx.QueryRow(ctx,
		`SELECT points FROM balances WHERE account_id = $1 FOR UPDATE`,
		accountID).Scan(&points)
	if err != nil {
		return 0, fmt.Errorf("lock balance row: %w", err)
	}
	return points, nil
}

// Award is the single choke-point that appends a ledger event and mutates the
// balance. Both writes commit together or neither. A dedupe-key conflict is
// reported as success with Duplicate=true and leaves the balance untouched.
func (db *DB) Award(ctx context.Context, ev *models.LedgerEvent) (AwardResult, error) {
	var res AwardResult
	err := db.BeginFunc(ctx, func(tx pgx.Tx) error {
		txCtx := db.WithTx(ctx, tx)

		exists, err := db.AccountExists(txCtx, ev.AccountID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrAccountNotFound
		}

		points, err := db.lockBalance(ctx, tx, ev.AccountID)
		if err != nil {
			return err
		}

		inserted, err := db.insertEvent(ctx, tx, ev)
		if err != nil {
			return err
		}
		if !inserted {
			res = AwardResult{Duplicate: true, Balance: points}
			return nil
		}

		err = tx.QueryRow(ctx,
			`UPDATE balances SET points = points + $2, updated_at = now()
			 WHERE account_id = $1 RETURNING points`,
			ev.AccountID, ev.Amount).Scan(&res.Balance)
		if err != nil {
			return fmt.Errorf("increment balance: %w", err)
		}
		return nil
	})
	if err != nil {
		return AwardResult{}, err
	}
	return res, nil
}

// EarnResult reports an accepted earn credit and the account's remaining
// daily budget.
type EarnResult struct {
	Credited  int64
	Duplicate bool
	UsedToday int64
	DailyCap  int64
	Remain    int64
	Balance   int64
}

// AwardEarn applies the cap/cooldown policy and the ledger write in one
// transaction. The balance row lock taken up front serializes the
// check-then-credit sequence per account, so two concurrent earns can never
// both pass the daily-cap check against a stale sum.
func (db *DB) AwardEarn(ctx context.Context, ev *models.LedgerEvent, dailyCap int64) (EarnResult, error) {
	policy, ok := models.PolicyFor(ev.Type)
	if !ok {
		return EarnResult{}, fmt.Errorf("type %q is not earnable", ev.Type)
	}

	var res EarnResult
	err := db.BeginFunc(ctx, func(tx pgx.Tx) error {
		txCtx := db.WithTx(ctx, tx)

		exists, err := db.AccountExists(txCtx, ev.AccountID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrAccountNotFound
		}

		points, err := db.lockBalance(ctx, tx, ev.AccountID)
		if err != nil {
			return err
		}

		now := ev.OccurredAt
		if policy.Cooldown > 0 {
			var last *time.Time
			err = tx.QueryRow(ctx,
				`SELECT MAX(occurred_at) FROM ledger_events WHERE account_id = $1 AND type = $2`,
				ev.AccountID, string(ev.Type)).Scan(&last)
			if err != nil {
				return fmt.Errorf("cooldown lookup: %w", err)
			}
			if last != nil && now.Sub(*last) < policy.Cooldown {
				return ErrCooldownActive
			}
		}

		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		var usedToday int64
		err = tx.QueryRow(ctx,
			`SELECT COALESCE(SUM(amount), 0) FROM ledger_events
			 WHERE account_id = $1 AND amount > 0 AND type <> $2
			 AND occurred_at >= $3 AND occurred_at < $4`,
			ev.AccountID, string(models.TypeConvert), dayStart, dayStart.Add(24*time.Hour),
		).Scan(&usedToday)
		if err != nil {
			return fmt.Errorf("daily sum: %w", err)
		}

		credit := ev.Amount
		if credit > policy.MaxPerEvent {
			credit = policy.MaxPerEvent
		}
		if remain := dailyCap - usedToday; credit > remain {
			credit = remain
		}
		if credit <= 0 {
			return ErrDailyCapReached
		}
		ev.Amount = credit

		inserted, err := db.insertEvent(ctx, tx, ev)
		if err != nil {
			return err
		}
		if !inserted {
			res = EarnResult{
				Duplicate: true,
				UsedToday: usedToday,
				DailyCap:  dailyCap,
				Remain:    dailyCap - usedToday,
				Balance:   points,
			}
			return nil
		}

		var balance int64
		err = tx.QueryRow(ctx,
			`UPDATE balances SET points = points + $2, updated_at = now()
			 WHERE account_id = $1 RETURNING points`,
			ev.AccountID, credit).Scan(&balance)
		if err != nil {
			return fmt.Errorf("increment balance: %w", err)
		}

		res = EarnResult{
			Credited:  credit,
			UsedToday: usedToday + credit,
			DailyCap:  dailyCap,
			Remain:    dailyCap - usedToday - credit,
			Balance:   balance,
		}
		return nil
	})
	if err != nil {
		return EarnResult{}, err
	}
	return res, nil
}
