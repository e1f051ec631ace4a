package ledger

import (
	"context"
	"fmt"
	"time"

	models "github.com/relaygrid/pointsx/pkg/db/models/ledger"
	"github.com/relaygrid/pointsx/pkg/db/postgres"
)

// GetBalance returns the current balance row for an account. Accounts that
// exist but have never earned read back as a zero balance.
func (db *DB) GetBalance(ctx context.Context, accountID string) (*models.Balance, error) {
	query := `
		SELECT account_id, points, token_amount, updated_at
		FROM balances WHERE account_id = $1
	`
	var b models.Balance
	err := db.GetExecutor(ctx).QueryRow(ctx, query, accountID).Scan(
		&b.AccountID, &b.Points, &b.TokenAmount, &b.UpdatedAt)
	if err != nil {
		if postgres.IsNoRows(err) {
			exists, existsErr := db.AccountExists(ctx, accountID)
			if existsErr != nil {
				return nil, existsErr
			}
			if !exists {
				return nil, ErrAccountNotFound
			}
			return &models.Balance{AccountID: accountID}, nil
		}
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return &b, nil
}

// EarnedToday sums today's (UTC) earn credits for an account.
func (db *DB) EarnedToday(ctx context.Context, accountID string, now time.Time) (int64, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	var used int64
	err := db.GetExecutor(ctx).QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM ledger_events
		 WHERE account_id = $1 AND amount > 0 AND type <> $2
		 AND occurred_at >= $3 AND occurred_at < $4`,
		accountID, string(models.TypeConvert), dayStart, dayStart.Add(24*time.Hour),
	).Scan(&used)
	if err != nil {
		return 0, fmt.Errorf("earned today: %w", err)
	}
	return used, nil
}
