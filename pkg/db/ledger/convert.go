package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	models "github.com/relaygrid/pointsx/pkg/db/models/ledger"
	"github.com/relaygrid/pointsx/pkg/db/postgres"
	"github.com/shopspring/decimal"
)

// ConvertResult reports a settled points-to-token conversion.
type ConvertResult struct {
	PointsSpent   int64
	TokenReceived decimal.Decimal
	Points        int64           // points after settlement
	TokenAmount   decimal.Decimal // token balance after settlement
}

// Convert atomically debits points and credits the token balance at the given
// rate (points per token). The sufficiency check and the debit run under the
// same row lock, so two concurrent conversions cannot both pass against a
// stale balance and overdraw the account. Token credit is fixed-point rounded
// to 4 decimals.
func (db *DB) Convert(ctx context.Context, accountID string, points int64, rate decimal.Decimal) (ConvertResult, error) {
	if points <= 0 {
		return ConvertResult{}, fmt.Errorf("points must be positive, got %d", points)
	}
	if rate.LessThanOrEqual(decimal.Zero) {
		return ConvertResult{}, fmt.Errorf("rate must be positive, got %s", rate)
	}

	var res ConvertResult
	err := db.BeginFunc(ctx, func(tx pgx.Tx) error {
		var balance int64
		var tokenAmount decimal.Decimal
		err := tx.QueryRow(ctx,
			`SELECT points, token_amount FROM balances WHERE account_id = $1 FOR UPDATE`,
			accountID).Scan(&balance, &tokenAmount)
		if err != nil {
			if postgres.IsNoRows(err) {
				// No balance row yet: the account may still exist with zero
				// points, which is an insufficiency, not a missing account.
				exists, existsErr := db.AccountExists(db.WithTx(ctx, tx), accountID)
				if existsErr != nil {
					return existsErr
				}
				if !exists {
					return ErrAccountNotFound
				}
				return ErrInsufficientPoints
			}
			return fmt.Errorf("lock balance row: %w", err)
		}

		if balance < points {
			return ErrInsufficientPoints
		}

		token := decimal.NewFromInt(points).Div(rate).Round(4)
		newToken := tokenAmount.Add(token)

		now := time.Now().UTC()
		ev := &models.LedgerEvent{
			AccountID:  accountID,
			Type:       models.TypeConvert,
			Amount:     -points,
			Source:     "conversion",
			DedupeKey:  fmt.Sprintf("%s:CONVERT:%d", accountID, now.UnixNano()),
			OccurredAt: now,
			Meta: map[string]string{
				"rate":  rate.String(),
				"token": token.String(),
			},
		}
		inserted, err := db.insertEvent(ctx, tx, ev)
		if err != nil {
			return err
		}
		if !inserted {
			// Nanosecond-keyed collision within the same account. Retryable.
			return fmt.Errorf("conversion dedupe collision for %s", accountID)
		}

		err = tx.QueryRow(ctx,
			`UPDATE balances SET points = points - $2, token_amount = $3, updated_at = now()
			 WHERE account_id = $1 RETURNING points`,
			accountID, points, newToken).Scan(&res.Points)
		if err != nil {
			return fmt.Errorf("settle balance: %w", err)
		}

		res.PointsSpent = points
		res.TokenReceived = token
		res.TokenAmount = newToken
		return nil
	})
	if err != nil {
		return ConvertResult{}, err
	}
	return res, nil
}
