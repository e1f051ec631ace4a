package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	models "github.com/relaygrid/pointsx/pkg/db/models/ledger"
	"github.com/relaygrid/pointsx/pkg/db/postgres"
)

// EnsureAccount creates the account row if it does not exist.
func (db *DB) EnsureAccount(ctx context.Context, accountID string) error {
	query := `INSERT INTO accounts (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`
	exec := db.GetExecutor(ctx)
	_, err := exec.Exec(ctx, query, accountID)
	if err != nil {
		return fmt.Errorf("ensure account %s: %w", accountID, err)
	}
	return nil
}

// AccountExists reports whether the account row is present.
func (db *DB) AccountExists(ctx context.Context, accountID string) (bool, error) {
	var exists bool
	exec := db.GetExecutor(ctx)
	err := exec.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`, accountID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check account %s: %w", accountID, err)
	}
	return exists, nil
}

// UpsertDevice registers a device, creating the owning account in the same
// transaction. Re-registration updates the mutable fields and returns the
// existing row unchanged otherwise.
func (db *DB) UpsertDevice(ctx context.Context, dev *models.Device) (*models.Device, error) {
	var out models.Device
	err := db.BeginFunc(ctx, func(tx pgx.Tx) error {
		txCtx := db.WithTx(ctx, tx)
		if err := db.EnsureAccount(txCtx, dev.AccountID); err != nil {
			return err
		}

		query := `
			INSERT INTO devices (id, account_id, public_key, fingerprint, region, asn, risk_score)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (public_key) DO UPDATE SET
				fingerprint = EXCLUDED.fingerprint,
				region = EXCLUDED.region,
				asn = EXCLUDED.asn
			RETURNING id, account_id, public_key, fingerprint, region, asn, risk_score, created_at
		`
		return tx.QueryRow(txCtx, query,
			dev.ID, dev.AccountID, dev.PublicKey, dev.Fingerprint, dev.Region, dev.ASN, dev.RiskScore,
		).Scan(&out.ID, &out.AccountID, &out.PublicKey, &out.Fingerprint,
			&out.Region, &out.ASN, &out.RiskScore, &out.CreatedAt)
	})
	if err != nil {
		return nil, fmt.Errorf("upsert device: %w", err)
	}
	return &out, nil
}

// GetDeviceByPublicKey resolves a device from its hex-encoded public key.
func (db *DB) GetDeviceByPublicKey(ctx context.Context, publicKey string) (*models.Device, error) {
	query := `
		SELECT id, account_id, public_key, fingerprint, region, asn, risk_score, created_at
		FROM devices WHERE public_key = $1
	`
	var dev models.Device
	err := db.GetExecutor(ctx).QueryRow(ctx, query, publicKey).Scan(
		&dev.ID, &dev.AccountID, &dev.PublicKey, &dev.Fingerprint,
		&dev.Region, &dev.ASN, &dev.RiskScore, &dev.CreatedAt)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("get device by public key: %w", err)
	}
	return &dev, nil
}

// GetDevice resolves a device by id.
func (db *DB) GetDevice(ctx context.Context, deviceID string) (*models.Device, error) {
	query := `
		SELECT id, account_id, public_key, fingerprint, region, asn, risk_score, created_at
		FROM devices WHERE id = $1
	`
	var dev models.Device
	err := db.GetExecutor(ctx).QueryRow(ctx, query, deviceID).Scan(
		&dev.ID, &dev.AccountID, &dev.PublicKey, &dev.Fingerprint,
		&dev.Region, &dev.ASN, &dev.RiskScore, &dev.CreatedAt)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("get device: %w", err)
	}
	return &dev, nil
}

// MaxRiskScore returns the highest device risk score for an account.
// Accounts with no devices score zero.
func (db *DB) MaxRiskScore(ctx context.Context, accountID string) (int, error) {
	var risk int
	err := db.GetExecutor(ctx).QueryRow(ctx,
		`SELECT COALESCE(MAX(risk_score), 0) FROM devices WHERE account_id = $1`,
		accountID).Scan(&risk)
	if err != nil {
		return 0, fmt.Errorf("max risk score for %s: %w", accountID, err)
	}
	return risk, nil
}
