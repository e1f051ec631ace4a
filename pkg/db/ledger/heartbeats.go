package ledger

import (
	"context"
	"fmt"

	models "github.com/relaygrid/pointsx/pkg/db/models/ledger"
)

// UpsertHeartbeat records one liveness minute for a device. A second
// heartbeat in the same minute overwrites latency and signature fields; the
// (device_id, minute) key is what prevents double-counted uptime.
func (db *DB) UpsertHeartbeat(ctx context.Context, hb *models.HeartbeatRecord) error {
	query := `
		INSERT INTO heartbeats (device_id, minute, latency_ms, signature_ok)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (device_id, minute) DO UPDATE SET
			latency_ms = EXCLUDED.latency_ms,
			signature_ok = EXCLUDED.signature_ok
	`
	exec := db.GetExecutor(ctx)
	_, err := exec.Exec(ctx, query, hb.DeviceID, hb.Minute, hb.LatencyMs, hb.SignatureOk)
	if err != nil {
		return fmt.Errorf("upsert heartbeat: %w", err)
	}
	return nil
}

// InsertProbe stores an independent quality measurement. Write-once.
func (db *DB) InsertProbe(ctx context.Context, p *models.QualityProbe) error {
	query := `
		INSERT INTO quality_probes (device_id, started_at, download_mbps, upload_mbps, latency_ms, success)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	exec := db.GetExecutor(ctx)
	_, err := exec.Exec(ctx, query,
		p.DeviceID, p.StartedAt, p.DownloadMbps, p.UploadMbps, p.LatencyMs, p.Success)
	if err != nil {
		return fmt.Errorf("insert quality probe: %w", err)
	}
	return nil
}
