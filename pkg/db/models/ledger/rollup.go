package ledger

import "time"

// Rollup is a derived, idempotently upsertable summary of one account's
// earned activity over a fixed window. One row per (windowStart, accountId),
// plus one synthetic row per window keyed by the system account.
// Re-running the aggregator over the same raw data produces the same row.
type Rollup struct {
	WindowStart     time.Time `json:"windowStart"`
	AccountID       string    `json:"accountId"`
	PointsEarned    int64     `json:"pointsEarned"`
	UptimePct       float64   `json:"uptimePct"`
	AvgDownloadMbps float64   `json:"avgDownloadMbps"`
	UpdatedAt       time.Time `json:"updatedAt"`
}
