package ledger

import "time"

// HeartbeatRecord is one row per device per minute, the de-duplication unit
// for uptime. A second heartbeat in the same minute overwrites latency and
// signature fields but never double-counts uptime.
type HeartbeatRecord struct {
	DeviceID    string    `json:"deviceId"`
	Minute      time.Time `json:"minute"` // floored to the minute, UTC
	LatencyMs   int       `json:"latencyMs"`
	SignatureOk bool      `json:"signatureOk"`
}

// QualityProbe is an independent bandwidth/latency measurement recorded by the
// external verifier. Write-once, used only as aggregation input.
type QualityProbe struct {
	ID           int64     `json:"id"`
	DeviceID     string    `json:"deviceId"`
	StartedAt    time.Time `json:"startedAt"`
	DownloadMbps float64   `json:"downloadMbps"`
	UploadMbps   float64   `json:"uploadMbps"`
	LatencyMs    int       `json:"latencyMs"`
	Success      bool      `json:"success"`
}
