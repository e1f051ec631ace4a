package types

import (
	"github.com/shopspring/decimal"

	models "github.com/relaygrid/pointsx/pkg/db/models/ledger"
)

// HeartbeatRequest is the signed per-minute liveness ping.
type HeartbeatRequest struct {
	PublicKey string `json:"publicKey"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
	Nonce     string `json:"nonce"`
	LatencyMs int    `json:"latencyMs,omitempty"`
	Signature string `json:"signature"`
}

type HeartbeatResponse struct {
	SignatureOk bool  `json:"signatureOk"`
	Awarded     int64 `json:"awarded"`
}

// RegisterRequest creates a device (and its owning account) on first
// signature-verified registration.
type RegisterRequest struct {
	PublicKey   string `json:"publicKey"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Region      string `json:"region,omitempty"`
	ASN         string `json:"asn,omitempty"`
	Timestamp   int64  `json:"timestamp"`
	Nonce       string `json:"nonce"`
	Signature   string `json:"signature"`
}

type RegisterResponse struct {
	Device      *models.Device `json:"device"`
	SignatureOk bool           `json:"signatureOk"`
	Token       string         `json:"token,omitempty"`
}

// EarnRequest credits points on the earn path, behind the service key.
type EarnRequest struct {
	AccountID string            `json:"accountId"`
	Type      string            `json:"type"`
	Amount    int64             `json:"amount"`
	Meta      map[string]string `json:"meta,omitempty"`
	Nonce     string            `json:"nonce,omitempty"`
}

type DailyUsage struct {
	Used   int64 `json:"used"`
	Cap    int64 `json:"cap"`
	Remain int64 `json:"remain"`
}

type EarnResponse struct {
	Credited  int64      `json:"credited"`
	Duplicate bool       `json:"duplicate,omitempty"`
	Daily     DailyUsage `json:"daily"`
	Balance   int64      `json:"balance"`
}

// ConvertRequest spends points for tokens at the configured rate.
type ConvertRequest struct {
	AccountID string `json:"accountId"`
	Points    int64  `json:"points"`
}

type ConvertResponse struct {
	PointsSpent   int64           `json:"pointsSpent"`
	TokenReceived decimal.Decimal `json:"tokenReceived"`
	Rate          decimal.Decimal `json:"rate"`
	Balance       BalanceBody     `json:"balance"`
}

type BalanceBody struct {
	Points      int64           `json:"points"`
	TokenAmount decimal.Decimal `json:"tokenAmount"`
}

// ProbeRequest records an independent quality measurement.
type ProbeRequest struct {
	DeviceID     string  `json:"deviceId"`
	StartedAt    int64   `json:"startedAt,omitempty"` // unix milliseconds, defaults to now
	DownloadMbps float64 `json:"downloadMbps"`
	UploadMbps   float64 `json:"uploadMbps"`
	LatencyMs    int     `json:"latencyMs"`
	Success      bool    `json:"success"`
}

type AccountBalanceResponse struct {
	AccountID   string          `json:"accountId"`
	Points      int64           `json:"points"`
	TokenAmount decimal.Decimal `json:"tokenAmount"`
	Daily       DailyUsage      `json:"daily"`
}

type DeviceStatsResponse struct {
	Device  *models.Device   `json:"device"`
	Hourly  []*models.Rollup `json:"hourly"`
	Daily   []*models.Rollup `json:"daily"`
	Balance int64            `json:"balance"`
}
