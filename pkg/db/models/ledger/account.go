package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// SystemAccountKey is the reserved column value for the synthetic rollup row
// holding network-wide totals. It is never a valid user account id.
const SystemAccountKey = "system"

// Account owns one balance and zero or more devices.
type Account struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// AccountRef distinguishes a real account from the synthetic system aggregate,
// so aggregation code cannot accidentally treat the sentinel as a user.
type AccountRef struct {
	id     string
	system bool
}

// RealAccount returns a reference to a user account.
func RealAccount(id string) AccountRef {
	return AccountRef{id: id}
}

// SystemAccount returns the reference used for the network-wide rollup row.
func SystemAccount() AccountRef {
	return AccountRef{system: true}
}

// IsSystem reports whether the reference is the aggregate sentinel.
func (r AccountRef) IsSystem() bool { return r.system }

// Key returns the value stored in the account_id column.
func (r AccountRef) Key() string {
	if r.system {
		return SystemAccountKey
	}
	return r.id
}

// AccountIDForPublicKey derives the owning account id for a device public key.
// Deterministic so that re-registration is idempotent.
func AccountIDForPublicKey(publicKey []byte) string {
	sum := sha256.Sum256(publicKey)
	return "acct_" + hex.EncodeToString(sum[:])[:16]
}

// Device is a bandwidth-sharing node owned by exactly one account.
// Created on first signature-verified registration.
type Device struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"accountId"`
	PublicKey   string    `json:"publicKey"` // hex-encoded ed25519 public key, unique
	Fingerprint string    `json:"fingerprint,omitempty"`
	Region      string    `json:"region,omitempty"`
	ASN         string    `json:"asn,omitempty"`
	RiskScore   int       `json:"riskScore"`
	CreatedAt   time.Time `json:"createdAt"`
}
