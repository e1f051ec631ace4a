package heartbeat

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Drift windows for timestamp validation. A ping outside the window is a
// replay or a badly skewed clock and is rejected before anything is stored.
const (
	HeartbeatMaxDrift    = 2 * time.Minute
	RegistrationMaxDrift = 5 * time.Minute
)

// HeartbeatMessage builds the exact string a device signs for a liveness ping.
// Timestamp is Unix milliseconds; a missing latency signs as 0.
func HeartbeatMessage(publicKey string, timestamp int64, nonce string, latencyMs int) string {
	return strings.Join([]string{
		"HEARTBEAT", publicKey, strconv.FormatInt(timestamp, 10), nonce, strconv.Itoa(latencyMs),
	}, "|")
}

// RegistrationMessage builds the exact string a device signs to register.
func RegistrationMessage(publicKey string, timestamp int64, nonce string) string {
	return strings.Join([]string{
		"REGISTER", publicKey, strconv.FormatInt(timestamp, 10), nonce,
	}, "|")
}

// Verify checks an ed25519 signature over message. publicKey and signature
// are hex-encoded. Malformed inputs verify as false, never as an error: a
// bad signature withholds the reward but does not fail the request.
func Verify(publicKey, message, signature string) bool {
	pub, err := hex.DecodeString(publicKey)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}
	sig, err := hex.DecodeString(signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), []byte(message), sig)
}

// CheckDrift rejects timestamps more than maxDrift away from now in either
// direction. Timestamp is Unix milliseconds.
func CheckDrift(now time.Time, timestamp int64, maxDrift time.Duration) error {
	at := time.UnixMilli(timestamp)
	drift := now.Sub(at)
	if drift < 0 {
		drift = -drift
	}
	if drift > maxDrift {
		return fmt.Errorf("timestamp drift %s exceeds %s", drift.Truncate(time.Second), maxDrift)
	}
	return nil
}

// MinuteBucket floors a Unix-millisecond timestamp to its UTC minute, the
// heartbeat de-duplication unit.
func MinuteBucket(timestamp int64) time.Time {
	return time.UnixMilli(timestamp).UTC().Truncate(time.Minute)
}

// UptimeDedupeKey derives the ledger dedupe key for one device-minute, so a
// re-delivered heartbeat can never credit the same minute twice.
func UptimeDedupeKey(deviceID string, minute time.Time) string {
	return fmt.Sprintf("%s:UPTIME_MINUTE:%d", deviceID, minute.Unix())
}

// DeviceIDForPublicKey derives the stable device id for a hex public key.
// Deterministic so that re-registration is idempotent.
func DeviceIDForPublicKey(publicKey string) string {
	sum := sha256.Sum256([]byte("device|" + publicKey))
	return "dev_" + hex.EncodeToString(sum[:])[:16]
}
