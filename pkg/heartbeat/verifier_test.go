package heartbeat_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygrid/pointsx/pkg/heartbeat"
)

func newKeypair(t *testing.T) (string, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return hex.EncodeToString(pub), priv
}

func TestHeartbeatMessageFormat(t *testing.T) {
	msg := heartbeat.HeartbeatMessage("abcd", 1700000000000, "n-1", 42)
	assert.Equal(t, "HEARTBEAT|abcd|1700000000000|n-1|42", msg)

	// missing latency signs as zero
	msg = heartbeat.HeartbeatMessage("abcd", 1700000000000, "n-1", 0)
	assert.Equal(t, "HEARTBEAT|abcd|1700000000000|n-1|0", msg)
}

func TestRegistrationMessageFormat(t *testing.T) {
	msg := heartbeat.RegistrationMessage("abcd", 1700000000000, "n-1")
	assert.Equal(t, "REGISTER|abcd|1700000000000|n-1", msg)
}

func TestVerify(t *testing.T) {
	pubHex, priv := newKeypair(t)
	msg := heartbeat.HeartbeatMessage(pubHex, time.Now().UnixMilli(), "nonce", 25)
	sig := hex.EncodeToString(ed25519.Sign(priv, []byte(msg)))

	assert.True(t, heartbeat.Verify(pubHex, msg, sig))
	assert.False(t, heartbeat.Verify(pubHex, msg+"x", sig), "tampered message")

	otherPub, _ := newKeypair(t)
	assert.False(t, heartbeat.Verify(otherPub, msg, sig), "wrong key")
}

func TestVerifyMalformedInputs(t *testing.T) {
	pubHex, priv := newKeypair(t)
	msg := "HEARTBEAT|x|1|n|0"
	sig := hex.EncodeToString(ed25519.Sign(priv, []byte(msg)))

	assert.False(t, heartbeat.Verify("not-hex", msg, sig))
	assert.False(t, heartbeat.Verify(pubHex[:10], msg, sig), "short key")
	assert.False(t, heartbeat.Verify(pubHex, msg, "zz"), "non-hex signature")
	assert.False(t, heartbeat.Verify(pubHex, msg, hex.EncodeToString([]byte("short"))))
}

func TestCheckDrift(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.NoError(t, heartbeat.CheckDrift(now, now.UnixMilli(), heartbeat.HeartbeatMaxDrift))
	assert.NoError(t, heartbeat.CheckDrift(now, now.Add(-90*time.Second).UnixMilli(), heartbeat.HeartbeatMaxDrift))
	assert.NoError(t, heartbeat.CheckDrift(now, now.Add(90*time.Second).UnixMilli(), heartbeat.HeartbeatMaxDrift), "future skew inside window")

	assert.Error(t, heartbeat.CheckDrift(now, now.Add(-3*time.Minute).UnixMilli(), heartbeat.HeartbeatMaxDrift))
	assert.Error(t, heartbeat.CheckDrift(now, now.Add(3*time.Minute).UnixMilli(), heartbeat.HeartbeatMaxDrift))
	assert.NoError(t, heartbeat.CheckDrift(now, now.Add(-3*time.Minute).UnixMilli(), heartbeat.RegistrationMaxDrift))
}

func TestMinuteBucket(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 34, 56, 789e6, time.UTC)
	bucket := heartbeat.MinuteBucket(at.UnixMilli())
	assert.Equal(t, time.Date(2026, 3, 1, 12, 34, 0, 0, time.UTC), bucket)

	// two pings inside the same minute collapse to one bucket
	later := at.Add(2 * time.Second)
	assert.Equal(t, bucket, heartbeat.MinuteBucket(later.UnixMilli()))
}

func TestUptimeDedupeKey(t *testing.T) {
	minute := time.Date(2026, 3, 1, 12, 34, 0, 0, time.UTC)
	key := heartbeat.UptimeDedupeKey("dev_0123456789abcdef", minute)
	assert.Equal(t, "dev_0123456789abcdef:UPTIME_MINUTE:1772368440", key)

	// distinct minutes never share a key
	other := heartbeat.UptimeDedupeKey("dev_0123456789abcdef", minute.Add(time.Minute))
	assert.NotEqual(t, key, other)
}

func TestDeviceIDForPublicKey(t *testing.T) {
	id := heartbeat.DeviceIDForPublicKey("abcd")
	assert.Len(t, id, len("dev_")+16)
	assert.Equal(t, id, heartbeat.DeviceIDForPublicKey("abcd"), "deterministic")
	assert.NotEqual(t, id, heartbeat.DeviceIDForPublicKey("abce"))
}
