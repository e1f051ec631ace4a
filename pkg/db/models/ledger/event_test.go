package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ledger "github.com/relaygrid/pointsx/pkg/db/models/ledger"
)

func TestParseEarnType(t *testing.T) {
	for _, s := range []string{"uptime_minute", "quality_bonus", "referral", "task"} {
		got, err := ledger.ParseEarnType(s)
		require.NoError(t, err, s)
		assert.Equal(t, ledger.EarnType(s), got)
	}

	// convert is a debit, not an earn type
	_, err := ledger.ParseEarnType("convert")
	assert.Error(t, err)
	_, err = ledger.ParseEarnType("UPTIME_MINUTE")
	assert.Error(t, err)
	_, err = ledger.ParseEarnType("")
	assert.Error(t, err)
}

func TestPolicyFor(t *testing.T) {
	p, ok := ledger.PolicyFor(ledger.TypeUptime)
	require.True(t, ok)
	assert.Zero(t, p.Cooldown, "uptime relies on minute dedupe, not cooldown")
	assert.Equal(t, int64(10), p.MaxPerEvent)

	p, ok = ledger.PolicyFor(ledger.TypeReferral)
	require.True(t, ok)
	assert.Equal(t, 24*time.Hour, p.Cooldown)

	_, ok = ledger.PolicyFor(ledger.TypeConvert)
	assert.False(t, ok)
}

func TestEarnTypesExcludeConvert(t *testing.T) {
	for _, typ := range ledger.EarnTypes() {
		assert.NotEqual(t, ledger.TypeConvert, typ)
	}
	assert.Len(t, ledger.EarnTypes(), 4)
}
