package reward_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygrid/pointsx/pkg/reward"
)

func TestScoreWorkedExample(t *testing.T) {
	// 55% uptime, 50 Mbps, risk 1 under the default v1 rule.
	res := reward.Score(reward.DefaultRule(), reward.Input{
		UptimePct:    55,
		DownloadMbps: 50,
		RiskScore:    1,
	})

	require.True(t, res.Eligible)
	assert.Equal(t, int64(14), res.Points)
	assert.InDelta(t, 0.5, res.Breakdown.UptimeMult, 1e-9)
	assert.InDelta(t, 45.0/95.0, res.Breakdown.BwMult, 1e-9)
	assert.Equal(t, 1.0, res.Breakdown.RiskMult)
}

func TestScoreGates(t *testing.T) {
	rule := reward.DefaultRule()

	tests := []struct {
		name   string
		in     reward.Input
		reason string
	}{
		{"risk frozen", reward.Input{UptimePct: 100, DownloadMbps: 100, RiskScore: 10}, reward.ReasonRiskFrozen},
		{"risk above freeze", reward.Input{UptimePct: 100, DownloadMbps: 100, RiskScore: 42}, reward.ReasonRiskFrozen},
		{"uptime below floor", reward.Input{UptimePct: 9.99, DownloadMbps: 100, RiskScore: 0}, reward.ReasonUptimeTooLow},
		{"bandwidth below floor", reward.Input{UptimePct: 100, DownloadMbps: 4.99, RiskScore: 0}, reward.ReasonBandwidthTooLow},
		{"floors to zero", reward.Input{UptimePct: 10, DownloadMbps: 5, RiskScore: 0}, reward.ReasonZeroPoints},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := reward.Score(rule, tt.in)
			assert.False(t, res.Eligible)
			assert.Zero(t, res.Points)
			assert.Equal(t, tt.reason, res.Reason)
		})
	}
}

func TestScoreRiskBands(t *testing.T) {
	rule := reward.DefaultRule()
	in := reward.Input{UptimePct: 100, DownloadMbps: 100}

	in.RiskScore = 0
	full := reward.Score(rule, in)
	require.True(t, full.Eligible)
	assert.Equal(t, int64(60), full.Points)

	in.RiskScore = 4
	mid := reward.Score(rule, in)
	require.True(t, mid.Eligible)
	assert.Equal(t, int64(42), mid.Points)

	in.RiskScore = 7
	low := reward.Score(rule, in)
	require.True(t, low.Eligible)
	assert.Equal(t, int64(24), low.Points)
}

func TestScoreMonotonicInUptime(t *testing.T) {
	rule := reward.DefaultRule()

	prev := int64(-1)
	for uptime := 10.0; uptime <= 100; uptime += 5 {
		res := reward.Score(rule, reward.Input{UptimePct: uptime, DownloadMbps: 100, RiskScore: 0})
		require.GreaterOrEqual(t, res.Points, prev, "uptime %.0f", uptime)
		prev = res.Points
	}
}

func TestScoreMonotonicInBandwidth(t *testing.T) {
	rule := reward.DefaultRule()

	prev := int64(-1)
	for bw := 5.0; bw <= 100; bw += 5 {
		res := reward.Score(rule, reward.Input{UptimePct: 100, DownloadMbps: bw, RiskScore: 0})
		require.GreaterOrEqual(t, res.Points, prev, "bandwidth %.0f", bw)
		prev = res.Points
	}
}

func TestScoreClampsAboveRampEnd(t *testing.T) {
	rule := reward.DefaultRule()

	at := reward.Score(rule, reward.Input{UptimePct: 100, DownloadMbps: 100, RiskScore: 0})
	above := reward.Score(rule, reward.Input{UptimePct: 100, DownloadMbps: 900, RiskScore: 0})
	assert.Equal(t, at.Points, above.Points)
}
