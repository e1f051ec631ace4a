package reward

import "math"

// RiskBand maps a risk score range [Min, Max] to a reward multiplier.
// Bands are checked in order; the first match wins.
type RiskBand struct {
	Min  int
	Max  int // inclusive; use math.MaxInt for an open-ended band
	Mult float64
}

// Rule is one versioned scoring configuration. Rules are plain data so the
// scoring function stays pure and directly unit-testable.
type Rule struct {
	Version string

	BasePointsPerHour int64

	MinUptimePctToEarn float64
	UptimeLinearStart  float64
	UptimeLinearEnd    float64

	MinDownloadMbpsToEarn float64
	BwLinearStart         float64
	BwLinearEnd           float64

	FreezeRisk      int
	RiskMultipliers []RiskBand
}

// DefaultRule returns the initial production rule.
func DefaultRule() Rule {
	return Rule{
		Version:           "v1",
		BasePointsPerHour: 60,

		MinUptimePctToEarn: 10,
		UptimeLinearStart:  10,
		UptimeLinearEnd:    100,

		MinDownloadMbpsToEarn: 5,
		BwLinearStart:         5,
		BwLinearEnd:           100,

		FreezeRisk: 10,
		RiskMultipliers: []RiskBand{
			{Min: 0, Max: 2, Mult: 1.0},
			{Min: 3, Max: 5, Mult: 0.7},
			{Min: 6, Max: 9, Mult: 0.4},
			{Min: 10, Max: math.MaxInt, Mult: 0.0},
		},
	}
}
