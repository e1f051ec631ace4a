package reward

import "math"

// Ineligibility reasons returned by Score.
const (
	ReasonRiskFrozen      = "risk_frozen"
	ReasonUptimeTooLow    = "uptime_too_low"
	ReasonBandwidthTooLow = "bandwidth_too_low"
	ReasonZeroPoints      = "zero_points"
)

// Input is the per-hour quality signal for one account.
type Input struct {
	UptimePct    float64
	DownloadMbps float64
	RiskScore    int
}

// Breakdown exposes the intermediate multipliers for auditability.
type Breakdown struct {
	UptimeMult float64 `json:"uptimeMult"`
	BwMult     float64 `json:"bwMult"`
	RiskMult   float64 `json:"riskMult"`
}

// Result is the scoring outcome. Points is zero whenever Eligible is false.
type Result struct {
	Eligible  bool      `json:"eligible"`
	Points    int64     `json:"points"`
	Breakdown Breakdown `json:"breakdown"`
	Reason    string    `json:"reason,omitempty"`
}

// Score turns an hour of quality signals into a point amount. Deterministic
// and side-effect-free.
//
// Gates run first: freeze risk, then minimum uptime, then minimum bandwidth.
// Past the gates, uptime and bandwidth each contribute a linear ramp clamped
// to [0,1], risk contributes a banded multiplier, and the final amount is
// floor(base * uptimeMult * bwMult * riskMult).
func Score(rule Rule, in Input) Result {
	if in.RiskScore >= rule.FreezeRisk {
		return Result{Reason: ReasonRiskFrozen}
	}
	if in.UptimePct < rule.MinUptimePctToEarn {
		return Result{Reason: ReasonUptimeTooLow}
	}
	if in.DownloadMbps < rule.MinDownloadMbpsToEarn {
		return Result{Reason: ReasonBandwidthTooLow}
	}

	b := Breakdown{
		UptimeMult: ramp(in.UptimePct, rule.UptimeLinearStart, rule.UptimeLinearEnd),
		BwMult:     ramp(in.DownloadMbps, rule.BwLinearStart, rule.BwLinearEnd),
		RiskMult:   riskMultiplier(rule, in.RiskScore),
	}

	points := int64(math.Floor(float64(rule.BasePointsPerHour) * b.UptimeMult * b.BwMult * b.RiskMult))
	if points <= 0 {
		return Result{Breakdown: b, Reason: ReasonZeroPoints}
	}

	return Result{Eligible: true, Points: points, Breakdown: b}
}

// ramp is a linear ramp over [start, end] clamped to [0,1].
func ramp(v, start, end float64) float64 {
	if end <= start {
		return 1
	}
	m := (v - start) / (end - start)
	if m < 0 {
		return 0
	}
	if m > 1 {
		return 1
	}
	return m
}

// riskMultiplier looks up the first matching band. Below the freeze threshold
// one band always matches by construction; full multiplier is the fallback.
func riskMultiplier(rule Rule, risk int) float64 {
	for _, band := range rule.RiskMultipliers {
		if risk >= band.Min && risk <= band.Max {
			return band.Mult
		}
	}
	return 1
}
