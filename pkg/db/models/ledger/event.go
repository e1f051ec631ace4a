package ledger

import (
	"fmt"
	"time"
)

// EarnType is the closed set of ledger event types. Earn types carry a policy
// row; Convert is the only debit type.
type EarnType string

const (
	TypeUptime       EarnType = "uptime_minute"
	TypeQualityBonus EarnType = "quality_bonus"
	TypeReferral     EarnType = "referral"
	TypeTask         EarnType = "task"
	TypeConvert      EarnType = "convert"
)

// Policy gates a single earn event before it reaches the ledger writer.
type Policy struct {
	Cooldown    time.Duration // minimum gap between two events of this type
	MaxPerEvent int64         // largest single credit accepted
}

// earnPolicies is the compile-time policy table. Types absent here are not
// accepted on the earn path.
var earnPolicies = map[EarnType]Policy{
	TypeUptime:       {Cooldown: 0, MaxPerEvent: 10},
	TypeQualityBonus: {Cooldown: 30 * time.Minute, MaxPerEvent: 1000},
	TypeReferral:     {Cooldown: 24 * time.Hour, MaxPerEvent: 500},
	TypeTask:         {Cooldown: 60 * time.Second, MaxPerEvent: 200},
}

// ParseEarnType resolves a wire string to a known earn type.
func ParseEarnType(s string) (EarnType, error) {
	t := EarnType(s)
	if _, ok := earnPolicies[t]; !ok {
		return "", fmt.Errorf("unknown earn type %q", s)
	}
	return t, nil
}

// PolicyFor returns the policy row for an earn type.
func PolicyFor(t EarnType) (Policy, bool) {
	p, ok := earnPolicies[t]
	return p, ok
}

// EarnTypes returns every type counted as earned activity in rollups.
func EarnTypes() []EarnType {
	return []EarnType{TypeUptime, TypeQualityBonus, TypeReferral, TypeTask}
}

// LedgerEvent is an immutable append-only record. Positive amounts are
// credits, negative amounts are conversion debits. DedupeKey is globally
// unique; a second insert with the same key is a successful no-op.
type LedgerEvent struct {
	ID          int64             `json:"id"`
	AccountID   string            `json:"accountId"`
	DeviceID    *string           `json:"deviceId,omitempty"`
	Type        EarnType          `json:"type"`
	Amount      int64             `json:"amount"`
	Source      string            `json:"source"`
	RuleVersion string            `json:"ruleVersion,omitempty"`
	DedupeKey   string            `json:"dedupeKey"`
	OccurredAt  time.Time         `json:"occurredAt"`
	Meta        map[string]string `json:"meta,omitempty"`
}
