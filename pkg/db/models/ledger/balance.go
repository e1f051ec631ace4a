package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance is the derived current-balance row, one per account. Points is the
// running sum of all ledger event amounts for the account, maintained
// incrementally at write time. Points never goes below zero.
type Balance struct {
	AccountID   string          `json:"accountId"`
	Points      int64           `json:"points"`
	TokenAmount decimal.Decimal `json:"tokenAmount"` // fixed-point, 4 decimals
	UpdatedAt   time.Time       `json:"updatedAt"`
}
