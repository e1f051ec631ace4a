package controller

import (
	"context"

	"github.com/go-jose/go-jose/v4/json"

	models "github.com/relaygrid/pointsx/pkg/db/models/ledger"
	"github.com/relaygrid/pointsx/pkg/redis"
)

// LedgerFeedEvent is the wire shape published for each accepted credit/debit.
type LedgerFeedEvent struct {
	AccountID string `json:"accountId"`
	DeviceID  string `json:"deviceId,omitempty"`
	Type      string `json:"type"`
	Amount    int64  `json:"amount"`
	DedupeKey string `json:"dedupeKey"`
}

// publishLedgerEvent pushes an accepted ledger write to the real-time feed.
// Best-effort: a Redis failure never affects the write path.
func (c *Controller) publishLedgerEvent(ctx context.Context, ev *models.LedgerEvent) {
	if c.App.RedisClient == nil {
		return
	}

	feed := LedgerFeedEvent{
		AccountID: ev.AccountID,
		Type:      string(ev.Type),
		Amount:    ev.Amount,
		DedupeKey: ev.DedupeKey,
	}
	if ev.DeviceID != nil {
		feed.DeviceID = *ev.DeviceID
	}

	payload, err := json.Marshal(feed)
	if err != nil {
		return
	}
	c.App.RedisClient.Publish(ctx, redis.LedgerChannel, payload)
}
