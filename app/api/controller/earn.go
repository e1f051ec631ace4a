package controller

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-jose/go-jose/v4/json"

	ctypes "github.com/relaygrid/pointsx/app/api/controller/types"
	models "github.com/relaygrid/pointsx/pkg/db/models/ledger"
)

// Earn credits points on the earn path. The per-type cooldown and the daily
// cap are enforced inside the same transaction as the ledger insert, so
// concurrent calls for one account cannot overshoot the cap.
func (c *Controller) Earn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ctypes.EarnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.AccountID == "" {
		writeBadRequest(w, "accountId is required")
		return
	}
	if req.Amount <= 0 {
		writeBadRequest(w, "amount must be a positive integer")
		return
	}
	earnType, err := models.ParseEarnType(req.Type)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if c.checkNonce("earn:"+req.AccountID, req.Nonce) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "duplicate_nonce"})
		return
	}

	now := time.Now().UTC()
	dedupeKey := fmt.Sprintf("%s:%s:%d", req.AccountID, earnType, now.UnixNano())
	if req.Nonce != "" {
		dedupeKey = fmt.Sprintf("%s:%s:%s", req.AccountID, earnType, req.Nonce)
	}

	ev := &models.LedgerEvent{
		AccountID:  req.AccountID,
		Type:       earnType,
		Amount:     req.Amount,
		Source:     "earn_api",
		DedupeKey:  dedupeKey,
		OccurredAt: now,
		Meta:       req.Meta,
	}
	res, err := c.App.Ledger.AwardEarn(ctx, ev, c.App.Config.DailyCap)
	if err != nil {
		// The write did not commit; a retry with the same nonce must not be
		// answered with 409. The dedupe key keeps the retry idempotent.
		c.releaseNonce("earn:"+req.AccountID, req.Nonce)
		writeError(w, err)
		return
	}

	if res.Credited > 0 {
		c.publishLedgerEvent(ctx, ev)
	}

	writeJSON(w, http.StatusOK, ctypes.EarnResponse{
		Credited:  res.Credited,
		Duplicate: res.Duplicate,
		Daily: ctypes.DailyUsage{
			Used:   res.UsedToday,
			Cap:    res.DailyCap,
			Remain: res.Remain,
		},
		Balance: res.Balance,
	})
}
