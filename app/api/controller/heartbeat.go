package controller

import (
	"net/http"
	"time"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	ctypes "github.com/relaygrid/pointsx/app/api/controller/types"
	models "github.com/relaygrid/pointsx/pkg/db/models/ledger"
	"github.com/relaygrid/pointsx/pkg/heartbeat"
)

func pathVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}

// Heartbeat validates a signed liveness ping, records the device-minute and
// credits uptime. A failed signature is reported in the response but does not
// fail the call; it only withholds the reward for that minute.
func (c *Controller) Heartbeat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ctypes.HeartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.PublicKey == "" || req.Signature == "" || req.Nonce == "" || req.Timestamp == 0 {
		writeBadRequest(w, "publicKey, timestamp, nonce and signature are required")
		return
	}

	// Replay/clock-skew defense: out-of-window pings create no record at all.
	if err := heartbeat.CheckDrift(time.Now(), req.Timestamp, heartbeat.HeartbeatMaxDrift); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	dev, err := c.App.Ledger.GetDeviceByPublicKey(ctx, req.PublicKey)
	if err != nil {
		writeError(w, err)
		return
	}

	msg := heartbeat.HeartbeatMessage(req.PublicKey, req.Timestamp, req.Nonce, req.LatencyMs)
	sigOk := heartbeat.Verify(req.PublicKey, msg, req.Signature)

	minute := heartbeat.MinuteBucket(req.Timestamp)
	if err := c.App.Ledger.UpsertHeartbeat(ctx, &models.HeartbeatRecord{
		DeviceID:    dev.ID,
		Minute:      minute,
		LatencyMs:   req.LatencyMs,
		SignatureOk: sigOk,
	}); err != nil {
		writeError(w, err)
		return
	}

	var awarded int64
	if sigOk {
		ev := &models.LedgerEvent{
			AccountID:   dev.AccountID,
			DeviceID:    &dev.ID,
			Type:        models.TypeUptime,
			Amount:      c.App.Config.UptimePointsPerMinute,
			Source:      "heartbeat",
			RuleVersion: c.App.Config.Rule.Version,
			DedupeKey:   heartbeat.UptimeDedupeKey(dev.ID, minute),
			OccurredAt:  minute,
		}
		res, err := c.App.Ledger.Award(ctx, ev)
		if err != nil {
			writeError(w, err)
			return
		}
		if !res.Duplicate {
			awarded = ev.Amount
			c.publishLedgerEvent(ctx, ev)
		}
	} else {
		c.App.Logger.Debug("Heartbeat signature failed",
			zap.String("device", dev.ID),
			zap.Time("minute", minute))
	}

	writeJSON(w, http.StatusOK, ctypes.HeartbeatResponse{SignatureOk: sigOk, Awarded: awarded})
}
