package controller

import (
	"net/http"
	"time"

	"github.com/go-jose/go-jose/v4/json"
	"go.uber.org/zap"

	ctypes "github.com/relaygrid/pointsx/app/api/controller/types"
	models "github.com/relaygrid/pointsx/pkg/db/models/ledger"
	"github.com/relaygrid/pointsx/pkg/heartbeat"
)

// Register creates a device and its owning account on first
// signature-verified registration. Re-registration with the same key is an
// idempotent upsert. Unlike heartbeats, a bad signature rejects the call.
func (c *Controller) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ctypes.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.PublicKey == "" || req.Signature == "" || req.Nonce == "" || req.Timestamp == 0 {
		writeBadRequest(w, "publicKey, timestamp, nonce and signature are required")
		return
	}

	if err := heartbeat.CheckDrift(time.Now(), req.Timestamp, heartbeat.RegistrationMaxDrift); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	msg := heartbeat.RegistrationMessage(req.PublicKey, req.Timestamp, req.Nonce)
	if !heartbeat.Verify(req.PublicKey, msg, req.Signature) {
		writeJSON(w, http.StatusUnauthorized, ctypes.RegisterResponse{SignatureOk: false})
		return
	}

	accountID := models.AccountIDForPublicKey([]byte(req.PublicKey))
	dev, err := c.App.Ledger.UpsertDevice(ctx, &models.Device{
		ID:          heartbeat.DeviceIDForPublicKey(req.PublicKey),
		AccountID:   accountID,
		PublicKey:   req.PublicKey,
		Fingerprint: req.Fingerprint,
		Region:      req.Region,
		ASN:         req.ASN,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	token, err := c.IssueDeviceToken(dev.ID, dev.AccountID)
	if err != nil {
		writeError(w, err)
		return
	}

	c.App.Logger.Info("Device registered",
		zap.String("device", dev.ID),
		zap.String("account", dev.AccountID),
		zap.String("region", dev.Region))

	writeJSON(w, http.StatusOK, ctypes.RegisterResponse{
		Device:      dev,
		SignatureOk: true,
		Token:       token,
	})
}
