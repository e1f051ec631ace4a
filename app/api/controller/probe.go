package controller

import (
	"net/http"
	"time"

	"github.com/go-jose/go-jose/v4/json"

	ctypes "github.com/relaygrid/pointsx/app/api/controller/types"
	models "github.com/relaygrid/pointsx/pkg/db/models/ledger"
)

// RecordProbe stores an independent bandwidth/latency measurement from the
// external verifier. Probes are write-once aggregation input.
func (c *Controller) RecordProbe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ctypes.ProbeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.DeviceID == "" {
		writeBadRequest(w, "deviceId is required")
		return
	}

	// Device must exist; probes for unknown devices are a verifier bug.
	if _, err := c.App.Ledger.GetDevice(ctx, req.DeviceID); err != nil {
		writeError(w, err)
		return
	}

	startedAt := time.Now().UTC()
	if req.StartedAt > 0 {
		startedAt = time.UnixMilli(req.StartedAt).UTC()
	}

	if err := c.App.Ledger.InsertProbe(ctx, &models.QualityProbe{
		DeviceID:     req.DeviceID,
		StartedAt:    startedAt,
		DownloadMbps: req.DownloadMbps,
		UploadMbps:   req.UploadMbps,
		LatencyMs:    req.LatencyMs,
		Success:      req.Success,
	}); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}
