package controller

import (
	"net/http"

	"github.com/go-jose/go-jose/v4/json"

	ctypes "github.com/relaygrid/pointsx/app/api/controller/types"
	"github.com/relaygrid/pointsx/pkg/db/ledger"
)

// Convert settles points into tokens at the configured rate, behind the
// global enable switch.
func (c *Controller) Convert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !c.App.Config.ConversionEnabled {
		writeError(w, ledger.ErrConversionDisabled)
		return
	}

	var req ctypes.ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.AccountID == "" {
		writeBadRequest(w, "accountId is required")
		return
	}
	if req.Points <= 0 {
		writeBadRequest(w, "points must be a positive integer")
		return
	}

	res, err := c.App.Ledger.Convert(ctx, req.AccountID, req.Points, c.App.Config.ConversionRate)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ctypes.ConvertResponse{
		PointsSpent:   res.PointsSpent,
		TokenReceived: res.TokenReceived,
		Rate:          c.App.Config.ConversionRate,
		Balance: ctypes.BalanceBody{
			Points:      res.Points,
			TokenAmount: res.TokenAmount,
		},
	})
}
