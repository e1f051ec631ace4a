package controller

import (
	"net/http"
	"time"

	ctypes "github.com/relaygrid/pointsx/app/api/controller/types"
	"github.com/relaygrid/pointsx/pkg/db/ledger"
	models "github.com/relaygrid/pointsx/pkg/db/models/ledger"
)

// AccountBalance returns the current balance plus today's cap usage.
func (c *Controller) AccountBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID := pathVar(r, "id")

	balance, err := c.App.Ledger.GetBalance(ctx, accountID)
	if err != nil {
		writeError(w, err)
		return
	}

	used, err := c.App.Ledger.EarnedToday(ctx, accountID, time.Now().UTC())
	if err != nil {
		writeError(w, err)
		return
	}

	cap := c.App.Config.DailyCap
	writeJSON(w, http.StatusOK, ctypes.AccountBalanceResponse{
		AccountID:   accountID,
		Points:      balance.Points,
		TokenAmount: balance.TokenAmount,
		Daily: ctypes.DailyUsage{
			Used:   used,
			Cap:    cap,
			Remain: cap - used,
		},
	})
}

// DeviceStats returns recent rollups for the device's owning account.
func (c *Controller) DeviceStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deviceID := pathVar(r, "id")

	dev, err := c.App.Ledger.GetDevice(ctx, deviceID)
	if err != nil {
		writeError(w, err)
		return
	}

	ref := models.RealAccount(dev.AccountID)
	hourly, err := c.App.Ledger.ListRollups(ctx, ledger.Hourly, ref, 48)
	if err != nil {
		writeError(w, err)
		return
	}
	daily, err := c.App.Ledger.ListRollups(ctx, ledger.Daily, ref, 30)
	if err != nil {
		writeError(w, err)
		return
	}
	balance, err := c.App.Ledger.GetBalance(ctx, dev.AccountID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ctypes.DeviceStatsResponse{
		Device:  dev,
		Hourly:  hourly,
		Daily:   daily,
		Balance: balance.Points,
	})
}
