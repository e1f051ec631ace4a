package aggregator

import (
	"net/http"
	"time"

	"github.com/go-jose/go-jose/v4/json"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/relaygrid/pointsx/pkg/rollup"
)

// triggerRequest optionally pins a window for backfills. When windowStart is
// omitted the previous complete window is used, same as the cron path.
type triggerRequest struct {
	WindowStart string `json:"windowStart,omitempty"` // RFC3339
}

type triggerResponse struct {
	Window            string `json:"window"`
	AccountsProcessed int    `json:"accountsProcessed"`
}

// requireCronKey guards manual triggers with the shared cron key.
func (a *App) requireCronKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("x-cron-key")
		if key == "" || bcrypt.CompareHashAndPassword(a.CronKeyHash, []byte(key)) != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// TriggerHourly runs the hourly rollup for the requested (or previous) hour.
func (a *App) TriggerHourly(w http.ResponseWriter, r *http.Request) {
	win, ok := a.resolveWindow(w, r, rollup.HourWindow, rollup.PreviousHour)
	if !ok {
		return
	}
	a.runJob(w, r, rollup.HourlyJob{Aggregator: a.Aggregator}, win)
}

// TriggerDaily runs the daily rollup for the requested (or previous) UTC day.
func (a *App) TriggerDaily(w http.ResponseWriter, r *http.Request) {
	win, ok := a.resolveWindow(w, r, rollup.DayWindow, rollup.PreviousDay)
	if !ok {
		return
	}
	a.runJob(w, r, rollup.DailyJob{Aggregator: a.Aggregator}, win)
}

func (a *App) resolveWindow(w http.ResponseWriter, r *http.Request,
	containing func(time.Time) rollup.Window, previous func(time.Time) rollup.Window) (rollup.Window, bool) {

	var req triggerRequest
	if r.Body != nil {
		// an empty body means "previous window"
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if req.WindowStart == "" {
		return previous(time.Now()), true
	}

	ts, err := time.Parse(time.RFC3339, req.WindowStart)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "windowStart must be RFC3339"})
		return rollup.Window{}, false
	}
	return containing(ts), true
}

func (a *App) runJob(w http.ResponseWriter, r *http.Request, job rollup.Job, win rollup.Window) {
	accounts, err := a.Runner.Execute(r.Context(), job, win)
	if err != nil {
		a.Logger.Error("Manual rollup trigger failed",
			zap.String("job", job.Type()),
			zap.String("window", win.String()),
			zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "rollup failed"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(triggerResponse{
		Window:            win.String(),
		AccountsProcessed: accounts,
	})
}
