package aggregator

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/relaygrid/pointsx/pkg/db/ledger"
	"github.com/relaygrid/pointsx/pkg/logging"
	"github.com/relaygrid/pointsx/pkg/reward"
	"github.com/relaygrid/pointsx/pkg/rollup"
	"github.com/relaygrid/pointsx/pkg/utils"
)

// App drives the rollup jobs: a cron tick materializes the previous complete
// window, and a small HTTP surface allows manual/backfill triggering.
type App struct {
	Ledger     *ledger.DB
	Aggregator *rollup.Aggregator
	Runner     *rollup.Runner

	// Cron is the scheduler that triggers the hourly/daily jobs, according to the CronSpecs.
	Cron           *cron.Cron
	CronSpecHourly string
	CronSpecDaily  string

	// CronKeyHash guards the manual trigger endpoints (bcrypt, see utils.HashOrRead).
	CronKeyHash []byte

	// Logger is used to log messages, errors, and events during the application's lifecycle and operations.
	Logger *zap.Logger

	// Server is the HTTP server that serves the manual trigger API.
	Server *http.Server
}

// Initialize initializes the App.
func Initialize(ctx context.Context) (*App, error) {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr'
		panic(err)
	}

	ledgerDb, ledgerErr := ledger.New(ctx, logger, "aggregator")
	if ledgerErr != nil {
		logger.Fatal("Unable to initialize ledger database", zap.Error(ledgerErr))
	}

	cronKeyHash, hashErr := utils.HashOrRead(utils.Env("CRON_KEY", ""))
	if hashErr != nil {
		return nil, hashErr
	}

	agg := rollup.New(ledgerDb, reward.DefaultRule(), logger, utils.EnvInt("ROLLUP_WORKERS", 8))

	app := &App{
		Ledger:     ledgerDb,
		Aggregator: agg,
		Runner:     rollup.NewRunner(logger),
		Cron:       nil,
		// A couple of minutes past the boundary so late heartbeats land first.
		CronSpecHourly: utils.Env("CRON_SPEC_HOURLY", "0 2 * * * *"),
		CronSpecDaily:  utils.Env("CRON_SPEC_DAILY", "0 10 0 * * *"),
		CronKeyHash:    cronKeyHash,
		Logger:         logger,
	}

	scheduleErr := app.SetupScheduler(ctx, cron.DefaultLogger)
	if scheduleErr != nil {
		return nil, scheduleErr
	}

	return app, nil
}

// SetupScheduler sets up the cron scheduler.
func (a *App) SetupScheduler(ctx context.Context, logger cron.Logger) error {
	// Seconds field, optional
	a.Cron = cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(logger)))

	_, err := a.Cron.AddFunc(a.CronSpecHourly, func() {
		// keep each run bounded
		rctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
		w := rollup.PreviousHour(time.Now())
		if _, err := a.Runner.Execute(rctx, rollup.HourlyJob{Aggregator: a.Aggregator}, w); err != nil {
			logger.Info("[aggregator] hourly rollup error", "error", err)
		}
	})
	if err != nil {
		return err
	}

	_, err = a.Cron.AddFunc(a.CronSpecDaily, func() {
		rctx, cancel := context.WithTimeout(ctx, 15*time.Minute)
		defer cancel()
		w := rollup.PreviousDay(time.Now())
		if _, err := a.Runner.Execute(rctx, rollup.DailyJob{Aggregator: a.Aggregator}, w); err != nil {
			logger.Info("[aggregator] daily rollup error", "error", err)
		}
	})
	if err != nil {
		return err
	}

	return nil
}

// SetupServer sets up the HTTP server.
func (a *App) SetupServer() {
	// use <ip>:<port> to bind to a specific interface or :<port> to bind to all interfaces
	addr := utils.Env("ADDR", ":3002")

	r := mux.NewRouter()

	r.Handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200) })).Methods("GET")
	r.Handle("/readyz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.Ready(r.Context()) {
			w.WriteHeader(200)
		} else {
			w.WriteHeader(503)
		}
	})).Methods("GET")

	r.Handle("/rollup/hour", a.requireCronKey(http.HandlerFunc(a.TriggerHourly))).Methods("POST")
	r.Handle("/rollup/day", a.requireCronKey(http.HandlerFunc(a.TriggerDaily))).Methods("POST")

	a.Server = &http.Server{Addr: addr, Handler: r}
}

// StartCron starts the cron scheduler.
func (a *App) StartCron() {
	a.Cron.Start()
	a.Logger.Info("[aggregator] Cron started",
		zap.String("hourly", a.CronSpecHourly),
		zap.String("daily", a.CronSpecDaily))
}

// StopCron stops the cron scheduler.
func (a *App) StopCron() {
	if a.Cron != nil {
		<-a.Cron.Stop().Done()
	}
}

// Ready indicates whether the application is ready to handle operations, returning true if ready.
func (a *App) Ready(ctx context.Context) bool {
	return a.Ledger.Pool.Ping(ctx) == nil
}

// Start starts the application.
func (a *App) Start(ctx context.Context) {
	go func() { _ = a.Server.ListenAndServe() }()
	<-ctx.Done()
	_ = a.Server.Close()
	a.Logger.Info("[aggregator] shutting down…")
	a.StopCron()
	_ = a.Ledger.Close()
	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}
