package types

import (
	"context"
	"net/http"
	"time"

	"github.com/relaygrid/pointsx/pkg/db/ledger"
	"github.com/relaygrid/pointsx/pkg/redis"
	"github.com/relaygrid/pointsx/pkg/reward"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Config holds the API app's settings, resolved once from the environment.
type Config struct {
	// Opaque shared secrets compared by exact match.
	ServiceAPIKey string
	VerifierKey   string

	// JWTSecret signs device session tokens issued on registration.
	JWTSecret []byte

	// Earn/convert knobs.
	DailyCap              int64
	UptimePointsPerMinute int64
	ConversionEnabled     bool
	ConversionRate        decimal.Decimal // points per token

	Rule reward.Rule
}

type App struct {
	Ledger *ledger.DB
	// RedisClient is optional; nil disables the real-time feed.
	RedisClient *redis.Client
	Config      Config
	// Zap Logger
	Logger *zap.Logger
	// Server represents the HTTP server instance used to handle incoming client requests and manage HTTP routes.
	Server *http.Server
}

// Start starts the application.
func (a *App) Start(ctx context.Context) {
	go func() { _ = a.Server.ListenAndServe() }()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.Ledger.Close(); err != nil {
		a.Logger.Error("Failed to close database connection", zap.Error(err))
	}
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Logger.Error("Failed to close Redis connection", zap.Error(err))
		}
	}

	_ = a.Server.Shutdown(shutdownCtx)
	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}
