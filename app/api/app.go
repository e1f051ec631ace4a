package api

import (
	"context"

	"github.com/relaygrid/pointsx/app/api/types"
	"github.com/relaygrid/pointsx/pkg/db/ledger"
	"github.com/relaygrid/pointsx/pkg/logging"
	"github.com/relaygrid/pointsx/pkg/redis"
	"github.com/relaygrid/pointsx/pkg/reward"
	"github.com/relaygrid/pointsx/pkg/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Initialize initializes the application.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr'
		panic(err)
	}

	ledgerDb, ledgerErr := ledger.New(ctx, logger, "api")
	if ledgerErr != nil {
		logger.Fatal("Unable to initialize ledger database", zap.Error(ledgerErr))
	}

	// Initialize Redis client for the real-time ledger feed (optional)
	var redisClient *redis.Client
	if utils.Env("REDIS_ENABLED", "false") == "true" {
		redisClient, err = redis.NewClient(ctx, logger)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - real-time ledger feed will be disabled",
				zap.Error(err))
			redisClient = nil
		} else {
			logger.Info("Redis client initialized for real-time ledger feed")
		}
	} else {
		logger.Info("Redis disabled - real-time ledger feed will not be available")
	}

	cfg := types.Config{
		ServiceAPIKey:         utils.Env("SERVICE_API_KEY", ""),
		VerifierKey:           utils.Env("VERIFIER_KEY", ""),
		JWTSecret:             []byte(utils.Env("JWT_SECRET", "dev-secret")),
		DailyCap:              utils.EnvInt64("DAILY_CAP", 5000),
		UptimePointsPerMinute: utils.EnvInt64("UPTIME_POINTS_PER_MINUTE", 1),
		ConversionEnabled:     utils.EnvBool("CONVERSION_ENABLED", true),
		ConversionRate:        decimal.NewFromFloat(utils.EnvFloat("CONVERSION_RATE", 1000)),
		Rule:                  reward.DefaultRule(),
	}

	if cfg.ServiceAPIKey == "" {
		logger.Warn("SERVICE_API_KEY is empty - the /earn endpoint will reject all callers")
	}

	app := &types.App{
		Ledger:      ledgerDb,
		RedisClient: redisClient,
		Config:      cfg,
		Logger:      logger,
	}

	return app
}
