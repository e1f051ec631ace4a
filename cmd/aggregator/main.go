package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/relaygrid/pointsx/app/aggregator"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := aggregator.Initialize(ctx)
	if err != nil {
		panic(err)
	}

	// Start cron scheduler
	app.StartCron()

	// Setup server
	app.SetupServer()

	// Start server
	app.Start(ctx)
}
