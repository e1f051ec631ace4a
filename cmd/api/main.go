package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/relaygrid/pointsx/app/api"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app := api.Initialize(ctx)

	// Setup server
	if err := api.NewServer(app); err != nil {
		panic(err)
	}

	// Start server
	app.Start(ctx)
}
