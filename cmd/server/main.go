package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/fx"

	"dispatch/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	run(ctx, fx.New(app.Options()))
}
