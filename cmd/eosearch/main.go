package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"eosearch/internal/logging"
)

func main() {
	logging.InitFromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logging.L().Error("eosearch failed", "err", err)
		stop()
		os.Exit(1)
	}
}
