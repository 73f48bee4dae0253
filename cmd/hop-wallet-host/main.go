package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/eternalab/hop-wallet/internal/setup"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(os.Args) > 1 && os.Args[1] == "init" {
		if err := setup.Init(ctx); err != nil {
			log.Fatal("keystore setup failed", "error", err)
		}
		return
	}

	// browsers pass the extension origin as the first argument
	if err := setup.Run(ctx, setup.BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
	}); err != nil {
		log.Fatal("hop-wallet-host failed", "error", err)
	}
}
