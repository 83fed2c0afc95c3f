package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/declaranet/declara-cli/cmd"
)

func main() {
	// Interrupts abort the run cleanly; the submission controller's deferred
	// logout still fires.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(cmd.ExecuteContext(ctx))
}
