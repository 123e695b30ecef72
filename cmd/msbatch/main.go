package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"msbatch/internal/cli"
)

// main wires interrupt handling into the run context: cancelling it kills
// the dispatched tool's whole process group.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Main(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
