// Package main is the entry point for the aptlyctl CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"aptlyctl/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx)
	stop()
	os.Exit(code)
}
