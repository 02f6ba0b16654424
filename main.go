package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"grimm.is/dynwall/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cmd.Execute(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}
