// Command welfarectl is the officer and operator CLI: creating schemes,
// listing applications, settling payments and maintaining the database.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	dErrors "welfare/pkg/domain-errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(&app{}).ExecuteContext(ctx)
	stop()
	if err != nil {
		slog.Debug("command failed", "error", err)
		fmt.Fprintln(os.Stderr, "error:", dErrors.Message(err))
		os.Exit(1)
	}
}
