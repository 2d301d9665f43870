package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Iron-Ham/lockstep/internal/cmd"
	"github.com/Iron-Ham/lockstep/internal/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.Execute(ctx)
	stop()

	if err == nil {
		return
	}
	if errors.Is(err, cmd.ErrConflict) {
		os.Exit(2)
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	if errors.IsRetryable(err) {
		// timeouts and state-file contention; the same command may succeed later
		os.Exit(3)
	}
	os.Exit(1)
}
