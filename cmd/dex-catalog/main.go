package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/devblac/dex-catalog/internal/report"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := Execute(ctx)
	stop()
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	if err == nil {
		return report.ExitClean
	}
	var ee exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return report.ExitFatal
}
