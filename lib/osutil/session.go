package osutil

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// SignalContext returns a context that is cancelled by the first SIGINT or SIGTERM, the second
// one exits the process right away.
func SignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		slog.Warn("interrupted, writing what was collected (interrupt again to abort)")
		cancel()

		<-sigs
		slog.Error("aborted")
		os.Exit(130)
	}()

	return ctx
}

// Fatal logs err under message and exits with a non-zero status.
func Fatal(message string, err error) {
	slog.Error(message, "err", err.Error())
	os.Exit(1)
}
