// Package shutdown turns SIGINT and SIGTERM into an orderly stop.
package shutdown

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Run calls run and waits for it to return. The first signal calls stop and
// gives run up to timeout to finish; a second signal or the timeout cancels
// run's context outright.
func Run(
	ctx context.Context,
	logger *slog.Logger,
	timeout time.Duration,
	run func(ctx context.Context) error,
	stop func(),
) error {
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	return runWithSignals(ctx, logger, timeout, sigChan, run, stop)
}

func runWithSignals(
	ctx context.Context,
	logger *slog.Logger,
	timeout time.Duration,
	sigChan <-chan os.Signal,
	run func(ctx context.Context) error,
	stop func(),
) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- run(runCtx) }()

	select {
	case err := <-done:
		return err
	case sig := <-sigChan:
		logger.Info("received signal, stopping", "signal", sig)
		stop()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return ignoreCanceled(err)
	case sig := <-sigChan:
		logger.Warn("second signal, cancelling", "signal", sig)
	case <-timer.C:
		logger.Warn("shutdown timeout exceeded", "timeout", timeout)
	}

	cancel()
	return ignoreCanceled(<-done)
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
