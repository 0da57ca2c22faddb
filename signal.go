package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// shutdownContext returns a context canceled by the first SIGINT/SIGTERM,
// so a login or tail can wind down cleanly. A second signal exits at once.
// The returned stop function releases the signal handler; call it when the
// command returns.
func shutdownContext(parent context.Context, logger *slog.Logger) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	stopped := make(chan struct{})

	var once sync.Once

	stop := func() {
		once.Do(func() { close(stopped) })
		cancel()
	}

	go func() {
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			logger.Info("interrupted, stopping", slog.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
			return
		case <-stopped:
			return
		}

		select {
		case sig := <-sigCh:
			logger.Warn("interrupted again, exiting now", slog.String("signal", sig.String()))
			os.Exit(1)
		case <-stopped:
		}
	}()

	return ctx, stop
}
