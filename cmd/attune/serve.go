package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/attune-dev/attune/pkg/live"
	"github.com/attune-dev/attune/pkg/metrics"
	"github.com/attune-dev/attune/pkg/reactive"
)

func serveCmd() *cobra.Command {
	var (
		addr string
		tick time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a live reactive store for inspection",
		Long: `Start an HTTP server hosting a reactive store seeded with demo
data. State is inspectable under /state, writable via PUT, and batched
updates stream to websocket clients on /ws. Prometheus metrics are
exposed on /metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(addr, tick)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8090", "Listen address")
	cmd.Flags().DurationVar(&tick, "tick", 16*time.Millisecond, "Batch tick interval")

	return cmd
}

func runServe(addr string, tick time.Duration) error {
	logger := slog.Default()

	rt := reactive.NewRuntime(
		reactive.WithLogger(logger),
		reactive.WithStats(metrics.New()),
		reactive.WithTicker(reactive.NewTimerTicker(tick)),
	)

	store, err := rt.Wrap(map[string]any{
		"user": map[string]any{
			"name": "Ann",
			"address": map[string]any{
				"city": "Berlin",
			},
		},
		"counters": map[string]any{
			"visits": 0,
		},
	})
	if err != nil {
		return err
	}

	server := live.NewServer(store, live.WithLogger(logger))
	defer server.Close()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("attune live server listening", "addr", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	}

	// Deliver anything still batched before the process exits.
	rt.Flush()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
