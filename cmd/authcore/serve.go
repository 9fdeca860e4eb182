// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/clinicore/authcore/internal/observability"
	"github.com/clinicore/authcore/pkg/errutil"
)

// shutdownTimeout bounds graceful shutdown of the metrics server.
const shutdownTimeout = 10 * time.Second

func newServeMetricsCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "serve-metrics",
		Short: "Serve Prometheus metrics and health probes",
		Long: `Serve /metrics, /livez and /readyz on the configured metrics address
until interrupted. Readiness follows the account store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, deps, func(rt *runtime) error {
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				return serveMetrics(ctx, rt)
			})
		},
	}
}

// serveMetrics runs the observability server until ctx is done or the
// server fails.
func serveMetrics(ctx context.Context, rt *runtime) error {
	server := observability.NewServer(rt.cfg.Metrics.Addr, rt.store.Ready, rt.logger)
	rt.metrics = server.Metrics()

	errCh, err := server.Start()
	if err != nil {
		return err
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok && err != nil {
			errutil.LogErrorContext(ctx, rt.logger, "metrics server failed", err)
			serveErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		errutil.LogErrorContext(shutdownCtx, rt.logger, "metrics server shutdown failed", err)
	}
	return serveErr
}
