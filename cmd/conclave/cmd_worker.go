package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	sdkworker "go.temporal.io/sdk/worker"

	"github.com/ahrav/go-conclave/internal/llm"
	"github.com/ahrav/go-conclave/internal/worker"
)

const metricsShutdownTimeout = 5 * time.Second

func newWorkerCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run a Temporal worker for evaluation workflows",
		Long: `Poll the configured task queue for evaluation workflows and run their
activities. Metrics are served at /metrics on the configured address.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := worker.NewRuntime(a.cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			if _, err := rt.Client.ValidateModels(contextOrBackground(cmd.Context()), llm.ConfiguredModels(a.cfg)); err != nil {
				return err
			}

			c, err := worker.DialTemporal(a.cfg.Temporal)
			if err != nil {
				return err
			}
			defer c.Close()

			if addr := a.cfg.Observability.MetricsAddr; addr != "" {
				srv := serveMetrics(addr, rt)
				defer func() {
					ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
					defer cancel()
					_ = srv.Shutdown(ctx)
				}()
			}

			w := sdkworker.New(c, a.cfg.Temporal.TaskQueue, sdkworker.Options{})
			worker.RegisterAll(w, rt.NewActivities())

			slog.Info("worker started", "task_queue", a.cfg.Temporal.TaskQueue, "temporal", a.cfg.Temporal.HostPort)
			return w.Run(sdkworker.InterruptCh())
		},
	}
}

func serveMetrics(addr string, rt *worker.Runtime) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(rt.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	return srv
}
