package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jobharvest/harvester/internal/api"
	"github.com/jobharvest/harvester/internal/monitoring"
	"github.com/jobharvest/harvester/internal/pipeline"
	"github.com/jobharvest/harvester/internal/scheduler"
)

var noSchedule bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the scraping schedule",
	Long:  "Serve GET /jobs, POST /scrape and GET /runs/latest, and trigger runs on the cron schedule; blocks until SIGINT/SIGTERM.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&noSchedule, "no-schedule", false, "disable the cron trigger")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = a.logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitoring.NewMetrics(reg)

	d, err := a.buildDeps(ctx, metrics)
	if err != nil {
		a.logger.Error("failed to initialise pipeline", zap.Error(err))
		return err
	}
	defer d.Close()

	// Background runs live as long as the server does.
	runner := pipeline.NewRunner(ctx, d.orchestrator.Run, d.redis, a.logger)

	var sched *scheduler.Scheduler
	if !noSchedule {
		sched, err = scheduler.New(a.cfg.ScrapeSchedule, a.cfg.ScrapeTimezone, runner.Trigger, a.logger)
		if err != nil {
			return err
		}
		sched.Start()
	}

	server := api.NewServer(net.JoinHostPort("", a.cfg.ServerPort), d.pg, d.redis, runner.Trigger, metrics, reg, a.logger)
	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	a.logger.Info("server started", zap.String("port", a.cfg.ServerPort))

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			a.logger.Error("could not start server", zap.Error(err))
			return err
		}
	}

	a.logger.Info("shutting down server...")
	if sched != nil {
		sched.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server forced to shutdown", zap.Error(err))
	}

	// Runs in flight finish their current URL and record an aborted report.
	runner.Wait()
	a.logger.Info("server exiting")
	return nil
}
