package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jobharvest/harvester/internal/domain"
	"github.com/jobharvest/harvester/internal/monitoring"
	"github.com/jobharvest/harvester/internal/pipeline"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run one scraping pass in the foreground",
	Long:  "Scrape every source once, print the run report as JSON, and exit. SIGINT stops the run after the current URL.",
	RunE:  runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(cmd *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = a.logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := a.buildDeps(ctx, monitoring.NewMetrics(prometheus.NewRegistry()))
	if err != nil {
		a.logger.Error("failed to initialise pipeline", zap.Error(err))
		return err
	}
	defer d.Close()

	report, runErr := pipeline.NewRunner(ctx, d.orchestrator.Run, d.redis, a.logger).RunNow(ctx)
	if report != nil {
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
	}
	if runErr != nil {
		return runErr
	}
	if report.State == domain.RunAborted {
		return fmt.Errorf("run %s aborted: %s", report.ID, report.Error)
	}
	return nil
}
