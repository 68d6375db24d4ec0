package main

import (
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jobharvest/harvester/internal/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the job_postings table and indexes",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = a.logger.Sync() }()

	if a.cfg.PostgresURL == "" {
		return errors.New("POSTGRES_URL is required")
	}
	pg, err := storage.NewPostgresStore(cmd.Context(), a.cfg.PostgresURL)
	if err != nil {
		return err
	}
	defer pg.Close()

	if err := pg.Migrate(cmd.Context()); err != nil {
		return err
	}
	a.logger.Info("schema applied")
	return nil
}
