package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"escrowScope/internal/config"
	"escrowScope/internal/project"
	"escrowScope/internal/storage/postgres"
)

func newProjectCmd() *cobra.Command {
	projectCmd := &cobra.Command{
		Use:   "project",
		Short: "Project typed events into the Deal/User materialized view",
		RunE:  runProject,
	}

	projectCmd.Flags().String("in", "", "input typed events JSONL")
	projectCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	projectCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	projectCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	return projectCmd
}

func runProject(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadProject(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Input == "" {
		return fmt.Errorf("input path is required")
	}
	if cfg.PGDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	var stateStore project.StateStore
	if cfg.StateFile != "" {
		stateStore = &project.FileStateStore{Path: cfg.StateFile}
	} else {
		stateStore = &project.DBStateStore{Store: store, Name: "projector"}
	}

	projector := project.NewProjector(project.Config{
		StateStore: stateStore,
	}, store, logger)

	logger.Info("project start",
		zap.String("input", cfg.Input),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.String("state_file", cfg.StateFile),
	)

	return projector.Run(ctx, cfg.Input)
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
