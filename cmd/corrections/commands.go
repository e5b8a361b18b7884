// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/demidovbig/Corrections-System/cmd/corrections/config"
	"github.com/demidovbig/Corrections-System/cmd/corrections/internal/client"
	"github.com/demidovbig/Corrections-System/cmd/corrections/internal/tui"
	"github.com/demidovbig/Corrections-System/pkg/extensions"
	"github.com/demidovbig/Corrections-System/pkg/logging"
	"github.com/demidovbig/Corrections-System/services/corrections"
	"github.com/demidovbig/Corrections-System/services/corrections/mcpserver"
	"github.com/demidovbig/Corrections-System/services/corrections/store"
)

// migrateTimeout bounds scope seeding during migrate.
const migrateTimeout = 30 * time.Second

// cliFlags holds the values bound to the command line.
type cliFlags struct {
	configPath string
	apiURL     string
	apiToken   string
	altScreen  bool
}

func newRootCmd() *cobra.Command {
	flags := &cliFlags{}

	rootCmd := &cobra.Command{
		Use:           "corrections",
		Short:         "Review and manage spelling corrections",
		Long:          `Corrections stores proposed corrections with their hypotheses and context, serves them over a REST API, and offers a terminal UI and an MCP server for reviewers and agents.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "",
		fmt.Sprintf("config file (default %s, or $%s)", config.DefaultPath, config.EnvConfigPath))

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the corrections REST API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), flags)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema and seed scopes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd.Context(), flags)
		},
	}

	uiCmd := &cobra.Command{
		Use:   "ui",
		Short: "Browse and edit corrections in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUI(cmd.Context(), flags)
		},
	}
	uiCmd.Flags().StringVar(&flags.apiURL, "api", "", "corrections API URL (default from config client.api_url)")
	uiCmd.Flags().StringVar(&flags.apiToken, "token", "", "bearer token (default from config client.token)")
	uiCmd.Flags().BoolVar(&flags.altScreen, "alt-screen", true, "use the terminal's alternate screen")

	mcpCmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the corrections MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMCP(cmd.Context(), flags)
		},
	}

	rootCmd.AddCommand(serveCmd, migrateCmd, uiCmd, mcpCmd)
	return rootCmd
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// =============================================================================
// serve
// =============================================================================

func runServe(parent context.Context, flags *cliFlags) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}

	logger := logging.New(cfg.LoggingOptions(corrections.ServiceName))
	defer logger.Close()
	log := logger.Slog()
	slog.SetDefault(log)

	if cfg.Path != "" {
		log.Info("loaded config", "path", cfg.Path)
	}

	opts := cfg.ServiceOptions(log)
	svc, err := corrections.New(cfg.ToServiceConfig(log), &opts)
	if err != nil {
		return fmt.Errorf("failed to start %s: %w", corrections.ServiceName, err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Error("shutdown cleanup failed", "error", err)
		}
	}()

	ctx, stop := signalContext(parent)
	defer stop()
	return svc.Run(ctx)
}

// =============================================================================
// migrate
// =============================================================================

func runMigrate(parent context.Context, flags *cliFlags) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}

	logger := logging.New(cfg.LoggingOptions("corrections-migrate"))
	defer logger.Close()

	repo, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	ctx, stop := signalContext(parent)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, migrateTimeout)
	defer cancel()

	if err := repo.EnsureScopes(ctx, cfg.Scopes); err != nil {
		return fmt.Errorf("failed to seed scopes: %w", err)
	}
	logger.Info("database is ready", "path", cfg.Store.Path, "scopes", len(cfg.Scopes))
	return nil
}

func openStore(cfg config.FileConfig) (*store.SqlStore, error) {
	repo, err := store.Open(store.Config{
		Path:         cfg.Store.Path,
		MaxOpenConns: cfg.Store.MaxOpenConns,
		MaxIdleConns: cfg.Store.MaxIdleConns,
		BusyTimeout:  cfg.Store.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open store %s: %w", cfg.Store.Path, err)
	}
	return repo, nil
}

// =============================================================================
// ui
// =============================================================================

func runUI(_ context.Context, flags *cliFlags) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}

	// Console logs would draw over the UI; only the log file is kept.
	logOpts := cfg.LoggingOptions("corrections-ui")
	logOpts.Quiet = true
	logger := logging.New(logOpts)
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	apiURL := flags.apiURL
	if apiURL == "" {
		apiURL = cfg.Client.APIURL
	}
	token := flags.apiToken
	if token == "" {
		token = cfg.Client.Token
	}

	api := client.New(apiURL, client.WithToken(token))
	logger.Info("starting terminal ui", "api", api.BaseURL())

	err = tui.Run(api, tui.Options{AltScreen: flags.altScreen})
	if errors.Is(err, tui.ErrNotTerminal) {
		return fmt.Errorf("%w; use the REST API at %s for scripted access", err, api.BaseURL())
	}
	return err
}

// =============================================================================
// mcp
// =============================================================================

func runMCP(parent context.Context, flags *cliFlags) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}

	// stdout carries the MCP protocol, so logs go to stderr.
	logOpts := cfg.LoggingOptions("corrections-mcp")
	logOpts.Output = os.Stderr
	logger := logging.New(logOpts)
	defer logger.Close()
	log := logger.Slog()
	slog.SetDefault(log)

	repo, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	ctx, stop := signalContext(parent)
	defer stop()

	seedCtx, cancel := context.WithTimeout(ctx, migrateTimeout)
	err = repo.EnsureScopes(seedCtx, cfg.Scopes)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to seed scopes: %w", err)
	}

	var audit extensions.AuditLogger = &extensions.NopAuditLogger{}
	if cfg.Audit.Enabled {
		audit = extensions.NewSlogAuditLogger(log)
	}

	server := mcpserver.NewServer(repo, mcpserver.Options{
		Version: version,
		Audit:   audit,
		Logger:  log,
	})
	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
