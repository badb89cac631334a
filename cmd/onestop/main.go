// Command onestop runs the OneStop ITSM API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bissquit/onestop-itsm/internal/app"
	"github.com/bissquit/onestop-itsm/internal/config"
	"github.com/bissquit/onestop-itsm/internal/pkg/postgres"
	"github.com/bissquit/onestop-itsm/internal/version"
	"github.com/bissquit/onestop-itsm/migrations"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "onestop",
	Short:         "OneStop ITSM service console API",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// serveCmd starts the HTTP and metrics servers
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE:  runServe,
}

// migrateCmd moves the PostgreSQL schema
var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down]",
	Short:     "Apply or roll back database migrations",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(postgres.MigrateUp), string(postgres.MigrateDown)},
	RunE:      runMigrate,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Get())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("ONESTOP_CONFIG"), "path to YAML config file")
	rootCmd.AddCommand(serveCmd, migrateCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create application: %w", err)
	}

	if err := application.Run(ctx); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}

func runMigrate(_ *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return errors.New("database.url is required to run migrations")
	}

	return postgres.Migrate(cfg.Database.URL, migrations.FS, ".", postgres.MigrateDirection(args[0]))
}

// Execute is used by tests to run the CLI with a context.
func Execute(ctx context.Context, args ...string) error {
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}
