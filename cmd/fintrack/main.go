package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fintrack/internal/cli"
	"fintrack/internal/config"
	applog "fintrack/internal/log"
)

var (
	backendFlag string
	dbPathFlag  string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "fintrack",
		Short: "Personal expense tracking with budget alerts",
		Long: `fintrack records expenses, keeps monthly and weekly budgets and
reports how spending compares to them.

Configuration comes from the environment (and a .env file when present),
the same variables the server and the alert worker read.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&backendFlag, "backend", "", "override DATA_BACKEND (memory, sqlite, postgres)")
	root.PersistentFlags().StringVar(&dbPathFlag, "db", "", "override SQLITE_DB_PATH")

	root.AddCommand(expenseCmd())
	root.AddCommand(budgetCmd())
	root.AddCommand(alertsCmd())
	root.AddCommand(checkCmd())
	root.AddCommand(statsCmd())
	root.AddCommand(anomaliesCmd())
	root.AddCommand(suggestCmd())
	root.AddCommand(importCmd())
	root.AddCommand(exportCmd())
	root.AddCommand(migrateLegacyCmd())

	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

// loadConfig bootstraps the environment and applies the global flag
// overrides. Logs go to stderr so stdout stays clean for exports.
func loadConfig() (*config.Config, *applog.Logger, error) {
	cfg, logger, err := cli.Bootstrap(os.Stderr)
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	if backendFlag == "" && dbPathFlag == "" {
		return cfg, logger, nil
	}
	if backendFlag != "" {
		cfg.DataBackend = backendFlag
	}
	if dbPathFlag != "" {
		cfg.SQLiteDBPath = dbPathFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, logger, nil
}

// withApp opens the application for the duration of fn.
func withApp(cmd *cobra.Command, opts cli.AppOptions, fn func(ctx context.Context, app *cli.App) error) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	app, err := cli.NewApp(ctx, cfg, logger.WithComponent(applog.ComponentCLI), opts)
	if err != nil {
		return fmt.Errorf("open %s backend: %w", cfg.DataBackend, err)
	}
	defer app.Close()
	return fn(ctx, app)
}

// writeOpts is used by commands that store expenses: writes are announced
// on the broker when one is configured.
var writeOpts = cli.AppOptions{PublishEvents: true, TrainSuggester: true}
