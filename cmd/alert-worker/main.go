package main

import (
	"context"
	"errors"
	"os"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cli"
	applog "fintrack/internal/log"
	"fintrack/internal/notify"
	"fintrack/internal/worker"
)

func main() {
	cfg, logger, err := cli.Bootstrap(os.Stdout)
	cli.ExitOnError(logger, "Configuration failed", err)
	logger = logger.WithComponent(applog.ComponentWorker)

	logger.Info("Starting alert-worker", applog.FieldOperation, applog.OpStartup)

	if cfg.AMQPURL == "" {
		cli.ExitOnError(logger, "Configuration failed", errors.New("AMQP_URL is required by the alert worker"))
	}

	app, err := cli.NewApp(context.Background(), cfg, logger, cli.AppOptions{})
	cli.ExitOnError(logger, "Failed to initialize application", err)
	defer app.Close()

	notifiers := notify.Multi{notify.NewLogNotifier(logger)}
	if cfg.GoogleSpreadsheetID != "" {
		sheets, err := notify.NewSheetsNotifier(context.Background(), cfg.GoogleSpreadsheetID, cfg.GoogleAlertsSheetName)
		cli.ExitOnError(logger, "Failed to initialize Google Sheets notifier", err)
		notifiers = append(notifiers, sheets)
		logger.Info("Google Sheets alert log enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	cli.ExitOnError(logger, "Failed to initialize AMQP client", err)
	defer amqpClient.Close()

	w := worker.NewAlertWorker(app.Engine, notifiers, worker.Config{
		SweepInterval: cfg.AlertSweepInterval,
		DedupTTL:      cfg.AlertDedupTTL,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)
	ctx = applog.WithLogger(ctx, logger)

	logger.Info("Alert worker running",
		"sweep_interval", cfg.AlertSweepInterval.String(),
		"dedup_ttl", cfg.AlertDedupTTL.String(),
		"queue", cfg.AMQPQueue)

	if err := w.Run(ctx, amqpClient); err != nil {
		logger.Error("Alert worker stopped", applog.FieldError, err)
		_ = amqpClient.Close()
		_ = app.Close()
		os.Exit(1)
	}

	<-done
	logger.Info("Worker shutdown complete")
}
