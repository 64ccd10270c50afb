package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/cli"
	apphttp "fintrack/internal/http"
	applog "fintrack/internal/log"
)

func main() {
	cfg, logger, err := cli.Bootstrap(os.Stdout)
	cli.ExitOnError(logger, "Configuration failed", err)

	app, err := cli.NewApp(context.Background(), cfg, logger, cli.AppOptions{
		PublishEvents:  true,
		TrainSuggester: true,
	})
	cli.ExitOnError(logger, "Failed to initialize application", err)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Expenses: app.Expenses,
		Engine:   app.Engine,
		Stats:    app.Stats,
		Health:   app.Repo,
		Logger:   logger,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if err := app.Close(); err != nil {
			logger.Error("Failed to close application", applog.FieldError, err)
		}
	})

	caches := cache.NewManager()
	caches.Register(app.Suggester.Cache())
	go func() { _ = caches.Run(ctx, time.Minute) }()

	logger.Info("Starting fintrack server",
		applog.FieldOperation, applog.OpStartup, "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		_ = app.Close()
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
