// Package cli provides the process bootstrap shared by cmd/fintrack,
// cmd/fintrack-server and cmd/alert-worker.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fintrack/internal/amqp"
	"fintrack/internal/analytics"
	"fintrack/internal/backend"
	"fintrack/internal/budget"
	"fintrack/internal/config"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/storage"
	"fintrack/internal/suggest"
)

// SetupLogger builds the process logger from LOG_LEVEL/LOG_FORMAT values
// and installs it as the slog default.
func SetupLogger(level, format string, out io.Writer) *applog.Logger {
	if out == nil {
		out = os.Stdout
	}
	logger := applog.New(applog.Config{
		Level:  applog.ParseLevel(level),
		Format: format,
		Output: out,
	})
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads .env files for local development. A missing file is not
// an error; a malformed one is.
func LoadEnvFile(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Bootstrap loads .env and the configuration, installs the logger and then
// validates. The logger is always returned so callers can report the error.
func Bootstrap(out io.Writer) (*config.Config, *applog.Logger, error) {
	envErr := LoadEnvFile()
	cfg := config.Load()
	logger := SetupLogger(cfg.LogLevel, cfg.LogFormat, out)
	if envErr != nil {
		return nil, logger, envErr
	}
	if err := cfg.Validate(); err != nil {
		return nil, logger, err
	}
	return cfg, logger, nil
}

// InitBackend opens the repository selected by cfg.DataBackend.
func InitBackend(ctx context.Context, logger *applog.Logger, cfg *config.Config) (*backend.BackendResult, error) {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	return backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).CreateBackend(ctx, bc)
}

// App is the wired application graph.
type App struct {
	Config    *config.Config
	Logger    *applog.Logger
	Repo      storage.Repository
	Engine    *budget.Engine
	Expenses  *services.ExpenseService
	Stats     *analytics.Service
	Suggester *suggest.Suggester
}

// AppOptions toggles the optional collaborators.
type AppOptions struct {
	// PublishEvents connects an AMQP publisher when AMQP_URL is set.
	PublishEvents bool
	// TrainSuggester trains the classifier synchronously at startup.
	TrainSuggester bool
}

// NewApp opens the backend and wires the engine and services over it.
// Close releases everything NewApp opened.
func NewApp(ctx context.Context, cfg *config.Config, logger *applog.Logger, opts AppOptions) (*App, error) {
	res, err := InitBackend(ctx, logger, cfg)
	if err != nil {
		return nil, err
	}

	engine := budget.NewEngine(res.Repository, budget.WithThresholds(cfg.Thresholds()))

	method, err := analytics.ParseMethod(cfg.AnomalyMethod)
	if err != nil {
		_ = res.Cleanup()
		return nil, err
	}
	stats := analytics.NewService(res.Repository, analytics.NewDetector(method, cfg.AnomalySensitivity))

	sg := suggest.New(res.Repository, suggest.WithLogger(logger.WithComponent(applog.ComponentSuggest)))
	if opts.TrainSuggester {
		if err := sg.Retrain(ctx); err != nil {
			logger.WarnContext(ctx, "Initial classifier training failed", applog.FieldError, err)
		}
	}

	svcOpts := []services.Option{
		services.WithSuggester(sg),
		services.WithLogger(logger.WithComponent(applog.ComponentExpense)),
	}
	if opts.PublishEvents && cfg.AMQPURL != "" {
		amqpLog := logger.WithComponent(applog.ComponentAMQP)
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			amqpLog.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", applog.FieldError, err)
		} else {
			amqpLog.InfoContext(ctx, "Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
			svcOpts = append(svcOpts, services.WithPublisher(client))
		}
	}

	return &App{
		Config:    cfg,
		Logger:    logger,
		Repo:      res.Repository,
		Engine:    engine,
		Expenses:  services.NewExpenseService(res.Repository, engine, svcOpts...),
		Stats:     stats,
		Suggester: sg,
	}, nil
}

// Close closes the repository and the event publisher.
func (a *App) Close() error {
	return a.Expenses.Close()
}

// GracefulShutdown returns a context cancelled on SIGINT/SIGTERM. After the
// signal, cleanup runs with a context bounded by timeout and done is closed
// once it returns.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		sig := <-sigChan
		logger.Info("Shutdown signal received", applog.FieldOperation, applog.OpShutdown, "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
			logger.Warn("Shutdown timeout reached", applog.FieldOperation, applog.OpShutdown)
		} else {
			logger.Info("Shutdown complete", applog.FieldOperation, applog.OpShutdown)
		}
		close(done)
	}()

	return ctx, done
}

// ExitOnError logs err and exits with status 1.
func ExitOnError(logger *applog.Logger, msg string, err error) {
	if err == nil {
		return
	}
	logger.Error(msg, applog.FieldError, err)
	os.Exit(1)
}
