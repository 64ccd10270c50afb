package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/config"
	"fintrack/internal/core"
)

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("FINTRACK_TEST_KEY=from-dotenv\n"), 0o600))
	t.Setenv("FINTRACK_TEST_KEY", "")
	os.Unsetenv("FINTRACK_TEST_KEY")

	require.NoError(t, LoadEnvFile(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "from-dotenv", os.Getenv("FINTRACK_TEST_KEY"))
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger("warn", "json", &buf)
	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.Contains(out, `"msg":"shown"`), out)
}

func memoryConfig() *config.Config {
	cfg := config.Load()
	cfg.DataBackend = "memory"
	cfg.AMQPURL = ""
	cfg.AnomalyMethod = "zscore"
	return cfg
}

func TestNewAppWiresMemoryBackend(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	app, err := NewApp(ctx, memoryConfig(), SetupLogger("error", "text", &buf), AppOptions{TrainSuggester: true, PublishEvents: true})
	require.NoError(t, err)
	defer app.Close()

	require.NoError(t, app.Engine.Budgets().SetBudget(ctx, "2025-08", "food", core.MustMoney("100")))
	res, err := app.Expenses.CreateExpense(ctx, core.Expense{
		Date: core.NewDate(2025, 8, 3), Amount: core.MustMoney("95"), Category: "food", Description: "Market",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Warnings)

	alerts, err := app.Engine.BuildAlertsForPeriod(ctx, "2025-08")
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "food", alerts[0].Scope)
}

func TestNewAppRejectsUnknownAnomalyMethod(t *testing.T) {
	cfg := memoryConfig()
	cfg.AnomalyMethod = "mad"
	var buf bytes.Buffer
	_, err := NewApp(context.Background(), cfg, SetupLogger("error", "text", &buf), AppOptions{})
	assert.Error(t, err)
}
