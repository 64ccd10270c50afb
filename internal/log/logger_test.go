package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerStampsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Format: "json", Output: &buf, Component: ComponentWorker})

	logger.WithComponent(ComponentBudget).Info("hello", FieldPeriod, "2025-08")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected one JSON record, got %q: %v", buf.String(), err)
	}
	if rec[FieldComponent] != ComponentBudget {
		t.Errorf("component = %v, want %v", rec[FieldComponent], ComponentBudget)
	}
	if rec[FieldPeriod] != "2025-08" {
		t.Errorf("period = %v", rec[FieldPeriod])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelWarn, Output: &buf})
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestMiddlewareAndFromContext(t *testing.T) {
	logger := New(Config{Output: &bytes.Buffer{}, Component: ComponentHTTP})
	var got *Logger
	h := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if got != logger {
		t.Fatalf("FromContext did not return the middleware logger")
	}
	if FromContext(context.Background()).Component() != "unknown" {
		t.Errorf("fallback logger should have unknown component")
	}
}

func TestStructuredLoggerError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Output: &buf}))
	sl.LogError(context.Background(), "boom", errors.New("broker gone"), ComponentAMQP, OpPublish,
		NewFields().WithExpense(3, "12.50", "food", "2025-08-01"))
	out := buf.String()
	for _, want := range []string{"boom", "broker gone", "component=amqp", "operation=publish", "expense_id=3"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestStructuredLoggerExpenseWritten(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Output: &buf}))
	sl.LogExpenseWritten(context.Background(), OpUpdate, 9, "40.00", "travel", "2025-08-02")
	out := buf.String()
	for _, want := range []string{"Expense written", "component=expense", "operation=update", "expense_id=9", "amount=40.00", "category=travel", "date=2025-08-02"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestDefaultStampsComponent(t *testing.T) {
	if got := Default(ComponentSuggest).Component(); got != ComponentSuggest {
		t.Errorf("component = %q, want %q", got, ComponentSuggest)
	}
}
