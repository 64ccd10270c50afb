package notify

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"fintrack/internal/budget"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

func sampleAlert() budget.Alert {
	return budget.Alert{
		Severity: budget.SeverityDanger,
		Scope:    "food",
		Label:    "food",
		Period:   "2025-08",
		Used:     core.MustMoney("1100"),
		Limit:    core.MustMoney("1000"),
		Ratio:    decimal.RequireFromString("1.1"),
		Message:  "DANGER: food over budget for 2025-08: 1100.00 / 1000.00 (110.0%)",
	}
}

type fakeAppender struct {
	spreadsheetID, rng string
	rows               [][]any
	err                error
}

func (f *fakeAppender) AppendRows(_ context.Context, id, rng string, rows [][]any) error {
	f.spreadsheetID, f.rng = id, rng
	f.rows = append(f.rows, rows...)
	return f.err
}

func TestSheetsNotifierAppendsRows(t *testing.T) {
	fake := &fakeAppender{}
	n := newSheetsNotifier(fake, "sheet-id", "Alerts")
	n.now = func() time.Time { return time.Date(2025, 8, 20, 9, 30, 0, 0, time.UTC) }

	require.NoError(t, n.Notify(context.Background(), []budget.Alert{sampleAlert()}))
	assert.Equal(t, "sheet-id", fake.spreadsheetID)
	assert.Equal(t, "Alerts!A:H", fake.rng)
	require.Len(t, fake.rows, 1)
	assert.Equal(t, []any{
		"2025-08-20T09:30:00Z", "2025-08", "food", "danger", "1100.00", "1000.00", "1.1000",
		sampleAlert().Message,
	}, fake.rows[0])
}

func TestSheetsNotifierSkipsEmptyBatch(t *testing.T) {
	fake := &fakeAppender{err: errors.New("should not be called")}
	n := newSheetsNotifier(fake, "sheet-id", "Alerts")
	assert.NoError(t, n.Notify(context.Background(), nil))
}

func TestSheetsNotifierWrapsErrors(t *testing.T) {
	fake := &fakeAppender{err: errors.New("quota exceeded")}
	n := newSheetsNotifier(fake, "sheet-id", "Alerts")
	err := n.Notify(context.Background(), []budget.Alert{sampleAlert()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestNewSheetsNotifierRequiresConfig(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := NewSheetsNotifier(context.Background(), "", "Alerts")
	assert.EqualError(t, err, "missing GOOGLE_SPREADSHEET_ID")

	_, err = NewSheetsNotifier(context.Background(), "id", "Alerts")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing service account credentials")
}

func TestServiceAccountCredentialsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sa.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"service_account"}`), 0o600))
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", path)

	data, err := serviceAccountCredentials()
	require.NoError(t, err)
	assert.Contains(t, string(data), "service_account")
}

const testOAuthClient = `{"installed":{"client_id":"id.apps.googleusercontent.com","client_secret":"secret",` +
	`"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token",` +
	`"redirect_uris":["http://localhost"]}}`

func TestOAuthClientConfig(t *testing.T) {
	t.Setenv("GOOGLE_OAUTH_CLIENT_JSON", "")
	t.Setenv("GOOGLE_OAUTH_CLIENT_FILE", "")
	_, err := OAuthClientConfig()
	assert.ErrorIs(t, err, errNoOAuthClient)

	t.Setenv("GOOGLE_OAUTH_CLIENT_JSON", testOAuthClient)
	cfg, err := OAuthClientConfig()
	require.NoError(t, err)
	assert.Equal(t, "id.apps.googleusercontent.com", cfg.ClientID)
	assert.Contains(t, cfg.Scopes, "https://www.googleapis.com/auth/spreadsheets")
}

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, SaveToken(path, &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	tok, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "refresh", tok.RefreshToken)

	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))
	_, err = LoadToken(path)
	assert.Error(t, err)
}

func TestSheetsAuthFallsBackToOAuthToken(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	t.Setenv("GOOGLE_OAUTH_CLIENT_JSON", testOAuthClient)
	path := filepath.Join(t.TempDir(), "token.json")
	t.Setenv("GOOGLE_OAUTH_TOKEN_FILE", path)

	_, err := sheetsAuth(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run oauth-init first")

	require.NoError(t, SaveToken(path, &oauth2.Token{RefreshToken: "refresh"}))
	opts, err := sheetsAuth(context.Background())
	require.NoError(t, err)
	assert.Len(t, opts, 1)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Format: "json", Output: &buf})
	n := NewLogNotifier(logger)

	require.NoError(t, n.Notify(context.Background(), []budget.Alert{sampleAlert()}))
	out := buf.String()
	assert.Contains(t, out, `"severity":"danger"`)
	assert.Contains(t, out, `"period":"2025-08"`)
	assert.Contains(t, out, "over budget")
}

type countingNotifier struct {
	name  string
	calls int
	err   error
}

func (c *countingNotifier) Name() string { return c.name }

func (c *countingNotifier) Notify(context.Context, []budget.Alert) error {
	c.calls++
	return c.err
}

func TestMultiContinuesPastFailures(t *testing.T) {
	bad := &countingNotifier{name: "bad", err: errors.New("boom")}
	good := &countingNotifier{name: "good"}

	err := Multi{bad, good}.Notify(context.Background(), []budget.Alert{sampleAlert()})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "bad: boom"))
	assert.Equal(t, 1, good.calls)

	require.NoError(t, Multi{bad, good}.Notify(context.Background(), nil))
	assert.Equal(t, 1, bad.calls)
}
