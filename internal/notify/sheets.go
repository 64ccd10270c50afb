package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"fintrack/internal/budget"
)

// rowAppender appends rows below the last filled row of a range.
type rowAppender interface {
	AppendRows(ctx context.Context, spreadsheetID, rng string, rows [][]any) error
}

type valuesAppender struct {
	svc *gsheet.Service
}

func (a valuesAppender) AppendRows(ctx context.Context, spreadsheetID, rng string, rows [][]any) error {
	vr := &gsheet.ValueRange{Values: rows}
	_, err := a.svc.Spreadsheets.Values.Append(spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	return err
}

// SheetsNotifier appends one row per alert to a Google Sheets tab:
// timestamp, period, scope, severity, used, limit, ratio, message.
type SheetsNotifier struct {
	rows          rowAppender
	spreadsheetID string
	sheet         string
	now           func() time.Time
}

// NewSheetsNotifier authenticates with a service account found in
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
func NewSheetsNotifier(ctx context.Context, spreadsheetID, sheet string) (*SheetsNotifier, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if sheet == "" {
		sheet = "Alerts"
	}
	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newSheetsNotifier(valuesAppender{svc: svc}, spreadsheetID, sheet), nil
}

func newSheetsNotifier(rows rowAppender, spreadsheetID, sheet string) *SheetsNotifier {
	return &SheetsNotifier{rows: rows, spreadsheetID: spreadsheetID, sheet: sheet, now: time.Now}
}

func (n *SheetsNotifier) Name() string { return "sheets" }

func (n *SheetsNotifier) Notify(ctx context.Context, alerts []budget.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	stamp := n.now().UTC().Format(time.RFC3339)
	rows := make([][]any, 0, len(alerts))
	for _, a := range alerts {
		rows = append(rows, alertRow(stamp, a))
	}
	rng := fmt.Sprintf("%s!A:H", n.sheet)
	if err := n.rows.AppendRows(ctx, n.spreadsheetID, rng, rows); err != nil {
		return fmt.Errorf("append %d alerts to %s: %w", len(rows), n.sheet, err)
	}
	slog.DebugContext(ctx, "Appended alerts to sheet", "sheet", n.sheet, "count", len(rows))
	return nil
}

func alertRow(stamp string, a budget.Alert) []any {
	return []any{
		stamp,
		a.Period,
		a.Label,
		a.Severity.String(),
		a.Used.String(),
		a.Limit.String(),
		a.Ratio.StringFixed(4),
		a.Message,
	}
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	opts, err := sheetsAuth(ctx)
	if err != nil {
		return nil, err
	}
	service, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// sheetsAuth prefers service account credentials and falls back to a user
// token from cmd/oauth-init.
func sheetsAuth(ctx context.Context) ([]goption.ClientOption, error) {
	credentialsJSON, err := serviceAccountCredentials()
	if err == nil {
		return []goption.ClientOption{
			goption.WithCredentialsJSON(credentialsJSON),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}, nil
	}
	if !errors.Is(err, errNoCredentials) {
		return nil, err
	}
	ts, ok, oerr := oauthTokenSource(ctx)
	if oerr != nil {
		return nil, oerr
	}
	if !ok {
		return nil, err
	}
	slog.InfoContext(ctx, "Using OAuth user token for Google Sheets", "token_file", TokenFile())
	return []goption.ClientOption{goption.WithTokenSource(ts)}, nil
}

var errNoCredentials = errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS, or an OAuth client via GOOGLE_OAUTH_CLIENT_JSON/GOOGLE_OAUTH_CLIENT_FILE)")

func serviceAccountCredentials() ([]byte, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case serviceAccountJSON != "":
		return []byte(serviceAccountJSON), nil
	case serviceAccountFile != "":
		data, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errNoCredentials
	}
}
