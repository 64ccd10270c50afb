package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"fintrack/internal/analytics"
	"fintrack/internal/budget"
	"fintrack/internal/cli"
	"fintrack/internal/core"
	"fintrack/internal/period"
)

func alertsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "alerts [period]",
		Short: "Show budget alerts for a period (default current month)",
		Long: `Show every budget of the period that has reached the info tier or above,
the total budget first. Periods are months (2025-08) or ISO weeks (2025-W32).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := period.MonthKey(today())
			if len(args) == 1 {
				key = periodArg(args[0])
			}
			return withApp(cmd, cli.AppOptions{}, func(ctx context.Context, app *cli.App) error {
				alerts, err := app.Engine.BuildAlertsForPeriod(ctx, key)
				if err != nil {
					if errors.Is(err, core.ErrStoreUnavailable) {
						return fmt.Errorf("alerts unavailable for %s: %w", key, err)
					}
					return err
				}
				printAlerts(cmd.OutOrStdout(), key, alerts)
				return nil
			})
		},
	}
}

func printAlerts(w io.Writer, key string, alerts []budget.Alert) {
	fmt.Fprintln(w, TitleStyle.Render("Budget alerts for "+key))
	if len(alerts) == 0 {
		fmt.Fprintln(w, SuccessStyle.Render("All budgets are within limits."))
		return
	}
	for _, a := range alerts {
		fmt.Fprintln(w, renderAlert(a))
	}
}

func checkCmd() *cobra.Command {
	var (
		date     string
		amount   string
		category string
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check a prospective expense against its budgets without storing it",
		Long: `Project a prospective expense onto the monthly and weekly budgets it
would touch and print a warning for each one it would bring to the
warning tier or above.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := parseDateFlag(date)
			if err != nil {
				return err
			}
			m, err := core.ParseMoney(amount)
			if err != nil {
				return fmt.Errorf("amount %q: %w", amount, err)
			}
			return withApp(cmd, cli.AppOptions{}, func(ctx context.Context, app *cli.App) error {
				warnings, err := app.Engine.CheckProjectedBudget(ctx, category, m, d, 0)
				if err != nil {
					return fmt.Errorf("budget check unavailable: %w", err)
				}
				out := cmd.OutOrStdout()
				if len(warnings) == 0 {
					fmt.Fprintln(out, SuccessStyle.Render("Within budget."))
					return nil
				}
				printWarnings(out, warnings)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "expense date YYYY-MM-DD (default today)")
	cmd.Flags().StringVarP(&amount, "amount", "a", "", "amount")
	cmd.Flags().StringVarP(&category, "category", "c", "", "category")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}

func statsCmd() *cobra.Command {
	var (
		month     string
		category  string
		minAmount string
		months    int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summary statistics, category breakdown and monthly trend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			month = periodArg(month)
			if month == "" {
				month = period.MonthKey(today())
			}
			end, err := period.Parse(month)
			if err != nil {
				return err
			}
			if end.Kind != period.Month {
				return fmt.Errorf("stats need a month, got %q", month)
			}
			var minimum core.Money
			if minAmount != "" {
				if minimum, err = core.ParseMoney(minAmount); err != nil {
					return fmt.Errorf("min amount %q: %w", minAmount, err)
				}
			}
			if months < 1 {
				return fmt.Errorf("months must be at least 1")
			}

			return withApp(cmd, cli.AppOptions{}, func(ctx context.Context, app *cli.App) error {
				summary, err := app.Stats.Summary(ctx, end.String(), category, minimum)
				if err != nil {
					return fmt.Errorf("summary: %w", err)
				}
				breakdown, err := app.Stats.CategoryBreakdown(ctx, end.String())
				if err != nil {
					return fmt.Errorf("category breakdown: %w", err)
				}
				trend, err := app.Stats.MonthlyTrend(ctx, end, months)
				if err != nil {
					return fmt.Errorf("monthly trend: %w", err)
				}
				printStats(cmd.OutOrStdout(), end.String(), summary, breakdown, trend)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&month, "month", "m", "", "month YYYY-MM (default current month)")
	cmd.Flags().StringVarP(&category, "category", "c", "", "restrict the summary to a category")
	cmd.Flags().StringVar(&minAmount, "min-amount", "", "ignore expenses below this amount")
	cmd.Flags().IntVar(&months, "months", 6, "months of trend ending at --month")

	return cmd
}

func printStats(w io.Writer, month string, s analytics.Summary, breakdown []core.CategoryAmount, trend []analytics.MonthTotal) {
	fmt.Fprintln(w, TitleStyle.Render("Summary for "+month))
	fmt.Fprintf(w, "  %-16s %s\n", "Total spent", s.TotalSpent)
	fmt.Fprintf(w, "  %-16s %d\n", "Expenses", s.Count)
	fmt.Fprintf(w, "  %-16s %s\n", "Average per day", s.AverageDaily)
	if s.TopCategory != "" {
		fmt.Fprintf(w, "  %-16s %s (%s)\n", "Top category", s.TopCategory, s.TopCategoryAmount)
	}
	if s.HighestSpend != "" {
		fmt.Fprintf(w, "  %-16s %s (%s)\n", "Highest spend", s.HighestSpend, s.HighestSpendAmount)
	}

	if len(breakdown) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, TitleStyle.Render("By category"))
		t := newTable(w, "Category", "Amount")
		for _, c := range breakdown {
			t.row(c.Name, c.Amount.String())
		}
		_ = t.flush()
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, TitleStyle.Render("Monthly trend"))
	t := newTable(w, "Month", "Amount")
	for _, m := range trend {
		t.row(m.Month, m.Amount.String())
	}
	_ = t.flush()
}

func anomaliesCmd() *cobra.Command {
	var (
		from        string
		to          string
		method      string
		sensitivity float64
	)

	cmd := &cobra.Command{
		Use:   "anomalies",
		Short: "List days with unusually high spending",
		Long: `List days whose total spend is unusually high compared to the other days
of the range. The zscore method flags days above mean + k*stddev, the iqr
method days above Q3 + k*IQR; k is the sensitivity.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				fromDate, toDate core.Date
				err              error
			)
			if from != "" {
				if fromDate, err = core.ParseDate(from); err != nil {
					return fmt.Errorf("from %q: %w", from, err)
				}
			}
			if to != "" {
				if toDate, err = core.ParseDate(to); err != nil {
					return fmt.Errorf("to %q: %w", to, err)
				}
			}

			return withApp(cmd, cli.AppOptions{}, func(ctx context.Context, app *cli.App) error {
				d := app.Stats.Detector()
				if method != "" {
					if d.Method, err = analytics.ParseMethod(method); err != nil {
						return err
					}
				}
				if cmd.Flags().Changed("sensitivity") {
					if sensitivity <= 0 {
						return fmt.Errorf("sensitivity must be positive")
					}
					d.Sensitivity = sensitivity
				}
				anomalies, err := app.Stats.AnomaliesWith(ctx, d, fromDate, toDate)
				if err != nil {
					return fmt.Errorf("detect anomalies: %w", err)
				}
				printAnomalies(cmd.OutOrStdout(), d, anomalies)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first date YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last date YYYY-MM-DD")
	cmd.Flags().StringVar(&method, "method", "", "zscore or iqr (default ANOMALY_METHOD)")
	cmd.Flags().Float64Var(&sensitivity, "sensitivity", 0, "threshold multiplier (default ANOMALY_SENSITIVITY)")

	return cmd
}

func printAnomalies(w io.Writer, d analytics.Detector, anomalies []analytics.Anomaly) {
	fmt.Fprintln(w, TitleStyle.Render(fmt.Sprintf("Anomalies (%s, sensitivity %s)",
		d.Method, strconv.FormatFloat(d.Sensitivity, 'f', -1, 64))))
	if len(anomalies) == 0 {
		fmt.Fprintln(w, SuccessStyle.Render("No unusual spending found."))
		return
	}
	t := newTable(w, "Date", "Amount", "Reason")
	for _, a := range anomalies {
		t.row(a.Date.String(), WarningStyle.Render(a.Amount.String()), a.Reason)
	}
	_ = t.flush()
}

func suggestCmd() *cobra.Command {
	var amount string

	cmd := &cobra.Command{
		Use:   "suggest <description>",
		Short: "Suggest a category for a description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			description := strings.Join(args, " ")
			var m core.Money
			if amount != "" {
				var err error
				if m, err = core.ParseMoney(amount); err != nil {
					return fmt.Errorf("amount %q: %w", amount, err)
				}
			}
			return withApp(cmd, cli.AppOptions{TrainSuggester: true}, func(_ context.Context, app *cli.App) error {
				out := cmd.OutOrStdout()
				category, ok := app.Expenses.Suggest(description, m)
				if !ok {
					fmt.Fprintln(out, InfoStyle.Render("No suggestion; record a few categorised expenses first."))
					return nil
				}
				fmt.Fprintln(out, SuccessStyle.Render(category))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&amount, "amount", "a", "", "amount, improves the suggestion")

	return cmd
}
