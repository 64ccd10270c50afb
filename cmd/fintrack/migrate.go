package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"fintrack/internal/cli"
	"fintrack/internal/period"
	"fintrack/internal/storage"
)

func migrateLegacyCmd() *cobra.Command {
	var month, week string

	cmd := &cobra.Command{
		Use:   "migrate-legacy <legacy.db>",
		Short: "Copy a legacy single-period database into the SQLite backend",
		Long: `Copy expenses and budgets of a legacy database into the configured SQLite
database in one transaction.

Legacy budgets carry no period: category budgets and the total budget are
assigned to --month, the weekly budget to --week. Both default to the
current period. A database that was already imported is refused.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			now := today()
			month, week = periodArg(month), periodArg(week)
			if month == "" {
				month = period.MonthKey(now)
			}
			if week == "" {
				week = period.WeekKey(now)
			}
			m, err := period.Parse(month)
			if err != nil {
				return err
			}
			w, err := period.Parse(week)
			if err != nil {
				return err
			}
			if m.Kind != period.Month || w.Kind != period.Week {
				return fmt.Errorf("--month takes a month key and --week a week key")
			}

			return withApp(cmd, cli.AppOptions{}, func(ctx context.Context, app *cli.App) error {
				repo, ok := app.Repo.(*storage.SQLiteRepository)
				if !ok {
					return fmt.Errorf("migrate-legacy needs the sqlite backend, configured backend is %q", app.Config.DataBackend)
				}
				rep, err := repo.ImportLegacy(ctx, args[0], m, w)
				if err != nil {
					return fmt.Errorf("migrate %s: %w", args[0], err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, SuccessStyle.Render(fmt.Sprintf("Imported %d expenses and %d budgets from %s", rep.Expenses, rep.Budgets, args[0])))
				if rep.Skipped > 0 {
					fmt.Fprintln(out, WarningStyle.Render(fmt.Sprintf("Skipped %d rows without a usable amount", rep.Skipped)))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&month, "month", "", "month for period-less budgets (default current month)")
	cmd.Flags().StringVar(&week, "week", "", "ISO week for the weekly budget (default current week)")

	return cmd
}
