package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"fintrack/internal/cli"
	"fintrack/internal/core"
	"fintrack/internal/period"
	"fintrack/internal/transfer"
)

func budgetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "budget",
		Aliases: []string{"budgets"},
		Short:   "Manage monthly and weekly budgets",
		Long: `Set, list and delete budgets. A budget belongs to a period, either a
month (2025-08) or an ISO week (2025-W32), and to a category. The category
"total" caps all spending of the period.`,
	}

	cmd.AddCommand(setBudgetCmd())
	cmd.AddCommand(listBudgetsCmd())
	cmd.AddCommand(deleteBudgetCmd())
	cmd.AddCommand(importBudgetsCmd())
	cmd.AddCommand(exportBudgetsCmd())

	return cmd
}

func setBudgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "set <period> <category|total> <amount>",
		Short:   "Create or replace a budget",
		Example: "  fintrack budget set 2025-08 food 400\n  fintrack budget set 2025-W32 total 250",
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := core.ParseMoney(args[2])
			if err != nil {
				return fmt.Errorf("amount %q: %w", args[2], err)
			}
			key, category := periodArg(args[0]), parseCategoryArg(args[1])
			return withApp(cmd, cli.AppOptions{}, func(ctx context.Context, app *cli.App) error {
				store := app.Engine.Budgets()
				if category == core.TotalCategory {
					err = store.SetTotalBudget(ctx, key, amount)
				} else {
					err = store.SetBudget(ctx, key, category, amount)
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render(
					fmt.Sprintf("Budget %s for %s set to %s", categoryLabel(category), key, amount)))
				return nil
			})
		},
	}
}

func listBudgetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [period]",
		Short: "List the budgets of a period (default current month)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := period.MonthKey(today())
			if len(args) == 1 {
				key = periodArg(args[0])
			}
			return withApp(cmd, cli.AppOptions{}, func(ctx context.Context, app *cli.App) error {
				budgets, err := app.Engine.Budgets().GetAllBudgets(ctx, key)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(budgets) == 0 {
					fmt.Fprintln(out, InfoStyle.Render(fmt.Sprintf("No budgets for %s.", key)))
					return nil
				}
				categories := make([]string, 0, len(budgets))
				for c := range budgets {
					categories = append(categories, c)
				}
				sort.Strings(categories)

				t := newTable(out, "Category", "Limit")
				for _, c := range categories {
					t.row(categoryLabel(c), budgets[c].String())
				}
				return t.flush()
			})
		},
	}
}

func deleteBudgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <period> <category|total>",
		Aliases: []string{"rm"},
		Short:   "Delete a budget; the scope then has no limit",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, category := periodArg(args[0]), parseCategoryArg(args[1])
			return withApp(cmd, cli.AppOptions{}, func(ctx context.Context, app *cli.App) error {
				if err := app.Engine.Budgets().DeleteBudget(ctx, key, category); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render(
					fmt.Sprintf("Deleted budget %s for %s", categoryLabel(category), key)))
				return nil
			})
		},
	}
}

func importBudgetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <plan.yaml>",
		Short: "Apply a YAML budget plan",
		Long: `Apply a YAML budget plan. Every entry is validated before any budget
is written:

  budgets:
    - period: 2025-08
      category: food
      amount: "400"
    - period: 2025-08
      category: total
      amount: "1500"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open plan: %w", err)
			}
			defer f.Close()

			plan, err := transfer.ReadPlan(f)
			if err != nil {
				return err
			}
			return withApp(cmd, cli.AppOptions{}, func(ctx context.Context, app *cli.App) error {
				n, err := plan.Apply(ctx, app.Engine.Budgets())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render(fmt.Sprintf("Applied %d budgets from %s", n, args[0])))
				return nil
			})
		},
	}
}

func exportBudgetsCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <period>...",
		Short: "Write the budgets of periods as a YAML plan",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := make([]string, len(args))
			for i, a := range args {
				keys[i] = periodArg(a)
			}
			return withApp(cmd, cli.AppOptions{}, func(ctx context.Context, app *cli.App) error {
				return writeOutput(cmd, output, func(w io.Writer) error {
					return transfer.WritePlan(ctx, w, app.Engine.Budgets(), keys)
				})
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write (default stdout)")

	return cmd
}
