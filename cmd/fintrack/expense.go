package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"fintrack/internal/cli"
	"fintrack/internal/core"
	"fintrack/internal/period"
	"fintrack/internal/services"
)

func expenseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "expense",
		Aliases: []string{"expenses"},
		Short:   "Record, list, edit and delete expenses",
	}

	cmd.AddCommand(addExpenseCmd())
	cmd.AddCommand(listExpensesCmd())
	cmd.AddCommand(editExpenseCmd())
	cmd.AddCommand(deleteExpenseCmd())

	return cmd
}

func today() core.Date {
	return core.DateOf(time.Now())
}

// parseDateFlag parses a YYYY-MM-DD flag value, defaulting to today.
func parseDateFlag(s string) (core.Date, error) {
	if s == "" {
		return today(), nil
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, fmt.Errorf("date %q: %w", s, err)
	}
	return d, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid expense id %q", s)
	}
	return id, nil
}

func addExpenseCmd() *cobra.Command {
	var (
		date        string
		amount      string
		category    string
		description string
		dryRun      bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record an expense",
		Long: `Record an expense. Budgets touched by the expense are checked first and
any warning is printed; the expense is stored regardless.

When --category is omitted the category is suggested from past expenses.`,
		Example: `  fintrack expense add --amount 12.50 --description "Lunch" --category food
  fintrack expense add --amount 900 --description "Rent" --dry-run`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := parseDateFlag(date)
			if err != nil {
				return err
			}
			m, err := core.ParseMoney(amount)
			if err != nil {
				return fmt.Errorf("amount %q: %w", amount, err)
			}
			e := core.Expense{Date: d, Amount: m, Category: category, Description: description}

			return withApp(cmd, writeOpts, func(ctx context.Context, app *cli.App) error {
				out := cmd.OutOrStdout()
				if dryRun {
					res, err := app.Expenses.Check(ctx, e)
					if err != nil {
						return err
					}
					printResult(out, "Dry run, nothing stored:", res)
					return nil
				}
				res, err := app.Expenses.CreateExpense(ctx, e)
				if err != nil {
					return err
				}
				printResult(out, fmt.Sprintf("Recorded expense #%d:", res.Expense.ID), res)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "expense date YYYY-MM-DD (default today)")
	cmd.Flags().StringVarP(&amount, "amount", "a", "", "amount, e.g. 12.50")
	cmd.Flags().StringVarP(&category, "category", "c", "", "category (suggested when omitted)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "what the money was spent on")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only report the budget check")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("description")

	return cmd
}

func printResult(w io.Writer, heading string, res services.Result) {
	fmt.Fprintln(w, TitleStyle.Render(heading))
	e := res.Expense
	category := e.Category
	if res.Suggested {
		category += SubtleStyle.Render(" (suggested)")
	}
	if e.ID != 0 {
		fmt.Fprintf(w, "  %-12s %d\n", "ID", e.ID)
	}
	fmt.Fprintf(w, "  %-12s %s\n", "Date", e.Date)
	fmt.Fprintf(w, "  %-12s %s\n", "Amount", e.Amount)
	fmt.Fprintf(w, "  %-12s %s\n", "Category", category)
	fmt.Fprintf(w, "  %-12s %s\n", "Description", e.Description)
	if len(res.Warnings) == 0 {
		fmt.Fprintln(w, SuccessStyle.Render("Within budget."))
		return
	}
	printWarnings(w, res.Warnings)
}

// filterFlags are the expense filters shared by list and export.
type filterFlags struct {
	month     string
	from      string
	to        string
	category  string
	minAmount string
	limit     int
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.month, "period", "p", "", "period key (2025-08 or 2025-W32); overrides --from/--to")
	cmd.Flags().StringVar(&f.from, "from", "", "first date YYYY-MM-DD")
	cmd.Flags().StringVar(&f.to, "to", "", "last date YYYY-MM-DD")
	cmd.Flags().StringVarP(&f.category, "category", "c", "", "category")
	cmd.Flags().StringVar(&f.minAmount, "min-amount", "", "smallest amount to include")
	cmd.Flags().IntVarP(&f.limit, "limit", "n", 0, "maximum number of expenses (0 for all)")
}

func (f *filterFlags) filter() (core.ExpenseFilter, error) {
	filter := core.ExpenseFilter{Category: f.category, Limit: f.limit}
	if f.limit < 0 {
		return filter, fmt.Errorf("limit must not be negative")
	}
	var err error
	switch {
	case periodArg(f.month) != "":
		if filter.From, filter.To, err = period.Range(periodArg(f.month)); err != nil {
			return filter, err
		}
	default:
		if f.from != "" {
			if filter.From, err = core.ParseDate(f.from); err != nil {
				return filter, fmt.Errorf("from %q: %w", f.from, err)
			}
		}
		if f.to != "" {
			if filter.To, err = core.ParseDate(f.to); err != nil {
				return filter, fmt.Errorf("to %q: %w", f.to, err)
			}
		}
	}
	if f.minAmount != "" {
		if filter.MinAmount, err = core.ParseMoney(f.minAmount); err != nil {
			return filter, fmt.Errorf("min amount %q: %w", f.minAmount, err)
		}
	}
	return filter, nil
}

func listExpensesCmd() *cobra.Command {
	var flags filterFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List expenses, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := flags.filter()
			if err != nil {
				return err
			}
			return withApp(cmd, cli.AppOptions{}, func(ctx context.Context, app *cli.App) error {
				expenses, err := app.Expenses.ListExpenses(ctx, filter)
				if err != nil {
					return fmt.Errorf("list expenses: %w", err)
				}
				out := cmd.OutOrStdout()
				if len(expenses) == 0 {
					fmt.Fprintln(out, InfoStyle.Render("No expenses found. Use 'fintrack expense add' to record one."))
					return nil
				}
				printExpenses(out, expenses)
				return nil
			})
		},
	}
	flags.register(cmd)

	return cmd
}

func printExpenses(w io.Writer, expenses []core.Expense) {
	t := newTable(w, "ID", "Date", "Amount", "Category", "Description")
	total := core.Money{}
	for _, e := range expenses {
		t.row(strconv.FormatInt(e.ID, 10), e.Date.String(), e.Amount.String(), e.Category, e.Description)
		total = total.Add(e.Amount)
	}
	_ = t.flush()
	fmt.Fprintf(w, "\n%s %s across %d expenses\n", HeaderStyle.Render("Total:"), total, len(expenses))
}

func editExpenseCmd() *cobra.Command {
	var (
		date        string
		amount      string
		category    string
		description string
	)

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a stored expense",
		Long: `Change the given fields of a stored expense. The budget check excludes
the expense being edited, so only the difference counts.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if !flags.Changed("date") && !flags.Changed("amount") && !flags.Changed("category") && !flags.Changed("description") {
				return fmt.Errorf("nothing to change: pass at least one of --date, --amount, --category, --description")
			}

			return withApp(cmd, writeOpts, func(ctx context.Context, app *cli.App) error {
				e, err := app.Expenses.GetExpense(ctx, id)
				if err != nil {
					return err
				}
				if flags.Changed("date") {
					if e.Date, err = core.ParseDate(date); err != nil {
						return fmt.Errorf("date %q: %w", date, err)
					}
				}
				if flags.Changed("amount") {
					if e.Amount, err = core.ParseMoney(amount); err != nil {
						return fmt.Errorf("amount %q: %w", amount, err)
					}
				}
				if flags.Changed("category") {
					e.Category = category
				}
				if flags.Changed("description") {
					e.Description = description
				}

				res, err := app.Expenses.UpdateExpense(ctx, e)
				if err != nil {
					return err
				}
				printResult(cmd.OutOrStdout(), fmt.Sprintf("Updated expense #%d:", id), res)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "new date YYYY-MM-DD")
	cmd.Flags().StringVarP(&amount, "amount", "a", "", "new amount")
	cmd.Flags().StringVarP(&category, "category", "c", "", "new category")
	cmd.Flags().StringVarP(&description, "description", "d", "", "new description")

	return cmd
}

func deleteExpenseCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a stored expense",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, writeOpts, func(ctx context.Context, app *cli.App) error {
				if err := app.Expenses.DeleteExpense(ctx, id); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render(fmt.Sprintf("Deleted expense #%d", id)))
				return nil
			})
		},
	}
}
