package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"fintrack/internal/cli"
	"fintrack/internal/transfer"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import expenses from CSV or OFX files",
	}

	cmd.AddCommand(importFileCmd("csv", "Import expenses from CSV (id,date,amount,category,description)", transfer.ImportCSV))
	cmd.AddCommand(importFileCmd("ofx", "Import debits from OFX/QFX bank or card statements", transfer.ImportOFX))

	return cmd
}

type importFunc func(ctx context.Context, r io.Reader, dst transfer.Creator) (transfer.Report, error)

func importFileCmd(format, short string, run importFunc) *cobra.Command {
	return &cobra.Command{
		Use:   format + " <file>...",
		Short: short,
		Long: short + `.

Each expense goes through the same validation and budget check as
'fintrack expense add'. Rejected rows are reported and skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, writeOpts, func(ctx context.Context, app *cli.App) error {
				out := cmd.OutOrStdout()
				for _, path := range args {
					rep, err := importFile(ctx, path, app, run)
					if err != nil {
						return err
					}
					printReport(out, path, rep)
				}
				return nil
			})
		},
	}
}

func importFile(ctx context.Context, path string, app *cli.App, run importFunc) (transfer.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return transfer.Report{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	rep, err := run(ctx, f, app.Expenses)
	if err != nil {
		return rep, fmt.Errorf("import %s: %w", path, err)
	}
	return rep, nil
}

func printReport(w io.Writer, path string, rep transfer.Report) {
	fmt.Fprintln(w, TitleStyle.Render(path))
	fmt.Fprintln(w, SuccessStyle.Render(fmt.Sprintf("  imported %d expenses", rep.Imported)))
	for _, r := range rep.Rejected {
		fmt.Fprintln(w, ErrorStyle.Render("  rejected: "+r))
	}
	for _, msg := range rep.Warnings {
		fmt.Fprintln(w, "  "+renderWarning(msg))
	}
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export expenses",
	}
	cmd.AddCommand(exportCSVCmd())
	return cmd
}

func exportCSVCmd() *cobra.Command {
	var (
		flags  filterFlags
		output string
	)

	cmd := &cobra.Command{
		Use:   "csv",
		Short: "Export expenses as CSV",
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
				return writeOutput(cmd, output, func(w io.Writer) error {
					return transfer.WriteCSV(w, expenses)
				})
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write (default stdout)")

	return cmd
}

// writeOutput runs write against the named file, or stdout when path is empty.
func writeOutput(cmd *cobra.Command, path string, write func(io.Writer) error) error {
	if path == "" {
		return write(cmd.OutOrStdout())
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	fmt.Fprintln(cmd.ErrOrStderr(), SuccessStyle.Render("Wrote "+path))
	return nil
}
