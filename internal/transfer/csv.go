// Package transfer moves expenses and budgets in and out of the store:
// CSV import and export, OFX statement import, and YAML budget plans.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

// Record is one CSV row: id,date,amount,category,description.
type Record struct {
	ID          int64  `csv:"id"`
	Date        string `csv:"date"`
	Amount      string `csv:"amount"`
	Category    string `csv:"category"`
	Description string `csv:"description"`
}

// Creator stores one expense, as services.ExpenseService does.
type Creator interface {
	CreateExpense(ctx context.Context, e core.Expense) (services.Result, error)
}

// Report summarizes an import. Rejected rows are listed, not fatal.
type Report struct {
	Imported int      `json:"imported"`
	Rejected []string `json:"rejected,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// WriteCSV writes expenses with a header row. Amounts keep their full
// stored precision.
func WriteCSV(w io.Writer, expenses []core.Expense) error {
	rows := make([]*Record, 0, len(expenses))
	for _, e := range expenses {
		rows = append(rows, &Record{
			ID:          e.ID,
			Date:        e.Date.String(),
			Amount:      e.Amount.Amount.String(),
			Category:    e.Category,
			Description: e.Description,
		})
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// ReadCSV parses rows into records without validating them.
func ReadCSV(r io.Reader) ([]*Record, error) {
	var rows []*Record
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return rows, nil
}

// Expense converts a record. The id column is ignored on import.
func (rec Record) Expense() (core.Expense, error) {
	d, err := core.ParseDate(rec.Date)
	if err != nil {
		return core.Expense{}, err
	}
	amount, err := core.ParseMoney(rec.Amount)
	if err != nil {
		return core.Expense{}, err
	}
	return core.Expense{
		Date:        d,
		Amount:      amount,
		Category:    strings.TrimSpace(rec.Category),
		Description: strings.TrimSpace(rec.Description),
	}, nil
}

// ImportCSV creates one expense per valid row. Header line is row 1.
func ImportCSV(ctx context.Context, r io.Reader, dst Creator) (Report, error) {
	rows, err := ReadCSV(r)
	if err != nil {
		return Report{}, err
	}
	var rep Report
	for i, rec := range rows {
		line := i + 2
		e, err := rec.Expense()
		if err != nil {
			rep.Rejected = append(rep.Rejected, fmt.Sprintf("row %d: %v", line, err))
			continue
		}
		if err := create(ctx, dst, e, &rep); err != nil {
			if isFatal(err) {
				return rep, fmt.Errorf("row %d: %w", line, err)
			}
			rep.Rejected = append(rep.Rejected, fmt.Sprintf("row %d: %v", line, err))
		}
	}
	return rep, nil
}

func create(ctx context.Context, dst Creator, e core.Expense, rep *Report) error {
	res, err := dst.CreateExpense(ctx, e)
	if err != nil {
		return err
	}
	rep.Imported++
	rep.Warnings = append(rep.Warnings, res.Warnings...)
	return nil
}

// isFatal separates store outages, which abort an import, from bad rows.
func isFatal(err error) bool {
	return !errors.Is(err, core.ErrInvalidExpense)
}
