package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"

	"fintrack/internal/budget"
	"fintrack/internal/core"
)

var (
	OKColor      = lipgloss.Color("#4ECDC4")
	InfoColor    = lipgloss.Color("#95E1D3")
	WarningColor = lipgloss.Color("#FFE66D")
	DangerColor  = lipgloss.Color("#FF6B6B")
	SubtleColor  = lipgloss.Color("#666666")

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(DangerColor)

	SuccessStyle = lipgloss.NewStyle().Foreground(OKColor)
	InfoStyle    = lipgloss.NewStyle().Foreground(InfoColor)
	WarningStyle = lipgloss.NewStyle().Foreground(WarningColor)
	ErrorStyle   = lipgloss.NewStyle().Foreground(DangerColor)
	SubtleStyle  = lipgloss.NewStyle().Foreground(SubtleColor)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))
)

// severityStyle picks the colour of an alert tier.
func severityStyle(s budget.Severity) lipgloss.Style {
	switch s {
	case budget.SeverityDanger:
		return ErrorStyle.Bold(true)
	case budget.SeverityWarning:
		return WarningStyle
	case budget.SeverityInfo:
		return InfoStyle
	default:
		return SuccessStyle
	}
}

// renderAlert renders an alert message coloured by its severity.
func renderAlert(a budget.Alert) string {
	return severityStyle(a.Severity).Render(a.Message)
}

// renderWarning colours a projected-budget warning by its severity prefix.
func renderWarning(w string) string {
	prefix, _, _ := strings.Cut(w, ":")
	var s budget.Severity
	if err := s.UnmarshalText([]byte(prefix)); err != nil {
		return WarningStyle.Render(w)
	}
	return severityStyle(s).Render(w)
}

func printWarnings(w io.Writer, warnings []string) {
	for _, msg := range warnings {
		fmt.Fprintln(w, renderWarning(msg))
	}
}

// table wraps a tabwriter with a styled header row.
type table struct {
	tw *tabwriter.Writer
}

func newTable(w io.Writer, headers ...string) *table {
	t := &table{tw: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
	styled := make([]string, len(headers))
	rules := make([]string, len(headers))
	for i, h := range headers {
		styled[i] = HeaderStyle.Render(h)
		rules[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(t.tw, strings.Join(styled, "\t"))
	fmt.Fprintln(t.tw, strings.Join(rules, "\t"))
	return t
}

func (t *table) row(cells ...string) {
	fmt.Fprintln(t.tw, strings.Join(cells, "\t"))
}

func (t *table) flush() error {
	return t.tw.Flush()
}

// categoryLabel shows the total sentinel the way users type it.
func categoryLabel(category string) string {
	if category == core.TotalCategory {
		return core.TotalAlias
	}
	return category
}

// periodArg trims a period key typed on the command line.
func periodArg(s string) string {
	return strings.TrimSpace(s)
}

// parseCategoryArg maps the "total" alias onto the sentinel.
func parseCategoryArg(s string) string {
	return core.BudgetCategory(s)
}
