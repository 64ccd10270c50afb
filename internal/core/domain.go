package core

import (
	"errors"
	"strings"
	"time"
)

// TotalCategory is the reserved category label for the whole-period budget.
const TotalCategory = "__TOTAL__"

// TotalAlias is how users address TotalCategory in paths, arguments and
// plan files. It is reserved too, so no expense category can shadow it.
const TotalAlias = "total"

// DateLayout is the ISO 8601 calendar date format used everywhere dates cross
// a process or storage boundary.
const DateLayout = "2006-01-02"

type (
	Date struct {
		time.Time
	}

	Expense struct {
		ID          int64 // Database ID, zero until stored
		Date        Date
		Amount      Money
		Category    string
		Description string
	}

	// CategoryAmount represents an amount aggregated by category name.
	CategoryAmount struct {
		Name   string
		Amount Money
	}

	// DailyTotal is the summed spend of a single calendar day.
	DailyTotal struct {
		Date   Date
		Amount Money
	}
)

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// MarshalJSON encodes the date as a YYYY-MM-DD string.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON decodes a YYYY-MM-DD string.
func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// AddDays returns the date n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// NormalizeCategory lower-cases and trims a category label. The total
// sentinel is returned verbatim regardless of case.
func NormalizeCategory(category string) string {
	c := strings.TrimSpace(category)
	if strings.EqualFold(c, TotalCategory) {
		return TotalCategory
	}
	return strings.ToLower(c)
}

// BudgetCategory resolves a user-supplied budget category, mapping
// TotalAlias onto TotalCategory.
func BudgetCategory(category string) string {
	c := NormalizeCategory(category)
	if c == TotalAlias {
		return TotalCategory
	}
	return c
}

// IsReservedCategory reports whether category names the total budget.
func IsReservedCategory(category string) bool {
	return BudgetCategory(category) == TotalCategory
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if IsReservedCategory(e.Category) {
		return ErrReservedCategory
	}
	return nil
}

// ExpenseFilter selects expenses for listing. Zero From/To leave the range
// open on that side; an empty Category matches all; Limit <= 0 means no cap.
type ExpenseFilter struct {
	From      Date
	To        Date
	Category  string
	MinAmount Money
	Limit     int
}

// Match reports whether e passes the filter.
func (f ExpenseFilter) Match(e Expense) bool {
	if !f.From.IsZero() && e.Date.Before(f.From.Time) {
		return false
	}
	if !f.To.IsZero() && e.Date.After(f.To.Time) {
		return false
	}
	if f.Category != "" && NormalizeCategory(e.Category) != NormalizeCategory(f.Category) {
		return false
	}
	if !f.MinAmount.IsZero() && e.Amount.Amount.LessThan(f.MinAmount.Amount) {
		return false
	}
	return true
}
