// Package period maps period keys onto inclusive calendar date ranges.
//
// A period key is either a calendar month ("2025-08") or an ISO-8601 week
// ("2025-W07"). Week numbering follows ISO rules: week 1 is the week holding
// the year's first Thursday, and a week belongs to the year owning that
// Thursday, which at year boundaries is not always the date's calendar year.
package period

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/core"
)

type Kind int

const (
	Month Kind = iota + 1
	Week
)

func (k Kind) String() string {
	switch k {
	case Month:
		return "month"
	case Week:
		return "week"
	default:
		return "unknown"
	}
}

// ParseKind accepts "month" or "week" (case-insensitive).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "month", "monthly", "":
		return Month, nil
	case "week", "weekly":
		return Week, nil
	}
	return 0, fmt.Errorf("%w: unknown period kind %q", core.ErrInvalidPeriodFormat, s)
}

// Key is a parsed period key. Number is the month (1-12) or ISO week (1-53).
type Key struct {
	Kind   Kind
	Year   int
	Number int
}

var (
	monthPattern = regexp.MustCompile(`^(\d{4})-(\d{2})$`)
	weekPattern  = regexp.MustCompile(`^(\d{4})-W(\d{2})$`)
)

// Parse validates a period key string. The key must be exactly YYYY-MM or
// YYYY-Www; surrounding whitespace is rejected.
func Parse(s string) (Key, error) {
	if m := monthPattern.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if year < 1 || month < 1 || month > 12 {
			return Key{}, fmt.Errorf("%w: %q", core.ErrInvalidPeriodFormat, s)
		}
		return Key{Kind: Month, Year: year, Number: month}, nil
	}
	if m := weekPattern.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		week, _ := strconv.Atoi(m[2])
		if year < 1 {
			return Key{}, fmt.Errorf("%w: %q", core.ErrInvalidPeriodFormat, s)
		}
		if week < 1 || week > WeeksInYear(year) {
			return Key{}, fmt.Errorf("%w: week %d out of range for ISO year %d", core.ErrInvalidPeriodFormat, week, year)
		}
		return Key{Kind: Week, Year: year, Number: week}, nil
	}
	return Key{}, fmt.Errorf("%w: %q (expected YYYY-MM or YYYY-Www)", core.ErrInvalidPeriodFormat, s)
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Key {
	k, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return k
}

func (k Key) String() string {
	if k.Kind == Week {
		return fmt.Sprintf("%04d-W%02d", k.Year, k.Number)
	}
	return fmt.Sprintf("%04d-%02d", k.Year, k.Number)
}

// MonthKey returns the "YYYY-MM" key of the month containing d.
func MonthKey(d core.Date) string {
	return ForDate(Month, d).String()
}

// WeekKey returns the "YYYY-Www" key of the ISO week containing d.
func WeekKey(d core.Date) string {
	return ForDate(Week, d).String()
}

// ForDate returns the period of the given kind containing d.
func ForDate(kind Kind, d core.Date) Key {
	if kind == Week {
		year, week := d.ISOWeek()
		return Key{Kind: Week, Year: year, Number: week}
	}
	return Key{Kind: Month, Year: d.Year(), Number: d.Month()}
}

// Range resolves a key string into its inclusive start and end dates.
func Range(key string) (start, end core.Date, err error) {
	k, err := Parse(key)
	if err != nil {
		return core.Date{}, core.Date{}, err
	}
	start, end = k.Range()
	return start, end, nil
}

// Range returns the inclusive first and last day of the period.
func (k Key) Range() (start, end core.Date) {
	if k.Kind == Week {
		start = isoWeekMonday(k.Year, k.Number)
		return start, start.AddDays(6)
	}
	start = core.NewDate(k.Year, k.Number, 1)
	// Day 0 of the next month is the last day of this one.
	end = core.Date{Time: time.Date(k.Year, time.Month(k.Number)+1, 0, 0, 0, 0, 0, time.UTC)}
	return start, end
}

// Contains reports whether d falls inside the period.
func (k Key) Contains(d core.Date) bool {
	return ForDate(k.Kind, d) == k
}

// Previous returns the period immediately before k.
func (k Key) Previous() Key {
	start, _ := k.Range()
	return ForDate(k.Kind, start.AddDays(-1))
}

// Next returns the period immediately after k.
func (k Key) Next() Key {
	_, end := k.Range()
	return ForDate(k.Kind, end.AddDays(1))
}

// WeeksInYear returns 52 or 53, the number of ISO weeks in the ISO year.
func WeeksInYear(year int) int {
	// December 28th is always in the last ISO week of its year.
	_, w := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return w
}

func isoWeekMonday(year, week int) core.Date {
	// January 4th is always in ISO week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7 // days since Monday
	week1 := jan4.AddDate(0, 0, -offset)
	return core.Date{Time: week1.AddDate(0, 0, (week-1)*7)}
}
