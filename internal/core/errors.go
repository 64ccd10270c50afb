package core

import "errors"

// Engine error taxonomy. Callers match with errors.Is.
var (
	ErrInvalidPeriodFormat = errors.New("invalid period format")
	ErrInvalidBudget       = errors.New("invalid budget")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrNotFound            = errors.New("not found")
	ErrInvalidExpense      = errors.New("invalid expense")
)

// Field validation errors.
var (
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidDate      = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyCategory    = errors.New("empty category")
	ErrReservedCategory = errors.New("category name is reserved for the total budget")
)
