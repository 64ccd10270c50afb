// Package core provides money parsing and handling utilities.
//
// Amounts are arbitrary-precision decimals so that sums and ratios are exact:
// a spend of 84.999 against a limit of 100 must never round up to 85%.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Money struct {
	Amount decimal.Decimal
}

// NewMoney wraps a decimal amount.
func NewMoney(d decimal.Decimal) Money {
	return Money{Amount: d}
}

// MustMoney parses s and panics on failure. Intended for tests and constants.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// ParseMoney converts a decimal string to Money.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Signs,
// exponents, zero and malformed input are rejected with ErrInvalidAmount.
//
// Examples:
//
//	ParseMoney("12.34")  -> 12.34, nil
//	ParseMoney("12,345") -> 12.345, nil
//	ParseMoney("-1")     -> ErrInvalidAmount
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	if strings.Count(s, ".") > 1 {
		return Money{}, ErrInvalidAmount
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return Money{}, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	m := Money{Amount: d}
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

func (m Money) Validate() error {
	if !m.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{Amount: m.Amount.Add(o.Amount)}
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

// String formats the amount with two decimals for display.
func (m Money) String() string {
	return m.Amount.StringFixed(2)
}

// MarshalJSON encodes the exact decimal as a JSON string.
func (m Money) MarshalJSON() ([]byte, error) {
	return m.Amount.MarshalJSON()
}

// UnmarshalJSON accepts either a JSON string or number.
func (m *Money) UnmarshalJSON(data []byte) error {
	return m.Amount.UnmarshalJSON(data)
}
