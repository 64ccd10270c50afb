package budget

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// Severity is the alert tier of a spend-to-limit ratio.
type Severity int

const (
	SeverityOK Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityDanger
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityDanger:
		return "danger"
	default:
		return "ok"
	}
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name.
func (s *Severity) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "ok":
		*s = SeverityOK
	case "info":
		*s = SeverityInfo
	case "warning":
		*s = SeverityWarning
	case "danger":
		*s = SeverityDanger
	default:
		return fmt.Errorf("unknown severity %q", text)
	}
	return nil
}

// Thresholds holds the lower bound ratio of each alerting tier.
type Thresholds struct {
	Info    decimal.Decimal
	Warning decimal.Decimal
	Danger  decimal.Decimal
}

// DefaultThresholds returns the 60% / 85% / 100% tiers.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Info:    decimal.RequireFromString("0.60"),
		Warning: decimal.RequireFromString("0.85"),
		Danger:  decimal.RequireFromString("1.00"),
	}
}

// Validate requires 0 < info < warning < danger.
func (t Thresholds) Validate() error {
	if !t.Info.IsPositive() {
		return fmt.Errorf("info threshold %s must be positive", t.Info)
	}
	if !t.Info.LessThan(t.Warning) || !t.Warning.LessThan(t.Danger) {
		return fmt.Errorf("thresholds must be strictly increasing: info=%s warning=%s danger=%s",
			t.Info, t.Warning, t.Danger)
	}
	return nil
}

// Evaluate classifies used against limit. A limit that is absent (zero) or
// non-positive means no limit: the result is always (SeverityOK, 0). Tiers are
// checked highest first and each includes its lower bound.
func (t Thresholds) Evaluate(used, limit core.Money) (Severity, decimal.Decimal) {
	if !limit.Amount.IsPositive() {
		return SeverityOK, decimal.Zero
	}
	ratio := used.Amount.Div(limit.Amount)
	switch {
	case ratio.GreaterThanOrEqual(t.Danger):
		return SeverityDanger, ratio
	case ratio.GreaterThanOrEqual(t.Warning):
		return SeverityWarning, ratio
	case ratio.GreaterThanOrEqual(t.Info):
		return SeverityInfo, ratio
	default:
		return SeverityOK, ratio
	}
}

// Evaluate classifies used against limit with the default tiers.
func Evaluate(used, limit core.Money) (Severity, decimal.Decimal) {
	return DefaultThresholds().Evaluate(used, limit)
}
