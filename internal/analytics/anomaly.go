package analytics

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"fintrack/internal/core"
)

// Method selects the outlier rule.
type Method string

const (
	MethodZScore Method = "zscore"
	MethodIQR    Method = "iqr"
)

// ParseMethod accepts "zscore" or "iqr", case-insensitively.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case MethodZScore, MethodIQR:
		return m, nil
	case "":
		return MethodZScore, nil
	}
	return "", fmt.Errorf("unknown anomaly method %q", s)
}

// Anomaly is a day whose total spend is unusually high.
type Anomaly struct {
	Date   core.Date  `json:"date"`
	Amount core.Money `json:"amount"`
	Reason string     `json:"reason"`
}

// Detector flags high-spend days among daily totals.
//
// For MethodZScore a day is flagged when its total exceeds
// mean + Sensitivity*stddev (sample standard deviation). For MethodIQR the
// bound is Q3 + Sensitivity*(Q3-Q1) with linearly interpolated quartiles.
// Only values strictly above the bound are flagged.
type Detector struct {
	Method      Method
	Sensitivity float64
}

func NewDetector(method Method, sensitivity float64) Detector {
	return Detector{Method: method, Sensitivity: sensitivity}
}

// Detect returns the anomalies in date order. Fewer than two days yields
// none, as does a z-score run over a series with zero deviation.
func (d Detector) Detect(daily []core.DailyTotal) []Anomaly {
	out := make([]Anomaly, 0)
	if len(daily) < 2 {
		return out
	}
	values := make([]float64, len(daily))
	for i, t := range daily {
		values[i] = t.Amount.Amount.InexactFloat64()
	}

	var (
		bound  float64
		reason string
	)
	switch d.Method {
	case MethodIQR:
		sorted := append([]float64(nil), values...)
		sort.Float64s(sorted)
		q1, q3 := quantile(sorted, 0.25), quantile(sorted, 0.75)
		bound = q3 + d.Sensitivity*(q3-q1)
		reason = fmt.Sprintf("High spend (>%s×IQR)", formatFloat(d.Sensitivity))
	default:
		mean, std := meanStd(values)
		if std == 0 {
			return out
		}
		bound = mean + d.Sensitivity*std
		reason = fmt.Sprintf("High spend (>%sσ)", formatFloat(d.Sensitivity))
	}

	for i, v := range values {
		if v > bound {
			out = append(out, Anomaly{Date: daily[i].Date, Amount: daily[i].Amount, Reason: reason})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date.Time) })
	return out
}

func meanStd(values []float64) (mean, std float64) {
	n := float64(len(values))
	for _, v := range values {
		mean += v
	}
	mean /= n
	if len(values) < 2 {
		return mean, 0
	}
	var ss float64
	for _, v := range values {
		ss += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(ss / (n - 1))
}

// quantile interpolates linearly between closest ranks of sorted.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (pos-float64(lo))*(sorted[hi]-sorted[lo])
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
