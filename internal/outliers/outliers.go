// Package outliers implements full-sample outlier control for panel columns:
// percentile trimming, winsorization and z-score standardization.
package outliers

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Side selects which tail(s) of a distribution are treated
type Side string

const (
	SideBoth  Side = "both"
	SideLower Side = "lower"
	SideUpper Side = "upper"
)

// ParseSide validates a side name
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(s)) {
	case SideBoth:
		return SideBoth, nil
	case SideLower:
		return SideLower, nil
	case SideUpper:
		return SideUpper, nil
	}
	return "", fmt.Errorf("invalid side %q: expected both, lower or upper", s)
}

// Result reports the bounds applied to a column and how many values changed
type Result struct {
	Lower   float64 `json:"lower"`
	Upper   float64 `json:"upper"`
	Changed int     `json:"changed"`
}

// MarshalJSON writes bounds that are not finite, as for an all-missing
// column, as null
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Lower   *float64 `json:"lower"`
		Upper   *float64 `json:"upper"`
		Changed int      `json:"changed"`
	}{finite(r.Lower), finite(r.Upper), r.Changed})
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Percentile returns the pct-th percentile (0-100) of the finite values using
// linear interpolation between closest ranks. NaN values are ignored; the
// result is NaN when no values remain.
func Percentile(values []float64, pct float64) float64 {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return math.NaN()
	}
	sort.Float64s(sorted)
	return percentileSorted(sorted, pct)
}

func percentileSorted(sorted []float64, pct float64) float64 {
	if pct <= 0 {
		return sorted[0]
	}
	if pct >= 100 {
		return sorted[len(sorted)-1]
	}
	rank := pct / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// Bounds returns the [pct, 100-pct] percentile bounds of values
func Bounds(values []float64, pct float64) (lower, upper float64) {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return math.NaN(), math.NaN()
	}
	sort.Float64s(sorted)
	return percentileSorted(sorted, pct), percentileSorted(sorted, 100-pct)
}

func validatePct(pct float64) error {
	if math.IsNaN(pct) || pct < 0 || pct >= 50 {
		return fmt.Errorf("percentile budget must be in [0, 50), got %v", pct)
	}
	return nil
}

// Trim replaces values outside the percentile bounds on the chosen side(s)
// with NaN. Values equal to a bound are kept.
func Trim(values []float64, pct float64, side Side) ([]float64, Result, error) {
	if err := validatePct(pct); err != nil {
		return nil, Result{}, err
	}
	lower, upper := Bounds(values, pct)
	res := Result{Lower: lower, Upper: upper}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v
		if math.IsNaN(v) {
			continue
		}
		if (side != SideUpper && v < lower) || (side != SideLower && v > upper) {
			out[i] = math.NaN()
			res.Changed++
		}
	}
	return out, res, nil
}

// Winsorize clips values to the percentile bounds on the chosen side(s)
func Winsorize(values []float64, pct float64, side Side) ([]float64, Result, error) {
	if err := validatePct(pct); err != nil {
		return nil, Result{}, err
	}
	lower, upper := Bounds(values, pct)
	res := Result{Lower: lower, Upper: upper}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v
		if math.IsNaN(v) {
			continue
		}
		switch {
		case side != SideUpper && v < lower:
			out[i] = lower
			res.Changed++
		case side != SideLower && v > upper:
			out[i] = upper
			res.Changed++
		}
	}
	return out, res, nil
}

// Standardize converts finite values to z-scores using the sample standard
// deviation. NaN stays NaN; a constant or single-valued sample maps to 0.
func Standardize(values []float64) []float64 {
	var sum float64
	n := 0
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			sum += v
			n++
		}
	}
	out := make([]float64, len(values))
	if n == 0 {
		copy(out, values)
		return out
	}
	mean := sum / float64(n)
	var ss float64
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			ss += (v - mean) * (v - mean)
		}
	}
	sd := 0.0
	if n > 1 {
		sd = math.Sqrt(ss / float64(n-1))
	}
	for i, v := range values {
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			out[i] = math.NaN()
		case sd == 0:
			out[i] = 0
		default:
			out[i] = (v - mean) / sd
		}
	}
	return out
}
