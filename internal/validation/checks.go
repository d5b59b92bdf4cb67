// Package validation runs fatal consistency checks over the finished panel and
// the filesystem locations a run reads and writes.
package validation

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"evalpanel/internal/panel"
	"evalpanel/internal/selection"
)

// Check names
const (
	CheckNonEmpty          = "non_empty"
	CheckNoMissingValues   = "no_missing_values"
	CheckTreatmentLags     = "correct_treatment_lags"
	CheckMinYearIncome     = "at_least_min_year_income"
	CheckPrePostMonths     = "min_pre_and_post_signup_months"
	CheckMinMonthSpend     = "min_month_spend"
	CheckMinMonthTxns      = "min_month_txns"
	CheckCompleteDemograph = "complete_demographic_info"
	CheckWorkingAge        = "working_age"
)

// Error describes a failed check
type Error struct {
	Check     string  `json:"check"`
	Statistic string  `json:"statistic"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Message   string  `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("validation check %s failed: %s (%s=%v, threshold %v)",
		e.Check, e.Message, e.Statistic, e.Value, e.Threshold)
}

// Check is one named assertion over a panel
type Check struct {
	Name string
	// Mirrors is the funnel step whose guarantee the check re-asserts; the
	// check is skipped when that step is disabled
	Mirrors  string
	Requires []string
	Run      func(p *panel.Panel) *Error
}

// DefaultMissingExceptions are the columns allowed to hold NaN
func DefaultMissingExceptions() []string {
	return []string{
		"prop_credit",
		"entropy_tag", "entropy_tag_sm", "entropy_tag_z",
		"entropy_merchant", "entropy_merchant_sm", "entropy_merchant_z",
	}
}

// DefaultChecks returns the reference checks for the given sample definition
func DefaultChecks(th selection.Thresholds, missingExceptions []string) []Check {
	return []Check{
		NoMissingValues(missingExceptions),
		{
			Name:     CheckTreatmentLags,
			Requires: []string{"t", "tt"},
			Run:      treatmentLags,
		},
		{
			Name:     CheckMinYearIncome,
			Mirrors:  selection.StepYearIncome,
			Requires: []string{"month_income"},
			Run:      minAtLeast(CheckMinYearIncome, "month_income", th.MinYearIncome/12),
		},
		{
			Name:     CheckPrePostMonths,
			Mirrors:  selection.StepPrePostData,
			Requires: []string{"tt"},
			Run:      prePostMonths(th.MinPreMonths, th.MinPostMonths),
		},
		{
			Name:     CheckMinMonthSpend,
			Mirrors:  selection.StepMonthMinSpend,
			Requires: []string{"month_spend"},
			Run:      minAtLeast(CheckMinMonthSpend, "month_spend", th.MinMonthSpend),
		},
		{
			Name:     CheckMinMonthTxns,
			Mirrors:  selection.StepMonthMinTxns,
			Requires: []string{"txns_count"},
			Run:      minAtLeast(CheckMinMonthTxns, "txns_count", th.MinMonthTxns),
		},
		{
			Name:     CheckCompleteDemograph,
			Mirrors:  selection.StepCompleteDemography,
			Requires: []string{"age", "is_female", "region", "is_urban"},
			Run:      completeDemographics,
		},
		{
			Name:     CheckWorkingAge,
			Mirrors:  selection.StepWorkingAge,
			Requires: []string{"age"},
			Run:      workingAge(th.MinAge, th.MaxAge),
		},
	}
}

// NoMissingValues fails on NaN in any numeric column outside exceptions, or
// on an empty region
func NoMissingValues(exceptions []string) Check {
	skip := make(map[string]bool, len(exceptions))
	for _, c := range exceptions {
		skip[c] = true
	}
	return Check{
		Name: CheckNoMissingValues,
		Run: func(p *panel.Panel) *Error {
			for _, name := range p.Columns {
				if skip[name] {
					continue
				}
				if name == "region" {
					if n := emptyRegions(p); n > 0 {
						return &Error{Check: CheckNoMissingValues, Statistic: "missing_region", Value: float64(n),
							Message: "region has empty values"}
					}
					continue
				}
				col, ok := panel.LookupColumn(name)
				if !ok || !col.Numeric {
					continue
				}
				missing := 0
				for i := range p.Rows {
					if math.IsNaN(col.Value(&p.Rows[i])) {
						missing++
					}
				}
				if missing > 0 {
					return &Error{Check: CheckNoMissingValues, Statistic: "missing_" + name, Value: float64(missing),
						Message: fmt.Sprintf("column %s has missing values", name)}
				}
			}
			return nil
		},
	}
}

func emptyRegions(p *panel.Panel) int {
	n := 0
	for i := range p.Rows {
		if p.Rows[i].Region == "" {
			n++
		}
	}
	return n
}

func treatmentLags(p *panel.Panel) *Error {
	for i := range p.Rows {
		r := &p.Rows[i]
		if (r.T == 0 && r.TT > -1) || (r.T == 1 && r.TT < 0) {
			return &Error{Check: CheckTreatmentLags, Statistic: "tt", Value: float64(r.TT), Threshold: float64(r.T),
				Message: fmt.Sprintf("user %d month %s has t=%d with tt=%d", r.UserID, r.YM, r.T, r.TT)}
		}
	}
	return nil
}

func minAtLeast(check, column string, floor float64) func(p *panel.Panel) *Error {
	return func(p *panel.Panel) *Error {
		values, err := p.Column(column)
		if err != nil {
			return &Error{Check: check, Statistic: "min_" + column, Value: math.NaN(), Threshold: floor, Message: err.Error()}
		}
		lowest := math.Inf(1)
		for _, v := range values {
			if math.IsNaN(v) {
				return &Error{Check: check, Statistic: "min_" + column, Value: v, Threshold: floor,
					Message: fmt.Sprintf("%s has missing values", column)}
			}
			lowest = math.Min(lowest, v)
		}
		if lowest < floor {
			return &Error{Check: check, Statistic: "min_" + column, Value: lowest, Threshold: floor,
				Message: fmt.Sprintf("minimum %s below threshold", column)}
		}
		return nil
	}
}

func prePostMonths(pre, post int) func(p *panel.Panel) *Error {
	return func(p *panel.Panel) *Error {
		maxOfMin, minOfMax := math.MinInt, math.MaxInt
		for _, u := range p.ByUser() {
			lo, hi := u.Rows[0].TT, u.Rows[0].TT
			for i := range u.Rows {
				lo = min(lo, u.Rows[i].TT)
				hi = max(hi, u.Rows[i].TT)
			}
			maxOfMin = max(maxOfMin, lo)
			minOfMax = min(minOfMax, hi)
		}
		if maxOfMin > -pre {
			return &Error{Check: CheckPrePostMonths, Statistic: "max_user_min_tt", Value: float64(maxOfMin), Threshold: float64(-pre),
				Message: "a user has too few pre-signup months"}
		}
		if minOfMax < post-1 {
			return &Error{Check: CheckPrePostMonths, Statistic: "min_user_max_tt", Value: float64(minOfMax), Threshold: float64(post - 1),
				Message: "a user has too few post-signup months"}
		}
		return nil
	}
}

func completeDemographics(p *panel.Panel) *Error {
	for _, name := range []string{"age", "is_female", "is_urban"} {
		values, err := p.Column(name)
		if err != nil {
			return &Error{Check: CheckCompleteDemograph, Statistic: "missing_" + name, Message: err.Error()}
		}
		missing := 0
		for _, v := range values {
			if math.IsNaN(v) {
				missing++
			}
		}
		if missing > 0 {
			return &Error{Check: CheckCompleteDemograph, Statistic: "missing_" + name, Value: float64(missing),
				Message: fmt.Sprintf("%s has missing values", name)}
		}
	}
	if n := emptyRegions(p); n > 0 {
		return &Error{Check: CheckCompleteDemograph, Statistic: "missing_region", Value: float64(n),
			Message: "region has empty values"}
	}
	return nil
}

func workingAge(lo, hi float64) func(p *panel.Panel) *Error {
	return func(p *panel.Panel) *Error {
		for i := range p.Rows {
			age := p.Rows[i].Age
			if math.IsNaN(age) || age < lo {
				return &Error{Check: CheckWorkingAge, Statistic: "age", Value: age, Threshold: lo,
					Message: fmt.Sprintf("user %d below working age", p.Rows[i].UserID)}
			}
			if age > hi {
				return &Error{Check: CheckWorkingAge, Statistic: "age", Value: age, Threshold: hi,
					Message: fmt.Sprintf("user %d above working age", p.Rows[i].UserID)}
			}
		}
		return nil
	}
}

// StepSet reports which funnel steps ran
type StepSet interface {
	IsEnabled(id string) bool
}

// Outcome is the result of one check
type Outcome struct {
	Check  string `json:"check"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Outcome statuses
const (
	StatusPassed  = "passed"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// Validator runs checks in order and stops at the first failure
type Validator struct {
	checks   []Check
	disabled map[string]bool
	steps    StepSet
	logger   *slog.Logger
}

// NewValidator creates a validator. steps decides which mirrored checks apply;
// a nil steps runs every check.
func NewValidator(checks []Check, steps StepSet, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		checks:   checks,
		disabled: make(map[string]bool),
		steps:    steps,
		logger:   logger.With(slog.String("component", "validation")),
	}
}

// SetEnabled switches a check on or off
func (v *Validator) SetEnabled(name string, enabled bool) error {
	for _, c := range v.checks {
		if c.Name == name {
			v.disabled[name] = !enabled
			return nil
		}
	}
	return fmt.Errorf("validation check %s not found", name)
}

func (v *Validator) skipReason(c Check, p *panel.Panel) string {
	if v.disabled[c.Name] {
		return "disabled"
	}
	if c.Mirrors != "" && v.steps != nil && !v.steps.IsEnabled(c.Mirrors) {
		return "funnel step " + c.Mirrors + " disabled"
	}
	for _, col := range c.Requires {
		if !p.HasColumn(col) {
			return "column " + col + " not computed"
		}
	}
	return ""
}

// Validate runs every applicable check. The first failure is returned as a
// *Error together with the outcomes so far.
func (v *Validator) Validate(ctx context.Context, p *panel.Panel) ([]Outcome, error) {
	if p == nil || p.Len() == 0 {
		err := &Error{Check: CheckNonEmpty, Statistic: "user_months", Message: "final sample is empty"}
		v.logger.ErrorContext(ctx, "validation failed", slog.String("check", err.Check), slog.String("message", err.Message))
		return []Outcome{{Check: CheckNonEmpty, Status: StatusFailed, Reason: err.Message}}, err
	}

	outcomes := make([]Outcome, 0, len(v.checks))
	for _, c := range v.checks {
		if reason := v.skipReason(c, p); reason != "" {
			v.logger.DebugContext(ctx, "validation check skipped",
				slog.String("check", c.Name), slog.String("reason", reason))
			outcomes = append(outcomes, Outcome{Check: c.Name, Status: StatusSkipped, Reason: reason})
			continue
		}
		if verr := c.Run(p); verr != nil {
			v.logger.ErrorContext(ctx, "validation failed",
				slog.String("check", verr.Check),
				slog.String("statistic", verr.Statistic),
				slog.Float64("value", verr.Value),
				slog.Float64("threshold", verr.Threshold),
				slog.String("message", verr.Message))
			outcomes = append(outcomes, Outcome{Check: c.Name, Status: StatusFailed, Reason: verr.Message})
			return outcomes, verr
		}
		outcomes = append(outcomes, Outcome{Check: c.Name, Status: StatusPassed})
	}

	v.logger.InfoContext(ctx, "panel validated",
		slog.Int("checks", len(outcomes)),
		slog.Int("user_months", p.Len()),
		slog.Int("users", p.UserCount()))
	return outcomes, nil
}
