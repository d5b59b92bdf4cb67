package selection

import (
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"evalpanel/internal/panel"
	"evalpanel/pkg/contracts/domain"
)

// Step IDs in default funnel order
const (
	StepRawSample          = "raw_sample"
	StepDropBoundaryMonths = "drop_first_and_last_month"
	StepSignupAfter        = "signup_after"
	StepPrePostData        = "pre_and_post_signup_data"
	StepHasSavingsAccount  = "has_savings_account"
	StepHasCurrentAccount  = "has_current_account"
	StepYearIncome         = "year_income"
	StepMonthMinTxns       = "month_min_txns"
	StepMonthMinSpend      = "month_min_spend"
	StepMaxActiveAccounts  = "max_active_accounts"
	StepCompleteDemography = "complete_demographic_info"
	StepWorkingAge         = "working_age"
	StepFinalSample        = "final_sample"
)

// Thresholds parameterise the funnel predicates
type Thresholds struct {
	MinSignupYM       domain.YearMonth
	MinPreMonths      int
	MinPostMonths     int
	MinYearIncome     float64
	MinMonthTxns      float64
	MinMonthSpend     float64
	MaxActiveAccounts int
	MinAge            float64
	MaxAge            float64
}

// DefaultThresholds returns the reference sample definition
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinSignupYM:       domain.NewYearMonth(2017, 4),
		MinPreMonths:      6,
		MinPostMonths:     6,
		MinYearIncome:     5000,
		MinMonthTxns:      10,
		MinMonthSpend:     200,
		MaxActiveAccounts: 10,
		MinAge:            18,
		MaxAge:            65,
	}
}

// DefaultDisabled lists the steps that are off unless configured otherwise
func DefaultDisabled() []string {
	return []string{StepDropBoundaryMonths}
}

var printer = message.NewPrinter(language.BritishEnglish)

// amount renders a threshold with thousands separators, dropping the
// fraction for whole numbers
func amount(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return printer.Sprintf("%d", int64(v))
	}
	return printer.Sprintf("%.2f", v)
}

// DefaultSteps builds the reference funnel in order
func DefaultSteps(th Thresholds) []Step {
	return []Step{
		NewUserStep(StepRawSample, "Raw sample", nil, keepAll),
		NewBoundaryStep(StepDropBoundaryMonths, "Drop first and last month"),
		signupAfter(th),
		prePostData(th),
		NewUserStep(StepHasSavingsAccount, "At least one savings account",
			[]string{"has_savings_account"},
			anyMonth(func(r *panel.Row) bool { return r.HasSavingsAccount == 1 })),
		NewUserStep(StepHasCurrentAccount, "At least one current account",
			[]string{"has_current_account"},
			anyMonth(func(r *panel.Row) bool { return r.HasCurrentAccount == 1 })),
		NewUserStep(StepYearIncome, fmt.Sprintf("At least £%s of annual income", amount(th.MinYearIncome)),
			[]string{"month_income"},
			minAtLeast(func(r *panel.Row) float64 { return r.MonthIncome }, th.MinYearIncome/12)),
		NewUserStep(StepMonthMinTxns, fmt.Sprintf("At least %s txns each month", amount(th.MinMonthTxns)),
			[]string{"txns_count"},
			minAtLeast(func(r *panel.Row) float64 { return r.TxnsCount }, th.MinMonthTxns)),
		NewUserStep(StepMonthMinSpend, fmt.Sprintf("At least £%s of monthly spend", amount(th.MinMonthSpend)),
			[]string{"month_spend"},
			minAtLeast(func(r *panel.Row) float64 { return r.MonthSpend }, th.MinMonthSpend)),
		NewUserStep(StepMaxActiveAccounts, printer.Sprintf("No more than %d active accounts", th.MaxActiveAccounts),
			[]string{"accounts_active"},
			func(u panel.UserRows) bool {
				for i := range u.Rows {
					if u.Rows[i].AccountsActive > th.MaxActiveAccounts {
						return false
					}
				}
				return true
			}),
		NewUserStep(StepCompleteDemography, "Complete demographic information",
			[]string{"age", "is_female", "region", "is_urban"},
			completeDemographics),
		NewUserStep(StepWorkingAge, "Working age",
			[]string{"age"},
			func(u panel.UserRows) bool {
				for i := range u.Rows {
					age := u.Rows[i].Age
					if math.IsNaN(age) || age < th.MinAge || age > th.MaxAge {
						return false
					}
				}
				return true
			}),
		NewUserStep(StepFinalSample, "Final sample", nil, keepAll),
	}
}

func keepAll(panel.UserRows) bool { return true }

func signupAfter(th Thresholds) Step {
	last := th.MinSignupYM.AddMonths(-1)
	label := fmt.Sprintf("App signup after %s %d", last.Month, last.Year)
	return NewUserStep(StepSignupAfter, label, []string{"user_reg_ym"}, func(u panel.UserRows) bool {
		reg := u.Rows[0].UserRegYM
		if reg.IsZero() {
			return false
		}
		return !reg.Before(th.MinSignupYM)
	})
}

func prePostData(th Thresholds) Step {
	label := fmt.Sprintf("At least %d months of pre and post signup data", th.MinPreMonths)
	if th.MinPreMonths != th.MinPostMonths {
		label = fmt.Sprintf("At least %d pre and %d post signup months", th.MinPreMonths, th.MinPostMonths)
	}
	return NewUserStep(StepPrePostData, label, []string{"tt"}, func(u panel.UserRows) bool {
		observed := make(map[int]bool, len(u.Rows))
		for i := range u.Rows {
			observed[u.Rows[i].TT] = true
		}
		for tt := -th.MinPreMonths; tt < th.MinPostMonths; tt++ {
			if !observed[tt] {
				return false
			}
		}
		return true
	})
}

// minAtLeast keeps users whose smallest value reaches floor. Any missing
// value makes the predicate false.
func minAtLeast(get func(r *panel.Row) float64, floor float64) func(panel.UserRows) bool {
	return func(u panel.UserRows) bool {
		for i := range u.Rows {
			v := get(&u.Rows[i])
			if math.IsNaN(v) || v < floor {
				return false
			}
		}
		return true
	}
}

// anyMonth keeps users for whom some month satisfies ok
func anyMonth(ok func(r *panel.Row) bool) func(panel.UserRows) bool {
	return func(u panel.UserRows) bool {
		for i := range u.Rows {
			if ok(&u.Rows[i]) {
				return true
			}
		}
		return false
	}
}

func completeDemographics(u panel.UserRows) bool {
	for i := range u.Rows {
		r := &u.Rows[i]
		if math.IsNaN(r.Age) || math.IsNaN(r.IsFemale) || math.IsNaN(r.IsUrban) || r.Region == "" {
			return false
		}
	}
	return true
}

// NewDefaultFunnel builds the reference funnel with the given steps disabled
func NewDefaultFunnel(th Thresholds, disabled []string, logger *slog.Logger) (*Funnel, error) {
	f, err := NewFunnel(DefaultSteps(th), logger)
	if err != nil {
		return nil, err
	}
	for _, id := range disabled {
		if err := f.SetEnabled(id, false); err != nil {
			return nil, err
		}
	}
	return f, nil
}
