package validation

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalpanel/internal/panel"
	"evalpanel/internal/selection"
	"evalpanel/internal/shared/testutil"
	"evalpanel/pkg/contracts/domain"
)

type stepSet map[string]bool

func (s stepSet) IsEnabled(id string) bool { return !s[id] }

func eligiblePanel(t *testing.T) *panel.Panel {
	t.Helper()
	var txns []domain.Transaction
	for id := int64(1); id <= 3; id++ {
		user := testutil.NewUser(id, domain.NewYearMonth(2018, time.July))
		txns = append(txns, user.Months(domain.NewYearMonth(2018, time.January), 12, testutil.DefaultPlan())...)
	}
	logger, _ := testutil.NewTestLogger(t)
	p, _, err := panel.NewAssembler(panel.DefaultRegistry(), panel.DefaultParams(), logger).
		Assemble(context.Background(), panel.NewTable(txns))
	require.NoError(t, err)
	return p
}

func newValidator(t *testing.T, steps StepSet) (*Validator, *testutil.CaptureHandler) {
	t.Helper()
	logger, logs := testutil.NewTestLogger(t)
	checks := DefaultChecks(selection.DefaultThresholds(), DefaultMissingExceptions())
	return NewValidator(checks, steps, logger), logs
}

func TestValidator_Passes(t *testing.T) {
	v, logs := newValidator(t, nil)
	outcomes, err := v.Validate(context.Background(), eligiblePanel(t))
	require.NoError(t, err)
	require.Len(t, outcomes, 8)
	for _, o := range outcomes {
		assert.Equal(t, StatusPassed, o.Status, o.Check)
	}
	_, ok := logs.Find("panel validated")
	assert.True(t, ok)
}

func TestValidator_Failures(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(p *panel.Panel)
		check     string
		statistic string
	}{
		{
			name:      "missing flow value",
			mutate:    func(p *panel.Panel) { p.Rows[3].Inflows = math.NaN() },
			check:     CheckNoMissingValues,
			statistic: "missing_inflows",
		},
		{
			name:      "empty region",
			mutate:    func(p *panel.Panel) { p.Rows[0].Region = "" },
			check:     CheckNoMissingValues,
			statistic: "missing_region",
		},
		{
			name: "treated before signup",
			mutate: func(p *panel.Panel) {
				p.Rows[0].T = 1
			},
			check:     CheckTreatmentLags,
			statistic: "tt",
		},
		{
			name:      "income below floor",
			mutate:    func(p *panel.Panel) { p.Rows[5].MonthIncome = 100 },
			check:     CheckMinYearIncome,
			statistic: "min_month_income",
		},
		{
			name: "too few pre-signup months",
			mutate: func(p *panel.Panel) {
				p.Rows = p.Rows[2:]
			},
			check:     CheckPrePostMonths,
			statistic: "max_user_min_tt",
		},
		{
			name: "too few post-signup months",
			mutate: func(p *panel.Panel) {
				p.Rows = p.Rows[:len(p.Rows)-1]
			},
			check:     CheckPrePostMonths,
			statistic: "min_user_max_tt",
		},
		{
			name:      "spend below floor",
			mutate:    func(p *panel.Panel) { p.Rows[7].MonthSpend = 199 },
			check:     CheckMinMonthSpend,
			statistic: "min_month_spend",
		},
		{
			name:      "too few transactions",
			mutate:    func(p *panel.Panel) { p.Rows[7].TxnsCount = 9 },
			check:     CheckMinMonthTxns,
			statistic: "min_txns_count",
		},
		{
			name:      "above working age",
			mutate:    func(p *panel.Panel) { p.Rows[11].Age = 70 },
			check:     CheckWorkingAge,
			statistic: "age",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := eligiblePanel(t)
			tt.mutate(p)

			v, logs := newValidator(t, nil)
			outcomes, err := v.Validate(context.Background(), p)
			require.Error(t, err)

			var verr *Error
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.check, verr.Check)
			assert.Equal(t, tt.statistic, verr.Statistic)
			assert.Equal(t, StatusFailed, outcomes[len(outcomes)-1].Status)
			assert.Equal(t, 1, logs.Count(slog.LevelError))
		})
	}
}

func TestValidator_EmptyPanel(t *testing.T) {
	v, _ := newValidator(t, nil)
	_, err := v.Validate(context.Background(), &panel.Panel{Columns: []string{"user_id", "ym"}})
	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, CheckNonEmpty, verr.Check)
	assert.Equal(t, "final sample is empty", verr.Message)
}

func TestValidator_Skips(t *testing.T) {
	t.Run("mirrored step disabled", func(t *testing.T) {
		p := eligiblePanel(t)
		p.Rows[0].MonthIncome = 10

		v, _ := newValidator(t, stepSet{selection.StepYearIncome: true})
		outcomes, err := v.Validate(context.Background(), p)
		require.NoError(t, err)
		for _, o := range outcomes {
			if o.Check == CheckMinYearIncome {
				assert.Equal(t, StatusSkipped, o.Status)
				assert.Contains(t, o.Reason, selection.StepYearIncome)
			}
		}
	})

	t.Run("check disabled", func(t *testing.T) {
		p := eligiblePanel(t)
		p.Rows[0].Age = 80

		v, _ := newValidator(t, nil)
		require.NoError(t, v.SetEnabled(CheckWorkingAge, false))
		_, err := v.Validate(context.Background(), p)
		assert.NoError(t, err)
		assert.Error(t, v.SetEnabled("no_such_check", false))
	})

	t.Run("missing exceptions", func(t *testing.T) {
		p := eligiblePanel(t)
		p.Rows[0].PropCredit = math.NaN()
		p.Rows[1].EntropyTag = math.NaN()

		v, _ := newValidator(t, nil)
		_, err := v.Validate(context.Background(), p)
		assert.NoError(t, err)
	})
}
