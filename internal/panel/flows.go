package panel

import (
	"math"
	"strings"

	"evalpanel/pkg/contracts/domain"
)

var flowColumns = []string{
	"inflows", "outflows", "netflows",
	"inflows_norm", "outflows_norm", "netflows_norm",
	"has_pos_netflows", "pos_netflows",
}

// IsSavingsFlow reports whether a transaction is a genuine savings account
// transfer: large enough, not an interest posting, not an automatic round-up
func IsSavingsFlow(tx *domain.Transaction, p Params) bool {
	if tx.AccountType != domain.AccountTypeSavings {
		return false
	}
	if math.Abs(tx.Amount) < p.SAFlowMinAmount {
		return false
	}
	tag := strings.ToLower(tx.TagAuto)
	for _, excluded := range p.SAFlowExcludedTags {
		if excluded != "" && strings.Contains(tag, strings.ToLower(excluded)) {
			return false
		}
	}
	if p.SAFlowExcludedPattern != nil && p.SAFlowExcludedPattern.MatchString(tx.Description) {
		return false
	}
	return true
}

// finiteOrZero replaces NaN and infinities with zero
func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Flows holds the savings flow aggregates of one user-month
type Flows struct {
	Inflows        float64
	Outflows       float64
	Netflows       float64
	InflowsNorm    float64
	OutflowsNorm   float64
	NetflowsNorm   float64
	HasPosNetflows float64
	PosNetflows    float64
}

// NetFlows derives the flow aggregates from gross inflows and outflows and the
// month's income. Non-finite results are zeroed.
func NetFlows(inflows, outflows, income float64) Flows {
	f := Flows{Inflows: math.Abs(inflows), Outflows: math.Abs(outflows)}
	f.Netflows = f.Inflows - f.Outflows
	f.InflowsNorm = finiteOrZero(f.Inflows / income)
	f.OutflowsNorm = finiteOrZero(f.Outflows / income)
	f.NetflowsNorm = finiteOrZero(f.Netflows / income)
	if f.Netflows > 0 {
		f.HasPosNetflows = 1
	}
	f.PosNetflows = f.Netflows * f.HasPosNetflows
	f.Inflows = finiteOrZero(f.Inflows)
	f.Outflows = finiteOrZero(f.Outflows)
	f.Netflows = finiteOrZero(f.Netflows)
	f.PosNetflows = finiteOrZero(f.PosNetflows)
	return f
}

func savingsAccountFlows(t *Table, p Params) (Output, error) {
	incomes := annualMeanIncome(t)
	return perGroup(t, func(g Group) Setter {
		var in, out float64
		for i := range g.Txns {
			tx := &g.Txns[i]
			if !IsSavingsFlow(tx, p) {
				continue
			}
			if tx.IsDebit {
				out += tx.Amount
			} else {
				in += tx.Amount
			}
		}
		f := NetFlows(in, out, incomes[g.Key])
		return func(r *Row) {
			r.Inflows = f.Inflows
			r.Outflows = f.Outflows
			r.Netflows = f.Netflows
			r.InflowsNorm = f.InflowsNorm
			r.OutflowsNorm = f.OutflowsNorm
			r.NetflowsNorm = f.NetflowsNorm
			r.HasPosNetflows = f.HasPosNetflows
			r.PosNetflows = f.PosNetflows
		}
	}), nil
}
